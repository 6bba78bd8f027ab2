package wsrouter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc processes a single inbound frame. A returned error is logged
// and the connection keeps being served; fatal transport errors terminate
// ServeConn on the read path instead.
type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type Option func(*WSRouter)

// WithRateLimit caps inbound frames per connection. Frames above the limit
// are dropped without dispatching.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *WSRouter) {
		r.limit = limit
		r.burst = burst
	}
}

type WSRouter struct {
	routes map[string]HandlerFunc
	logger *slog.Logger
	limit  rate.Limit
	burst  int
}

func New(logger *slog.Logger, opts ...Option) *WSRouter {
	r := &WSRouter{
		routes: make(map[string]HandlerFunc),
		logger: logger,
		limit:  rate.Inf,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads frames until the connection fails or ctx is done, routing
// each frame to its registered handler.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	limiter := rate.NewLimiter(r.limit, r.burst)

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !limiter.Allow() {
			r.logger.WarnContext(ctx, "inbound frame dropped by rate limit", "type", msg.Type)
			continue
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			r.logger.InfoContext(ctx, "unknown message type", "type", msg.Type)
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			r.logger.InfoContext(msgCtx, "handler error", "type", msg.Type, "error", err)
		}
	}
}
