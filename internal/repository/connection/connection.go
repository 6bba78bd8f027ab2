// Package connection defines the gateway's transient routing table: which
// websocket belongs to which member, and which room that connection is
// serving. Kept separate from the room registry so rooms can be exercised
// without any transport.
package connection

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Conn guards a websocket connection with a write lock. gorilla/websocket
// permits at most one concurrent writer; both the gateway and the room actors
// write to a member's connection, so every outbound frame goes through here.
type Conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func WrapConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ws.WriteJSON(v)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
