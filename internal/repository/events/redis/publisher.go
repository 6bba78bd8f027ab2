package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/server/internal/repository/events"
)

type publisher struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewPublisher(rc *redis.Client, logger *slog.Logger) *publisher {
	return &publisher{rc: rc, logger: logger}
}

func (p publisher) Publish(ctx context.Context, event events.Event) error {
	p.logger.DebugContext(ctx, "called", "event", event)
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.rc.Publish(ctx, events.Channel, payload).Err(); err != nil {
		p.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
