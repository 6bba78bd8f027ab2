package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/server/internal/repository/roommeta"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{rc: rc, logger: logger}
}

func (r repo) getMetaKey(roomId string) string {
	return "room:" + roomId + ":meta"
}

func (r repo) Set(ctx context.Context, params *roommeta.SetParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId)
	if err := r.rc.HSet(ctx, r.getMetaKey(params.RoomId), params.Meta).Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) Get(ctx context.Context, roomId string) (roommeta.Meta, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	exists, err := r.rc.Exists(ctx, r.getMetaKey(roomId)).Result()
	if err != nil {
		return roommeta.Meta{}, err
	}

	if exists == 0 {
		return roommeta.Meta{}, roommeta.ErrRoomNotFound
	}

	var meta roommeta.Meta
	if err := r.rc.HGetAll(ctx, r.getMetaKey(roomId)).Scan(&meta); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return roommeta.Meta{}, err
	}

	return meta, nil
}

func (r repo) UpdateStream(ctx context.Context, params *roommeta.UpdateStreamParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId, "stream_url", params.StreamURL)
	exists, err := r.rc.Exists(ctx, r.getMetaKey(params.RoomId)).Result()
	if err != nil {
		return err
	}

	if exists == 0 {
		return roommeta.ErrRoomNotFound
	}

	return r.rc.HSet(ctx, r.getMetaKey(params.RoomId),
		"stream_url", params.StreamURL,
		"provider_kind", params.ProviderKind,
	).Err()
}
