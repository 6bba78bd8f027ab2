package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/server/internal/repository/moderation"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{rc: rc, logger: logger}
}

func (r repo) getBanListKey(roomId string) string {
	return "room:" + roomId + ":bans"
}

func (r repo) getBanKey(roomId, userId string) string {
	return "room:" + roomId + ":ban:" + userId
}

func (r repo) getModeratorListKey(roomId string) string {
	return "room:" + roomId + ":moderators"
}

func (r repo) Ban(ctx context.Context, params *moderation.BanParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.SAdd(ctx, r.getBanListKey(params.RoomId), params.UserId)
	pipe.HSet(ctx, r.getBanKey(params.RoomId, params.UserId), moderation.Ban{
		Reason:   params.Reason,
		BannedBy: params.BannedBy,
		BannedAt: params.BannedAt,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) Unban(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	removed, err := r.rc.SRem(ctx, r.getBanListKey(roomId), userId).Result()
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	if removed == 0 {
		return moderation.ErrBanNotFound
	}

	return r.rc.Del(ctx, r.getBanKey(roomId, userId)).Err()
}

func (r repo) IsBanned(ctx context.Context, roomId, userId string) (bool, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	return r.rc.SIsMember(ctx, r.getBanListKey(roomId), userId).Result()
}

func (r repo) GetBan(ctx context.Context, roomId, userId string) (moderation.Ban, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	isBanned, err := r.IsBanned(ctx, roomId, userId)
	if err != nil {
		return moderation.Ban{}, err
	}

	if !isBanned {
		return moderation.Ban{}, moderation.ErrBanNotFound
	}

	var ban moderation.Ban
	if err := r.rc.HGetAll(ctx, r.getBanKey(roomId, userId)).Scan(&ban); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return moderation.Ban{}, err
	}

	return ban, nil
}

func (r repo) GrantModerator(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	return r.rc.SAdd(ctx, r.getModeratorListKey(roomId), userId).Err()
}

func (r repo) RevokeModerator(ctx context.Context, roomId, userId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "user_id", userId)
	return r.rc.SRem(ctx, r.getModeratorListKey(roomId), userId).Err()
}

func (r repo) IsModerator(ctx context.Context, roomId, userId string) (bool, error) {
	return r.rc.SIsMember(ctx, r.getModeratorListKey(roomId), userId).Result()
}

func (r repo) GetModerators(ctx context.Context, roomId string) ([]string, error) {
	return r.rc.SMembers(ctx, r.getModeratorListKey(roomId)).Result()
}
