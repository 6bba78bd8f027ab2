package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/server/internal/repository/chat"
)

const messageExpiration = 24 * time.Hour

type repo struct {
	rc           *redis.Client
	historyLimit int64
	logger       *slog.Logger
}

func NewRepo(rc *redis.Client, historyLimit int, logger *slog.Logger) *repo {
	return &repo{rc: rc, historyLimit: int64(historyLimit), logger: logger}
}

func (r repo) getHistoryKey(roomId string) string {
	return "room:" + roomId + ":chat"
}

func (r repo) getMessageKey(roomId, messageId string) string {
	return "room:" + roomId + ":message:" + messageId
}

func (r repo) Append(ctx context.Context, params *chat.AppendParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId, "message_id", params.Message.Id)
	pipe := r.rc.TxPipeline()

	historyKey := r.getHistoryKey(params.RoomId)
	pipe.LPush(ctx, historyKey, params.Message.Id)
	pipe.LTrim(ctx, historyKey, 0, r.historyLimit-1)
	pipe.Expire(ctx, historyKey, messageExpiration)

	messageKey := r.getMessageKey(params.RoomId, params.Message.Id)
	pipe.HSet(ctx, messageKey, params.Message)
	pipe.Expire(ctx, messageKey, messageExpiration)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetMessage(ctx context.Context, roomId, messageId string) (chat.Message, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "message_id", messageId)
	exists, err := r.rc.Exists(ctx, r.getMessageKey(roomId, messageId)).Result()
	if err != nil {
		return chat.Message{}, err
	}

	if exists == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}

	var message chat.Message
	if err := r.rc.HGetAll(ctx, r.getMessageKey(roomId, messageId)).Scan(&message); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return chat.Message{}, err
	}

	return message, nil
}

// Delete writes the tombstone: the id stays in the history list, the content
// is cleared and the record flagged deleted.
func (r repo) Delete(ctx context.Context, roomId, messageId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId, "message_id", messageId)
	messageKey := r.getMessageKey(roomId, messageId)

	exists, err := r.rc.Exists(ctx, messageKey).Result()
	if err != nil {
		return err
	}

	if exists == 0 {
		return chat.ErrMessageNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, messageKey, "content", "", "deleted", true)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetHistory(ctx context.Context, roomId string) ([]chat.Message, error) {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	messageIds, err := r.rc.LRange(ctx, r.getHistoryKey(roomId), 0, r.historyLimit-1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(messageIds))
	for i := len(messageIds) - 1; i >= 0; i-- {
		message, err := r.GetMessage(ctx, roomId, messageIds[i])
		if err != nil {
			if err == chat.ErrMessageNotFound {
				continue
			}

			return nil, err
		}

		messages = append(messages, message)
	}

	return messages, nil
}
