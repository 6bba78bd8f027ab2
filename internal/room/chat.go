package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchroom/server/internal/repository/chat"
	"github.com/watchroom/server/internal/repository/events"
	"github.com/watchroom/server/pkg/metrics"
)

type SendMessageParams struct {
	SenderId  string
	Content   string
	ReplyToId string
}

type SendMessageResponse struct {
	Message          chat.Message
	RemainingSeconds float64
}

// SendMessage runs the chat pipeline: chat-enabled gate, spam governor,
// id/timestamp assignment, best-effort history append, broadcast. A governor
// rejection answers the sender point-to-point with the remaining cooldown and
// never extends the window.
func (a *Actor) SendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	return request(ctx, a, func() (SendMessageResponse, error) {
		return a.sendMessage(ctx, params)
	})
}

func (a *Actor) sendMessage(ctx context.Context, params *SendMessageParams) (SendMessageResponse, error) {
	sender, ok := a.participants[params.SenderId]
	if !ok {
		return SendMessageResponse{}, ErrMemberNotFound
	}

	if !a.settings.ChatEnabled {
		return SendMessageResponse{}, ErrChatDisabled
	}

	if a.settings.SpamProtectionEnabled {
		cooldown := time.Duration(a.settings.SpamCooldownSeconds) * time.Second
		remaining, allowed := a.governor.Check(a.roomId, params.SenderId, cooldown)
		if !allowed {
			metrics.SpamRejections.Inc()

			a.sender.ToMember(ctx, params.SenderId, &Output{
				Type: OutputSpamBlocked,
				Payload: map[string]any{
					"remaining": remaining.Seconds(),
				},
			})

			return SendMessageResponse{RemainingSeconds: remaining.Seconds()}, ErrRateLimited
		}
	}

	message := chat.Message{
		Id:        uuid.NewString(),
		AuthorId:  params.SenderId,
		Username:  sender.Username,
		Content:   params.Content,
		ReplyToId: params.ReplyToId,
		CreatedAt: a.now().UnixMilli(),
	}

	// history is optional, live delivery is not
	if err := a.chatRepo.Append(ctx, &chat.AppendParams{RoomId: a.roomId, Message: message}); err != nil {
		a.logger.InfoContext(ctx, "failed to persist message", "error", err)
	}

	a.broadcast(ctx, &Output{
		Type:    OutputNewMessage,
		Payload: message,
	})
	metrics.ChatMessages.Inc()

	if err := a.publisher.Publish(ctx, events.Event{
		Type:   events.TypeMessageSent,
		RoomId: a.roomId,
		UserId: params.SenderId,
		At:     a.now().Unix(),
	}); err != nil {
		a.logger.InfoContext(ctx, "failed to publish message_sent", "error", err)
	}

	return SendMessageResponse{Message: message}, nil
}

type DeleteMessageParams struct {
	SenderId  string
	MessageId string
	AsAdmin   bool
}

// DeleteMessage broadcasts a tombstone for a message. Authors may delete
// their own messages; owner and moderators may delete anyone's.
func (a *Actor) DeleteMessage(ctx context.Context, params *DeleteMessageParams) error {
	return a.enqueue(ctx, func() error {
		return a.deleteMessage(ctx, params)
	})
}

func (a *Actor) deleteMessage(ctx context.Context, params *DeleteMessageParams) error {
	if _, ok := a.participants[params.SenderId]; !ok {
		return ErrMemberNotFound
	}

	message, err := a.chatRepo.GetMessage(ctx, a.roomId, params.MessageId)
	if err != nil {
		if err == chat.ErrMessageNotFound {
			return nil
		}

		return fmt.Errorf("failed to get message: %w", err)
	}

	if params.AsAdmin {
		role := a.roleOf(params.SenderId)
		if role != RoleOwner && role != RoleModerator {
			return ErrPermissionDenied
		}
	} else if message.AuthorId != params.SenderId {
		return ErrPermissionDenied
	}

	if err := a.chatRepo.Delete(ctx, a.roomId, params.MessageId); err != nil {
		a.logger.InfoContext(ctx, "failed to tombstone message", "error", err)
	}

	a.broadcast(ctx, &Output{
		Type: OutputMessageDeleted,
		Payload: map[string]any{
			"message_id": params.MessageId,
		},
	})

	return nil
}

type SendReactionParams struct {
	SenderId string
	Emoji    string
}

// SendReaction broadcasts an ephemeral reaction burst. No persistence, no
// governance beyond connection validity; clients expire it locally.
func (a *Actor) SendReaction(ctx context.Context, params *SendReactionParams) error {
	return a.enqueue(ctx, func() error {
		if _, ok := a.participants[params.SenderId]; !ok {
			return ErrMemberNotFound
		}

		a.broadcast(ctx, &Output{
			Type: OutputReaction,
			Payload: map[string]any{
				"user_id": params.SenderId,
				"emoji":   params.Emoji,
			},
		})

		return nil
	})
}
