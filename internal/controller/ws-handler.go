package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/playback"
	"github.com/watchroom/server/internal/room"
)

type EmptyInput struct{}

// getActor resolves the live actor and sender identity bound to this
// connection's context.
func (c *controller) getActor(ctx context.Context) (*room.Actor, string, error) {
	roomId := c.getRoomIdFromCtx(ctx)
	memberId := c.getMemberIdFromCtx(ctx)

	actor, ok := c.registry.Get(roomId)
	if !ok {
		return nil, "", fmt.Errorf("no live actor for room %q", roomId)
	}

	return actor, memberId, nil
}

func (c *controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

func (c *controller) handleClaimHost(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	// rejected claims are a silent no-op, the actor answers the claimer on
	// success
	if _, err := actor.ClaimHost(ctx, memberId); err != nil {
		return fmt.Errorf("failed to claim host: %w", err)
	}

	return nil
}

type UpdateRoomStateInput struct {
	CurrentTime *float64 `json:"current_time"`
	IsPlaying   *bool    `json:"is_playing"`
}

func (c *controller) handleUpdateRoomState(ctx context.Context, _ *websocket.Conn, input UpdateRoomStateInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.UpdateState(ctx, &room.UpdateStateParams{
		SenderId:    memberId,
		CurrentTime: input.CurrentTime,
		IsPlaying:   input.IsPlaying,
	})
	if err != nil {
		// non-authority and out-of-order reports are dropped silently
		if errors.Is(err, room.ErrPermissionDenied) || errors.Is(err, room.ErrStale) {
			return nil
		}

		return fmt.Errorf("failed to update room state: %w", err)
	}

	return nil
}

type SeekInput struct {
	CurrentTime float64 `json:"current_time" validate:"min=0"`
}

func (c *controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.Seek(ctx, &room.SeekParams{
		SenderId:      memberId,
		TargetSeconds: input.CurrentTime,
	})
	if err != nil {
		if errors.Is(err, room.ErrPermissionDenied) {
			return nil
		}

		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

func (c *controller) handleRequestSync(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	if err := actor.RequestSync(ctx, memberId); err != nil {
		return fmt.Errorf("failed to request sync: %w", err)
	}

	return nil
}

type SyncResponseInput struct {
	RequesterId string  `json:"requester_id" validate:"required"`
	CurrentTime float64 `json:"current_time"`
	IsPlaying   bool    `json:"is_playing"`
}

func (c *controller) handleSyncResponse(ctx context.Context, _ *websocket.Conn, input SyncResponseInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.SyncResponse(ctx, &room.SyncResponseParams{
		SenderId:    memberId,
		RequesterId: input.RequesterId,
		CurrentTime: input.CurrentTime,
		IsPlaying:   input.IsPlaying,
	})
	if err != nil {
		if errors.Is(err, room.ErrStale) {
			return nil
		}

		return fmt.Errorf("failed to relay sync response: %w", err)
	}

	return nil
}

type SendMessageInput struct {
	Content   string `json:"content" validate:"required,max=2000"`
	ReplyToId string `json:"reply_to_id"`
}

func (c *controller) handleSendMessage(ctx context.Context, _ *websocket.Conn, input SendMessageInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	_, err = actor.SendMessage(ctx, &room.SendMessageParams{
		SenderId:  memberId,
		Content:   input.Content,
		ReplyToId: input.ReplyToId,
	})
	if err != nil {
		// the actor already answered the sender with SPAM_BLOCKED
		if errors.Is(err, room.ErrRateLimited) || errors.Is(err, room.ErrChatDisabled) {
			return nil
		}

		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

type DeleteMessageInput struct {
	MessageId string `json:"message_id" validate:"required"`
}

func (c *controller) handleDeleteOwnMessage(ctx context.Context, _ *websocket.Conn, input DeleteMessageInput) error {
	return c.deleteMessage(ctx, input.MessageId, false)
}

func (c *controller) handleAdminDeleteMessage(ctx context.Context, _ *websocket.Conn, input DeleteMessageInput) error {
	return c.deleteMessage(ctx, input.MessageId, true)
}

func (c *controller) deleteMessage(ctx context.Context, messageId string, asAdmin bool) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.DeleteMessage(ctx, &room.DeleteMessageParams{
		SenderId:  memberId,
		MessageId: messageId,
		AsAdmin:   asAdmin,
	})
	if err != nil {
		if errors.Is(err, room.ErrPermissionDenied) {
			return nil
		}

		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

type SendReactionInput struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

func (c *controller) handleSendReaction(ctx context.Context, _ *websocket.Conn, input SendReactionInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	if err := actor.SendReaction(ctx, &room.SendReactionParams{
		SenderId: memberId,
		Emoji:    input.Emoji,
	}); err != nil {
		return fmt.Errorf("failed to send reaction: %w", err)
	}

	return nil
}

type ModerationTargetInput struct {
	TargetUserId string `json:"target_user_id" validate:"required"`
	Reason       string `json:"reason" validate:"max=500"`
}

func (c *controller) handleKickUser(ctx context.Context, _ *websocket.Conn, input ModerationTargetInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.Kick(ctx, &room.KickParams{
		SenderId: memberId,
		TargetId: input.TargetUserId,
		Reason:   input.Reason,
	})

	return c.swallowUnauthorized(err, "kick")
}

func (c *controller) handleBanUser(ctx context.Context, _ *websocket.Conn, input ModerationTargetInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.Ban(ctx, &room.BanParams{
		SenderId: memberId,
		TargetId: input.TargetUserId,
		Reason:   input.Reason,
	})

	return c.swallowUnauthorized(err, "ban")
}

func (c *controller) handleUnbanUser(ctx context.Context, _ *websocket.Conn, input ModerationTargetInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.Unban(ctx, &room.UnbanParams{
		SenderId: memberId,
		TargetId: input.TargetUserId,
	})

	return c.swallowUnauthorized(err, "unban")
}

func (c *controller) handleAssignModerator(ctx context.Context, _ *websocket.Conn, input ModerationTargetInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.AssignModerator(ctx, &room.ModeratorParams{
		SenderId: memberId,
		TargetId: input.TargetUserId,
	})

	return c.swallowUnauthorized(err, "assign moderator")
}

func (c *controller) handleRemoveModerator(ctx context.Context, _ *websocket.Conn, input ModerationTargetInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.RemoveModerator(ctx, &room.ModeratorParams{
		SenderId: memberId,
		TargetId: input.TargetUserId,
	})

	return c.swallowUnauthorized(err, "remove moderator")
}

// swallowUnauthorized implements the silent-drop policy: role failures are
// terminal no-ops that must not leak room structure to the caller.
func (c *controller) swallowUnauthorized(err error, op string) error {
	if err == nil || errors.Is(err, room.ErrPermissionDenied) || errors.Is(err, room.ErrMemberNotFound) {
		return nil
	}

	return fmt.Errorf("failed to %s: %w", op, err)
}

type UpdateSettingsInput struct {
	ChatEnabled           *bool `json:"chat_enabled"`
	SpamProtectionEnabled *bool `json:"spam_protection_enabled"`
	SpamCooldownSeconds   *int  `json:"spam_cooldown_seconds" validate:"omitempty,min=1,max=30"`
}

func (c *controller) handleUpdateSettings(ctx context.Context, _ *websocket.Conn, input UpdateSettingsInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.ChangeSettings(ctx, &room.ChangeSettingsParams{
		SenderId:              memberId,
		ChatEnabled:           input.ChatEnabled,
		SpamProtectionEnabled: input.SpamProtectionEnabled,
		SpamCooldownSeconds:   input.SpamCooldownSeconds,
	})

	return c.swallowUnauthorized(err, "update settings")
}

type UpdateStreamInput struct {
	StreamURL    string `json:"stream_url" validate:"required,max=2048"`
	ProviderKind string `json:"provider_kind" validate:"required,oneof=embedded-stream direct-media external-link"`
}

func (c *controller) handleUpdateStream(ctx context.Context, _ *websocket.Conn, input UpdateStreamInput) error {
	actor, memberId, err := c.getActor(ctx)
	if err != nil {
		return err
	}

	err = actor.ChangeStream(ctx, &room.ChangeStreamParams{
		SenderId:     memberId,
		StreamURL:    input.StreamURL,
		ProviderKind: playback.ProviderKind(input.ProviderKind),
	})

	return c.swallowUnauthorized(err, "update stream")
}
