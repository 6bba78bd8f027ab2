package room

import (
	"context"
	"fmt"
	"time"

	"github.com/watchroom/server/internal/playback"
	"github.com/watchroom/server/internal/repository/roommeta"
	"github.com/watchroom/server/internal/spam"
)

type ChangeSettingsParams struct {
	SenderId              string
	ChatEnabled           *bool
	SpamProtectionEnabled *bool
	SpamCooldownSeconds   *int
}

// ChangeSettings merges a partial settings update. Owner and moderators only;
// the cooldown is clamped to the supported range.
func (a *Actor) ChangeSettings(ctx context.Context, params *ChangeSettingsParams) error {
	return a.enqueue(ctx, func() error {
		return a.changeSettings(ctx, params)
	})
}

func (a *Actor) changeSettings(ctx context.Context, params *ChangeSettingsParams) error {
	role := a.roleOf(params.SenderId)
	if role != RoleOwner && role != RoleModerator {
		return ErrPermissionDenied
	}

	if _, ok := a.participants[params.SenderId]; !ok {
		return ErrMemberNotFound
	}

	if params.ChatEnabled != nil {
		a.settings.ChatEnabled = *params.ChatEnabled
	}
	if params.SpamProtectionEnabled != nil {
		a.settings.SpamProtectionEnabled = *params.SpamProtectionEnabled
	}
	if params.SpamCooldownSeconds != nil {
		clamped := spam.ClampCooldown(time.Duration(*params.SpamCooldownSeconds) * time.Second)
		a.settings.SpamCooldownSeconds = int(clamped / time.Second)
	}

	a.broadcast(ctx, &Output{
		Type:    OutputSettingsChanged,
		Payload: a.settings,
	})

	return nil
}

type ChangeStreamParams struct {
	SenderId     string
	StreamURL    string
	ProviderKind playback.ProviderKind
}

// ChangeStream points the room at a new stream source, resets the playback
// clock and persists the change to the room metadata collaborator.
func (a *Actor) ChangeStream(ctx context.Context, params *ChangeStreamParams) error {
	return a.enqueue(ctx, func() error {
		return a.changeStream(ctx, params)
	})
}

func (a *Actor) changeStream(ctx context.Context, params *ChangeStreamParams) error {
	role := a.roleOf(params.SenderId)
	if role != RoleOwner && role != RoleModerator {
		return ErrPermissionDenied
	}

	if !params.ProviderKind.Valid() {
		return fmt.Errorf("invalid provider kind %q", params.ProviderKind)
	}

	if err := a.metaRepo.UpdateStream(ctx, &roommeta.UpdateStreamParams{
		RoomId:       a.roomId,
		StreamURL:    params.StreamURL,
		ProviderKind: string(params.ProviderKind),
	}); err != nil {
		return fmt.Errorf("failed to persist stream change: %w", err)
	}

	a.streamURL = params.StreamURL
	a.providerKind = params.ProviderKind
	a.player = playback.State{CurrentTime: 0, IsPlaying: false, UpdatedAt: a.now()}
	a.lastSeekAt = time.Time{}

	a.broadcast(ctx, &Output{
		Type: OutputStreamChanged,
		Payload: map[string]any{
			"stream_url":    a.streamURL,
			"provider_kind": a.providerKind,
			"current_time":  0,
			"is_playing":    false,
		},
	})

	return nil
}
