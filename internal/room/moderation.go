package room

import (
	"context"
	"fmt"

	"github.com/watchroom/server/internal/repository/moderation"
	"github.com/watchroom/server/pkg/metrics"
)

type KickParams struct {
	SenderId string
	TargetId string
	Reason   string
}

// Kick removes a participant from the room. Owner may kick anyone but
// themselves; moderators may kick plain members only. The target learns
// point-to-point, the room gets the anonymous broadcast, then membership is
// dropped and the connection closed. The target may rejoin.
func (a *Actor) Kick(ctx context.Context, params *KickParams) error {
	return a.enqueue(ctx, func() error {
		return a.kick(ctx, params)
	})
}

func (a *Actor) kick(ctx context.Context, params *KickParams) error {
	if err := a.checkKickAllowed(params.SenderId, params.TargetId); err != nil {
		return err
	}

	a.sender.ToMember(ctx, params.TargetId, &Output{
		Type: OutputYouAreKicked,
		Payload: map[string]any{
			"reason": params.Reason,
		},
	})

	a.removeAndClose(ctx, params.TargetId)

	a.broadcast(ctx, &Output{
		Type: OutputUserKicked,
		Payload: map[string]any{
			"user_id": params.TargetId,
		},
	})
	metrics.ModerationActions.WithLabelValues("kick").Inc()

	return nil
}

func (a *Actor) checkKickAllowed(senderId, targetId string) error {
	if senderId == targetId {
		return ErrPermissionDenied
	}

	senderRole := a.roleOf(senderId)
	if senderRole != RoleOwner && senderRole != RoleModerator {
		return ErrPermissionDenied
	}

	target, ok := a.participants[targetId]
	if !ok {
		return ErrMemberNotFound
	}

	// strict hierarchy: moderators only reach below themselves
	if senderRole == RoleModerator && target.Role != RoleMember {
		return ErrPermissionDenied
	}

	return nil
}

// removeAndClose drops the target's membership and transport. An acting
// authority losing membership triggers the host-disconnected transition.
func (a *Actor) removeAndClose(ctx context.Context, targetId string) {
	delete(a.participants, targetId)
	a.governor.Forget(a.roomId, targetId)

	if targetId == a.authorityId {
		a.authorityLost(ctx)
	}

	a.sender.CloseMember(ctx, targetId)

	if len(a.participants) == 0 {
		a.startIdleTimer()
	}
}

type BanParams struct {
	SenderId string
	TargetId string
	Reason   string
}

// Ban is owner-only: a durable ban record plus a kick. A banned user cannot
// rejoin until explicitly unbanned.
func (a *Actor) Ban(ctx context.Context, params *BanParams) error {
	return a.enqueue(ctx, func() error {
		return a.ban(ctx, params)
	})
}

func (a *Actor) ban(ctx context.Context, params *BanParams) error {
	if a.roleOf(params.SenderId) != RoleOwner || params.SenderId == params.TargetId {
		return ErrPermissionDenied
	}

	if err := a.moderationRepo.Ban(ctx, &moderation.BanParams{
		RoomId:   a.roomId,
		UserId:   params.TargetId,
		BannedBy: params.SenderId,
		Reason:   params.Reason,
		BannedAt: a.now().Unix(),
	}); err != nil {
		return fmt.Errorf("failed to persist ban: %w", err)
	}

	if _, ok := a.participants[params.TargetId]; ok {
		a.sender.ToMember(ctx, params.TargetId, &Output{
			Type: OutputYouAreBanned,
			Payload: map[string]any{
				"reason": params.Reason,
			},
		})

		a.removeAndClose(ctx, params.TargetId)
	}

	a.broadcast(ctx, &Output{
		Type: OutputUserBanned,
		Payload: map[string]any{
			"user_id": params.TargetId,
		},
	})
	metrics.ModerationActions.WithLabelValues("ban").Inc()

	return nil
}

type UnbanParams struct {
	SenderId string
	TargetId string
}

func (a *Actor) Unban(ctx context.Context, params *UnbanParams) error {
	return a.enqueue(ctx, func() error {
		return a.unban(ctx, params)
	})
}

func (a *Actor) unban(ctx context.Context, params *UnbanParams) error {
	if a.roleOf(params.SenderId) != RoleOwner {
		return ErrPermissionDenied
	}

	if err := a.moderationRepo.Unban(ctx, a.roomId, params.TargetId); err != nil {
		if err == moderation.ErrBanNotFound {
			return nil
		}

		return fmt.Errorf("failed to remove ban: %w", err)
	}

	a.broadcast(ctx, &Output{
		Type: OutputUserUnbanned,
		Payload: map[string]any{
			"user_id": params.TargetId,
		},
	})
	metrics.ModerationActions.WithLabelValues("unban").Inc()

	return nil
}

type ModeratorParams struct {
	SenderId string
	TargetId string
}

// AssignModerator grants the room moderator role, persisted so the grant
// survives the target's reconnects and the actor's hibernation.
func (a *Actor) AssignModerator(ctx context.Context, params *ModeratorParams) error {
	return a.enqueue(ctx, func() error {
		return a.assignModerator(ctx, params)
	})
}

func (a *Actor) assignModerator(ctx context.Context, params *ModeratorParams) error {
	if a.roleOf(params.SenderId) != RoleOwner || params.TargetId == a.ownerId {
		return ErrPermissionDenied
	}

	if err := a.moderationRepo.GrantModerator(ctx, a.roomId, params.TargetId); err != nil {
		return fmt.Errorf("failed to persist moderator grant: %w", err)
	}

	a.moderators[params.TargetId] = struct{}{}
	if p, ok := a.participants[params.TargetId]; ok {
		p.Role = RoleModerator
	}

	a.broadcast(ctx, &Output{
		Type: OutputModeratorAssigned,
		Payload: map[string]any{
			"user_id": params.TargetId,
		},
	})
	metrics.ModerationActions.WithLabelValues("assign_moderator").Inc()

	return nil
}

func (a *Actor) RemoveModerator(ctx context.Context, params *ModeratorParams) error {
	return a.enqueue(ctx, func() error {
		return a.removeModerator(ctx, params)
	})
}

func (a *Actor) removeModerator(ctx context.Context, params *ModeratorParams) error {
	if a.roleOf(params.SenderId) != RoleOwner {
		return ErrPermissionDenied
	}

	if err := a.moderationRepo.RevokeModerator(ctx, a.roomId, params.TargetId); err != nil {
		return fmt.Errorf("failed to revoke moderator grant: %w", err)
	}

	delete(a.moderators, params.TargetId)
	if p, ok := a.participants[params.TargetId]; ok {
		p.Role = RoleMember
	}

	// a demoted acting authority stops publishing immediately
	if !a.hostConnected && params.TargetId == a.authorityId {
		a.authorityLost(ctx)
	}

	a.broadcast(ctx, &Output{
		Type: OutputModeratorRemoved,
		Payload: map[string]any{
			"user_id": params.TargetId,
		},
	})
	metrics.ModerationActions.WithLabelValues("remove_moderator").Inc()

	return nil
}
