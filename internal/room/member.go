package room

import (
	"context"
	"fmt"

	"github.com/watchroom/server/internal/playback"
	"github.com/watchroom/server/internal/repository/events"
)

type JoinParams struct {
	UserId   string
	ConnId   string
	Username string
	IsVip    bool
}

type JoinResponse struct {
	Snapshot  Snapshot
	BanReason string
}

// Join admits a participant after the ban check and returns the full room
// snapshot for initial sync. A locked room admits only its owner.
func (a *Actor) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	return request(ctx, a, func() (JoinResponse, error) {
		return a.join(ctx, params)
	})
}

func (a *Actor) join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	if a.isLocked && params.UserId != a.ownerId {
		return JoinResponse{}, ErrRoomLocked
	}

	isBanned, err := a.moderationRepo.IsBanned(ctx, a.roomId, params.UserId)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("failed to check ban: %w", err)
	}

	if isBanned {
		reason := ""
		if ban, err := a.moderationRepo.GetBan(ctx, a.roomId, params.UserId); err == nil {
			reason = ban.Reason
		}

		return JoinResponse{BanReason: reason}, ErrBanned
	}

	a.stopIdleTimer()

	// a join over an existing membership is a session replacement, the
	// roster did not change
	_, rejoining := a.participants[params.UserId]

	a.participants[params.UserId] = &Participant{
		UserId:   params.UserId,
		ConnId:   params.ConnId,
		Username: params.Username,
		Role:     a.roleOf(params.UserId),
		IsVip:    params.IsVip,
	}

	if !rejoining {
		a.broadcast(ctx, &Output{
			Type:    OutputUserJoined,
			Payload: *a.participants[params.UserId],
		}, params.UserId)

		if err := a.publisher.Publish(ctx, events.Event{
			Type:   events.TypeMemberJoined,
			RoomId: a.roomId,
			UserId: params.UserId,
			At:     a.now().Unix(),
		}); err != nil {
			a.logger.InfoContext(ctx, "failed to publish member_joined", "error", err)
		}
	}

	resp := JoinResponse{Snapshot: a.snapshot()}

	// the initial sync goes out from inside the loop so no broadcast from a
	// later command can reach the joiner ahead of their snapshot
	a.sender.ToMember(ctx, params.UserId, &Output{
		Type:    OutputRoomState,
		Payload: resp.Snapshot,
	})

	return resp, nil
}

// Leave removes a participant. Losing the acting authority transitions the
// room to host-disconnected: playback is not paused, viewers keep
// extrapolating from the last known state.
func (a *Actor) Leave(ctx context.Context, userId string) error {
	return a.enqueue(ctx, func() error {
		return a.leave(ctx, userId)
	})
}

func (a *Actor) leave(ctx context.Context, userId string) error {
	if _, ok := a.participants[userId]; !ok {
		return ErrMemberNotFound
	}

	delete(a.participants, userId)
	a.governor.Forget(a.roomId, userId)

	if userId == a.authorityId {
		a.authorityLost(ctx)
	}

	a.broadcast(ctx, &Output{
		Type:    OutputUserLeft,
		Payload: map[string]any{"user_id": userId},
	})

	if err := a.publisher.Publish(ctx, events.Event{
		Type:   events.TypeMemberLeft,
		RoomId: a.roomId,
		UserId: userId,
		At:     a.now().Unix(),
	}); err != nil {
		a.logger.InfoContext(ctx, "failed to publish member_left", "error", err)
	}

	if len(a.participants) == 0 {
		a.startIdleTimer()
	}

	return nil
}

// authorityLost pins the clock at its extrapolated position and announces the
// transition. Playback deliberately continues: host loss is a state change,
// not a fault.
func (a *Actor) authorityLost(ctx context.Context) {
	a.player = playback.Extrapolate(a.player, a.now())
	a.hostConnected = false
	a.authorityId = ""

	a.logger.Info("authority disconnected, viewers continue independently",
		"current_time", a.player.CurrentTime,
		"is_playing", a.player.IsPlaying,
	)

	a.broadcast(ctx, &Output{
		Type: OutputHostChanged,
		Payload: map[string]any{
			"host_connected": false,
			"current_time":   a.player.CurrentTime,
		},
	})
}

// ClaimHost grants playback authority to the configured owner. Idempotent
// for the current host; any other claimant is a silent no-op, not an error.
func (a *Actor) ClaimHost(ctx context.Context, userId string) (bool, error) {
	return request(ctx, a, func() (bool, error) {
		return a.claimHost(ctx, userId), nil
	})
}

func (a *Actor) claimHost(ctx context.Context, userId string) bool {
	if userId != a.ownerId {
		a.logger.Info("host claim ignored", "user_id", userId)
		return false
	}

	if _, ok := a.participants[userId]; !ok {
		return false
	}

	if a.hostConnected && a.authorityId == userId {
		return true
	}

	a.hostConnected = true
	a.authorityId = userId

	a.sender.ToMember(ctx, userId, &Output{Type: OutputHostGranted})

	a.broadcast(ctx, &Output{
		Type: OutputHostChanged,
		Payload: map[string]any{
			"host_connected": true,
		},
	}, userId)

	return true
}
