package room

import (
	"context"

	"github.com/watchroom/server/internal/playback"
)

type UpdateStateParams struct {
	SenderId    string
	CurrentTime *float64
	IsPlaying   *bool
}

// UpdateState merges a periodic authoritative clock report. Only the acting
// authority is accepted; everyone else is dropped without a reply. Reports
// that would rewind the clock are treated as stale out-of-order ticks —
// rewinds go through Seek.
func (a *Actor) UpdateState(ctx context.Context, params *UpdateStateParams) error {
	return a.enqueue(ctx, func() error {
		return a.updateState(ctx, params)
	})
}

func (a *Actor) updateState(ctx context.Context, params *UpdateStateParams) error {
	if !a.isAuthority(params.SenderId) {
		return ErrPermissionDenied
	}
	a.promoteIfNeeded(params.SenderId)

	if params.CurrentTime != nil && *params.CurrentTime < a.player.CurrentTime {
		return ErrStale
	}

	if params.CurrentTime != nil {
		a.player.CurrentTime = *params.CurrentTime
	}
	if params.IsPlaying != nil {
		a.player.IsPlaying = *params.IsPlaying
	}
	a.player.UpdatedAt = a.now()

	a.broadcast(ctx, &Output{
		Type: OutputStateUpdated,
		Payload: map[string]any{
			"current_time": a.player.CurrentTime,
			"is_playing":   a.player.IsPlaying,
		},
	}, params.SenderId)

	return nil
}

type SeekParams struct {
	SenderId      string
	TargetSeconds float64
}

// Seek jumps the authoritative clock and broadcasts an unconditional resync:
// viewers snap immediately, bypassing the drift thresholds.
func (a *Actor) Seek(ctx context.Context, params *SeekParams) error {
	return a.enqueue(ctx, func() error {
		return a.seek(ctx, params)
	})
}

func (a *Actor) seek(ctx context.Context, params *SeekParams) error {
	if !a.isAuthority(params.SenderId) {
		return ErrPermissionDenied
	}
	a.promoteIfNeeded(params.SenderId)

	a.player.CurrentTime = params.TargetSeconds
	a.player.UpdatedAt = a.now()
	a.lastSeekAt = a.now()

	a.broadcast(ctx, &Output{
		Type: OutputHostSeek,
		Payload: map[string]any{
			"current_time": a.player.CurrentTime,
			"is_playing":   a.player.IsPlaying,
		},
	}, params.SenderId)

	return nil
}

// RequestSync forwards a point-to-point sync request to the authority's
// connection. The actor never blocks on the answer: the authority replies
// with SyncResponse whenever it does, and requesters apply their own timeout.
// With no authority present the request is dropped.
func (a *Actor) RequestSync(ctx context.Context, requesterId string) error {
	return a.enqueue(ctx, func() error {
		return a.requestSync(ctx, requesterId)
	})
}

func (a *Actor) requestSync(ctx context.Context, requesterId string) error {
	if _, ok := a.participants[requesterId]; !ok {
		return ErrMemberNotFound
	}

	authority := a.authorityParticipant()
	if authority == nil {
		a.logger.Debug("sync request dropped, no authority present", "requester_id", requesterId)
		return nil
	}

	a.sender.ToMember(ctx, authority.UserId, &Output{
		Type: OutputSyncRequest,
		Payload: map[string]any{
			"requester_id": requesterId,
		},
	})

	return nil
}

type SyncResponseParams struct {
	SenderId    string
	RequesterId string
	CurrentTime float64
	IsPlaying   bool
}

// SyncResponse relays the authority's live player state to the original
// requester only. Answers from anyone but the current authority are stale
// and dropped.
func (a *Actor) SyncResponse(ctx context.Context, params *SyncResponseParams) error {
	return a.enqueue(ctx, func() error {
		return a.syncResponse(ctx, params)
	})
}

func (a *Actor) syncResponse(ctx context.Context, params *SyncResponseParams) error {
	if params.SenderId != a.authorityId {
		return ErrStale
	}

	if _, ok := a.participants[params.RequesterId]; !ok {
		return ErrMemberNotFound
	}

	a.sender.ToMember(ctx, params.RequesterId, &Output{
		Type: OutputSyncResponse,
		Payload: map[string]any{
			"current_time": params.CurrentTime,
			"is_playing":   params.IsPlaying,
		},
	})

	return nil
}

// PlayerState returns the current authoritative clock, extrapolated while
// playing.
func (a *Actor) PlayerState(ctx context.Context) (playback.State, error) {
	return request(ctx, a, func() (playback.State, error) {
		return playback.Extrapolate(a.player, a.now()), nil
	})
}
