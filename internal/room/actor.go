package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/watchroom/server/internal/playback"
	"github.com/watchroom/server/internal/repository/roommeta"
	"github.com/watchroom/server/pkg/metrics"
)

// Actor owns all mutable state of one room. Commands enter through the cmds
// channel and run one at a time in the loop goroutine; nothing outside the
// loop touches the state.
type Actor struct {
	roomId string

	cmds chan func()
	done chan struct{}

	// everything below is loop-owned
	title        string
	ownerId      string
	streamURL    string
	providerKind playback.ProviderKind
	isLocked     bool

	hostConnected bool
	authorityId   string
	player        playback.State
	lastSeekAt    time.Time

	settings     Settings
	participants map[string]*Participant
	moderators   map[string]struct{}

	idleTimer *time.Timer
	onIdle    func()

	moderationRepo iModerationRepo
	chatRepo       iChatRepo
	metaRepo       iMetaRepo
	governor       iSpamGovernor
	publisher      iEventPublisher
	sender         Sender
	logger         *slog.Logger
	cfg            *Config
	now            func() time.Time
}

type actorDeps struct {
	moderationRepo iModerationRepo
	chatRepo       iChatRepo
	metaRepo       iMetaRepo
	governor       iSpamGovernor
	publisher      iEventPublisher
	sender         Sender
	logger         *slog.Logger
	cfg            *Config
	now            func() time.Time
}

func newActor(roomId string, meta roommeta.Meta, moderators []string, deps actorDeps, onIdle func()) *Actor {
	a := &Actor{
		roomId:         roomId,
		cmds:           make(chan func(), 64),
		done:           make(chan struct{}),
		title:          meta.Title,
		ownerId:        meta.OwnerId,
		streamURL:      meta.StreamURL,
		providerKind:   playback.ProviderKind(meta.ProviderKind),
		isLocked:       meta.IsLocked,
		settings: Settings{
			ChatEnabled:           meta.ChatEnabled,
			SpamProtectionEnabled: meta.SpamProtectionEnabled,
			SpamCooldownSeconds:   meta.SpamCooldownSeconds,
		},
		participants:   make(map[string]*Participant),
		moderators:     make(map[string]struct{}, len(moderators)),
		moderationRepo: deps.moderationRepo,
		chatRepo:       deps.chatRepo,
		metaRepo:       deps.metaRepo,
		governor:       deps.governor,
		publisher:      deps.publisher,
		sender:         deps.sender,
		logger:         deps.logger.With("room_id", roomId),
		cfg:            deps.cfg,
		now:            deps.now,
		onIdle:         onIdle,
	}

	for _, userId := range moderators {
		a.moderators[userId] = struct{}{}
	}

	go a.run()

	return a
}

func (a *Actor) RoomId() string {
	return a.roomId
}

func (a *Actor) run() {
	for {
		select {
		case fn := <-a.cmds:
			fn()
		case <-a.done:
			return
		}
	}
}

// close stops the loop. Loop-owned; reachable only through commands or the
// registry's idle path.
func (a *Actor) close() {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

type result[T any] struct {
	value T
	err   error
}

// request runs fn inside the actor loop and waits for its result.
func request[T any](ctx context.Context, a *Actor, fn func() (T, error)) (T, error) {
	var zero T
	rc := make(chan result[T], 1)

	select {
	case a.cmds <- func() { v, err := fn(); rc <- result[T]{value: v, err: err} }:
	case <-a.done:
		return zero, ErrRoomClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-rc:
		return r.value, r.err
	case <-a.done:
		return zero, ErrRoomClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (a *Actor) enqueue(ctx context.Context, fn func() error) error {
	_, err := request(ctx, a, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return err
}

// authorityParticipant returns the participant currently permitted to publish
// playback state, if connected.
func (a *Actor) authorityParticipant() *Participant {
	if a.authorityId == "" {
		return nil
	}

	return a.participants[a.authorityId]
}

// isAuthority reports whether userId may publish playback updates right now.
// While the host is connected only the host qualifies. While the host is
// away, a previously assigned moderator qualifies: the first one to publish
// becomes the single acting authority until the owner reclaims.
func (a *Actor) isAuthority(userId string) bool {
	if a.hostConnected {
		return userId == a.authorityId
	}

	if a.authorityId != "" {
		return userId == a.authorityId
	}

	_, isModerator := a.moderators[userId]
	return isModerator
}

// promoteIfNeeded records userId as the acting authority when the seat is
// vacant. Callers must have passed isAuthority first.
func (a *Actor) promoteIfNeeded(userId string) {
	if a.authorityId == "" {
		a.authorityId = userId
		a.logger.Info("moderator took playback authority", "user_id", userId)
	}
}

func (a *Actor) roleOf(userId string) Role {
	if userId == a.ownerId {
		return RoleOwner
	}

	if _, ok := a.moderators[userId]; ok {
		return RoleModerator
	}

	return RoleMember
}

func (a *Actor) snapshot() Snapshot {
	participants := make([]Participant, 0, len(a.participants))
	for _, p := range a.participants {
		participants = append(participants, *p)
	}

	moderators := make([]string, 0, len(a.moderators))
	for userId := range a.moderators {
		moderators = append(moderators, userId)
	}

	player := playback.Extrapolate(a.player, a.now())

	return Snapshot{
		RoomId:        a.roomId,
		Title:         a.title,
		StreamURL:     a.streamURL,
		ProviderKind:  a.providerKind,
		IsPlaying:     player.IsPlaying,
		CurrentTime:   player.CurrentTime,
		HostConnected: a.hostConnected,
		Settings:      a.settings,
		Participants:  participants,
		Moderators:    moderators,
	}
}

// broadcast fans an event out to every participant except those in exclude.
// Runs inside the loop, after the mutation it reflects.
func (a *Actor) broadcast(ctx context.Context, out *Output, exclude ...string) {
	for userId := range a.participants {
		skip := false
		for _, ex := range exclude {
			if userId == ex {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		a.sender.ToMember(ctx, userId, out)
		metrics.BroadcastsSent.Inc()
	}
}

func (a *Actor) startIdleTimer() {
	a.stopIdleTimer()

	a.idleTimer = time.AfterFunc(a.cfg.EmptyRoomGrace, func() {
		select {
		case a.cmds <- func() {
			if len(a.participants) == 0 {
				a.logger.Info("room idle grace expired, disposing actor")
				a.onIdle()
			}
		}:
		case <-a.done:
		}
	})
}

func (a *Actor) stopIdleTimer() {
	if a.idleTimer != nil {
		a.idleTimer.Stop()
		a.idleTimer = nil
	}
}
