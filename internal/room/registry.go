package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/exp/maps"

	"github.com/watchroom/server/internal/repository/events"
	"github.com/watchroom/server/internal/repository/roommeta"
	"github.com/watchroom/server/pkg/metrics"
)

// Registry maps room ids to live actors. Actors are created lazily on first
// join and disposed after the empty-room grace expires.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*Actor
	deps   actorDeps
}

type RegistryParams struct {
	ModerationRepo iModerationRepo
	ChatRepo       iChatRepo
	MetaRepo       iMetaRepo
	Governor       iSpamGovernor
	Publisher      iEventPublisher
	Sender         Sender
	Logger         *slog.Logger
	Config         *Config
}

func NewRegistry(params *RegistryParams) *Registry {
	return &Registry{
		actors: make(map[string]*Actor),
		deps: actorDeps{
			moderationRepo: params.ModerationRepo,
			chatRepo:       params.ChatRepo,
			metaRepo:       params.MetaRepo,
			governor:       params.Governor,
			publisher:      params.Publisher,
			sender:         params.Sender,
			logger:         params.Logger,
			cfg:            params.Config,
			now:            time.Now,
		},
	}
}

// GetOrCreate returns the live actor for roomId, creating it from the room
// metadata collaborator on first join. A missing room fails closed.
func (r *Registry) GetOrCreate(ctx context.Context, roomId string) (*Actor, error) {
	r.mu.Lock()
	if a, ok := r.actors[roomId]; ok {
		r.mu.Unlock()
		return a, nil
	}
	r.mu.Unlock()

	meta, err := r.deps.metaRepo.Get(ctx, roomId)
	if err != nil {
		if err == roommeta.ErrRoomNotFound {
			return nil, ErrRoomNotFound
		}

		return nil, fmt.Errorf("failed to get room metadata: %w", err)
	}

	moderators, err := r.deps.moderationRepo.GetModerators(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderators: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// lost the race, someone else created it meanwhile
	if a, ok := r.actors[roomId]; ok {
		return a, nil
	}

	a := newActor(roomId, meta, moderators, r.deps, func() {
		r.remove(roomId)
	})
	r.actors[roomId] = a
	metrics.ActiveRooms.Set(float64(len(r.actors)))

	r.deps.logger.InfoContext(ctx, "room actor created", "room_id", roomId)

	if err := r.deps.publisher.Publish(ctx, events.Event{
		Type:   events.TypeRoomCreated,
		RoomId: roomId,
		At:     time.Now().Unix(),
	}); err != nil {
		r.deps.logger.InfoContext(ctx, "failed to publish room_created", "error", err)
	}

	return a, nil
}

func (r *Registry) Get(roomId string) (*Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[roomId]
	return a, ok
}

func (r *Registry) remove(roomId string) {
	r.mu.Lock()
	a, ok := r.actors[roomId]
	if ok {
		delete(r.actors, roomId)
	}
	metrics.ActiveRooms.Set(float64(len(r.actors)))
	r.mu.Unlock()

	if !ok {
		return
	}

	a.close()
	r.deps.logger.Info("room actor disposed", "room_id", roomId)

	ctx := context.Background()
	if err := r.deps.publisher.Publish(ctx, events.Event{
		Type:   events.TypeRoomClosed,
		RoomId: roomId,
		At:     time.Now().Unix(),
	}); err != nil {
		r.deps.logger.Info("failed to publish room_closed", "error", err)
	}
}

// ActiveRoomIds snapshots the ids of all live actors.
func (r *Registry) ActiveRoomIds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Keys(r.actors)
}

// Shutdown disposes every live actor.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	actors := maps.Values(r.actors)
	r.actors = make(map[string]*Actor)
	metrics.ActiveRooms.Set(0)
	r.mu.Unlock()

	for _, a := range actors {
		a.close()
	}
}
