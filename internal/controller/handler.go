package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/watchroom/server/internal/room"
	"github.com/watchroom/server/pkg/ctxlogger"
	"github.com/watchroom/server/pkg/metrics"
)

// JoinRoom upgrades the connection and binds it to the target room's actor.
// Identity is taken as verified by an upstream auth layer; connections
// without a user id join as ephemeral guests.
func (c *controller) JoinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomId := chi.URLParam(r, "room-id")

	userId := r.URL.Query().Get("user-id")
	if userId == "" {
		userId = "guest-" + uuid.NewString()
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = "guest"
	}

	isVip := r.URL.Query().Get("vip") == "1"

	actor, err := c.registry.GetOrCreate(ctx, roomId)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		c.logger.ErrorContext(ctx, "failed to resolve room", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to upgrade connection", "error", err)
		return
	}

	// newest session wins within a room: an identity reconnecting over a
	// live session drops the previous transport and keeps its roster entry.
	// A session live in another room keeps it and the new dial is refused.
	if existingRoomId, err := c.connRepo.GetMemberRoomId(userId); err == nil {
		if existingRoomId != roomId {
			c.logger.InfoContext(ctx, "member already connected elsewhere", "member_id", userId)
			conn.Close()
			return
		}

		c.connRepo.RemoveByMemberId(userId)
		c.logger.InfoContext(ctx, "previous session replaced", "member_id", userId)
	}

	// the connection is registered before the join so the actor can deliver
	// the initial snapshot through the serialized sender path
	if err := c.connRepo.Add(conn, userId, roomId); err != nil {
		c.logger.InfoContext(ctx, "failed to register connection", "error", err)
		conn.Close()
		return
	}
	metrics.OpenConnections.Inc()

	joinResp, err := actor.Join(ctx, &room.JoinParams{
		UserId:   userId,
		ConnId:   uuid.NewString(),
		Username: username,
		IsVip:    isVip,
	})
	if err != nil {
		var out *room.Output
		switch {
		case errors.Is(err, room.ErrBanned):
			out = &room.Output{
				Type:    room.OutputYouAreBanned,
				Payload: map[string]any{"reason": joinResp.BanReason},
			}
		case errors.Is(err, room.ErrRoomLocked):
			out = &room.Output{
				Type:    "ROOM_LOCKED",
				Payload: map[string]any{},
			}
		default:
			c.logger.InfoContext(ctx, "failed to join room", "error", err)
		}

		if out != nil {
			if wc, connErr := c.connRepo.GetConn(userId); connErr == nil {
				wc.WriteJSON(out)
			}
		}

		c.connRepo.RemoveByConn(conn)
		conn.Close()
		metrics.OpenConnections.Dec()
		return
	}

	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, userId)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomId))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", userId))

	c.logger.InfoContext(ctx, "member connected")

	if err := c.wsRouter.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
	metrics.OpenConnections.Dec()

	// leave only when this connection is still the member's registered
	// session; a kicked, banned or replaced connection was already
	// unregistered and its membership handled elsewhere
	if _, err := c.connRepo.RemoveByConn(conn); err == nil {
		conn.Close()

		if err := actor.Leave(ctx, userId); err != nil && !errors.Is(err, room.ErrMemberNotFound) && !errors.Is(err, room.ErrRoomClosed) {
			c.logger.InfoContext(ctx, "failed to leave room", "error", err)
		}
	}

	c.logger.InfoContext(ctx, "member disconnected")
}
