package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/pkg/wsrouter"
)

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.logger, wsrouter.WithRateLimit(inboundRate, inboundBurst))

	mux.Handle("ALIVE", handle(c, c.handleAlive))

	// host & player
	mux.Handle("CLAIM_HOST", handle(c, c.handleClaimHost))
	mux.Handle("UPDATE_ROOM_STATE", handle(c, c.handleUpdateRoomState))
	mux.Handle("SEEK", handle(c, c.handleSeek))
	mux.Handle("REQUEST_SYNC", handle(c, c.handleRequestSync))
	mux.Handle("SYNC_RESPONSE", handle(c, c.handleSyncResponse))

	// chat
	mux.Handle("SEND_MESSAGE", handle(c, c.handleSendMessage))
	mux.Handle("DELETE_OWN_MESSAGE", handle(c, c.handleDeleteOwnMessage))
	mux.Handle("ADMIN_DELETE_MESSAGE", handle(c, c.handleAdminDeleteMessage))
	mux.Handle("SEND_REACTION", handle(c, c.handleSendReaction))

	// moderation
	mux.Handle("KICK_USER", handle(c, c.handleKickUser))
	mux.Handle("BAN_USER", handle(c, c.handleBanUser))
	mux.Handle("UNBAN_USER", handle(c, c.handleUnbanUser))
	mux.Handle("ASSIGN_MODERATOR", handle(c, c.handleAssignModerator))
	mux.Handle("REMOVE_MODERATOR", handle(c, c.handleRemoveModerator))

	// settings
	mux.Handle("UPDATE_SETTINGS", handle(c, c.handleUpdateSettings))
	mux.Handle("UPDATE_STREAM", handle(c, c.handleUpdateStream))

	return mux
}

// handle decodes and validates the frame payload into the handler's typed
// input.
func handle[T any](c *controller, h func(ctx context.Context, conn *websocket.Conn, input T) error) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		if validationErrors, ok := c.validate.Validate(input); !ok {
			return fmt.Errorf("invalid payload: %v", validationErrors)
		}

		return h(ctx, conn, input)
	}
}
