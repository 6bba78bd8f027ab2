package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchroom/server/internal/repository/roommeta"
	"github.com/watchroom/server/internal/spam"
)

const roomIdLength = 8

type CreateRoomInput struct {
	Title                 string `json:"title" validate:"required,max=200"`
	OwnerId               string `json:"owner_id" validate:"required"`
	StreamURL             string `json:"stream_url" validate:"required,max=2048"`
	ProviderKind          string `json:"provider_kind" validate:"required,oneof=embedded-stream direct-media external-link"`
	IsLocked              bool   `json:"is_locked"`
	ChatEnabled           *bool  `json:"chat_enabled"`
	SpamProtectionEnabled *bool  `json:"spam_protection_enabled"`
	SpamCooldownSeconds   int    `json:"spam_cooldown_seconds" validate:"omitempty,min=1,max=30"`
}

// CreateRoom provisions room metadata. In the full product this lives in the
// surrounding CRUD service; the engine ships it so rooms can be created
// against the same store it reads.
func (c *controller) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"errors": validationErrors})
		return
	}

	chatEnabled := true
	if input.ChatEnabled != nil {
		chatEnabled = *input.ChatEnabled
	}

	spamProtectionEnabled := true
	if input.SpamProtectionEnabled != nil {
		spamProtectionEnabled = *input.SpamProtectionEnabled
	}

	cooldownSeconds := input.SpamCooldownSeconds
	if cooldownSeconds == 0 {
		cooldownSeconds = int(spam.DefaultCooldown.Seconds())
	}

	roomId := c.generator.GenerateRandomString(roomIdLength)
	err := c.metaRepo.Set(ctx, &roommeta.SetParams{
		RoomId: roomId,
		Meta: roommeta.Meta{
			Title:                 input.Title,
			OwnerId:               input.OwnerId,
			StreamURL:             input.StreamURL,
			ProviderKind:          input.ProviderKind,
			IsLocked:              input.IsLocked,
			ChatEnabled:           chatEnabled,
			SpamProtectionEnabled: spamProtectionEnabled,
			SpamCooldownSeconds:   cooldownSeconds,
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create room", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"room_id": roomId})
}

// GetChatHistory serves the persisted tail of a room's chat. Deleted
// messages come back as tombstones.
func (c *controller) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomId := chi.URLParam(r, "room-id")

	if _, err := c.metaRepo.Get(ctx, roomId); err != nil {
		if errors.Is(err, roommeta.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		c.logger.ErrorContext(ctx, "failed to get room metadata", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	messages, err := c.chatRepo.GetHistory(ctx, roomId)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get chat history", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}
