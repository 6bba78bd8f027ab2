// Package roommeta defines the room-metadata lookup the engine consumes from
// the surrounding product: title, stream source, lock state and ownership.
package roommeta

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
)

type Meta struct {
	Title                 string `redis:"title"`
	OwnerId               string `redis:"owner_id"`
	StreamURL             string `redis:"stream_url"`
	ProviderKind          string `redis:"provider_kind"`
	IsLocked              bool   `redis:"is_locked"`
	ChatEnabled           bool   `redis:"chat_enabled"`
	SpamProtectionEnabled bool   `redis:"spam_protection_enabled"`
	SpamCooldownSeconds   int    `redis:"spam_cooldown_seconds"`
}

type SetParams struct {
	RoomId string
	Meta   Meta
}

type UpdateStreamParams struct {
	RoomId       string
	StreamURL    string
	ProviderKind string
}
