// Package moderation defines the durable moderation store consumed by room
// actors: bans and moderator grants. Records never expire on their own.
package moderation

import "errors"

var (
	ErrBanNotFound = errors.New("ban not found")
)

type Ban struct {
	Reason   string `redis:"reason"`
	BannedBy string `redis:"banned_by"`
	BannedAt int64  `redis:"banned_at"`
}

type BanParams struct {
	RoomId   string
	UserId   string
	BannedBy string
	Reason   string
	BannedAt int64
}
