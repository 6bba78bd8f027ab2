// Package room implements the per-room coordination unit. Every active room
// is one actor goroutine consuming a serialized command queue: all mutations
// and the broadcasts reflecting them happen inside the loop, so a command's
// effects are never interleaved with a later command's. Rooms proceed fully
// in parallel with each other.
package room

import (
	"context"
	"errors"
	"time"

	"github.com/watchroom/server/internal/playback"
	"github.com/watchroom/server/internal/repository/chat"
	"github.com/watchroom/server/internal/repository/events"
	"github.com/watchroom/server/internal/repository/moderation"
	"github.com/watchroom/server/internal/repository/roommeta"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomClosed       = errors.New("room closed")
	ErrRoomLocked       = errors.New("room locked")
	ErrBanned           = errors.New("banned from room")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStale            = errors.New("stale command")
	ErrRateLimited      = errors.New("rate limited")
	ErrChatDisabled     = errors.New("chat disabled")
	ErrMemberNotFound   = errors.New("member not found")
)

type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

type Participant struct {
	UserId   string `json:"user_id"`
	ConnId   string `json:"conn_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	IsVip    bool   `json:"is_vip"`
}

type Settings struct {
	ChatEnabled           bool `json:"chat_enabled"`
	SpamProtectionEnabled bool `json:"spam_protection_enabled"`
	SpamCooldownSeconds   int  `json:"spam_cooldown_seconds"`
}

// Snapshot is the full room view a joiner needs for initial sync. The
// playback position is extrapolated to the moment the snapshot is taken.
type Snapshot struct {
	RoomId        string                `json:"room_id"`
	Title         string                `json:"title"`
	StreamURL     string                `json:"stream_url"`
	ProviderKind  playback.ProviderKind `json:"provider_kind"`
	IsPlaying     bool                  `json:"is_playing"`
	CurrentTime   float64               `json:"current_time"`
	HostConnected bool                  `json:"host_connected"`
	Settings      Settings              `json:"settings"`
	Participants  []Participant         `json:"participants"`
	Moderators    []string              `json:"moderators"`
}

// Output is a single event delivered to a client connection.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	OutputRoomState         = "ROOM_STATE"
	OutputHostGranted       = "HOST_GRANTED"
	OutputHostChanged       = "HOST_CHANGED"
	OutputStateUpdated      = "ROOM_STATE_UPDATED"
	OutputHostSeek          = "HOST_SEEK"
	OutputSyncRequest       = "PLAYER_SYNC_REQUEST"
	OutputSyncResponse      = "PLAYER_SYNC_RESPONSE"
	OutputNewMessage        = "NEW_MESSAGE"
	OutputMessageDeleted    = "MESSAGE_DELETED"
	OutputReaction          = "REACTION"
	OutputSpamBlocked       = "SPAM_BLOCKED"
	OutputUserJoined        = "USER_JOINED"
	OutputUserLeft          = "USER_LEFT"
	OutputUserKicked        = "USER_KICKED"
	OutputUserBanned        = "USER_BANNED"
	OutputUserUnbanned      = "USER_UNBANNED"
	OutputYouAreKicked      = "YOU_ARE_KICKED"
	OutputYouAreBanned      = "YOU_ARE_BANNED"
	OutputModeratorAssigned = "MODERATOR_ASSIGNED"
	OutputModeratorRemoved  = "MODERATOR_REMOVED"
	OutputSettingsChanged   = "SETTINGS_CHANGED"
	OutputStreamChanged     = "STREAM_CHANGED"
)

type iModerationRepo interface {
	Ban(context.Context, *moderation.BanParams) error
	Unban(ctx context.Context, roomId, userId string) error
	IsBanned(ctx context.Context, roomId, userId string) (bool, error)
	GetBan(ctx context.Context, roomId, userId string) (moderation.Ban, error)
	GrantModerator(ctx context.Context, roomId, userId string) error
	RevokeModerator(ctx context.Context, roomId, userId string) error
	GetModerators(ctx context.Context, roomId string) ([]string, error)
}

type iChatRepo interface {
	Append(context.Context, *chat.AppendParams) error
	GetMessage(ctx context.Context, roomId, messageId string) (chat.Message, error)
	Delete(ctx context.Context, roomId, messageId string) error
}

type iMetaRepo interface {
	Get(ctx context.Context, roomId string) (roommeta.Meta, error)
	UpdateStream(context.Context, *roommeta.UpdateStreamParams) error
}

type iSpamGovernor interface {
	Check(roomId, userId string, cooldown time.Duration) (time.Duration, bool)
	Forget(roomId, userId string)
}

type iEventPublisher interface {
	Publish(context.Context, events.Event) error
}

// Sender is the gateway surface the actor broadcasts through.
type Sender interface {
	ToMember(ctx context.Context, memberId string, out any)
	CloseMember(ctx context.Context, memberId string)
}

type Config struct {
	// EmptyRoomGrace is how long an empty room keeps its actor alive so a
	// returning host does not lose room state.
	EmptyRoomGrace time.Duration
}
