// Package events defines the outbound feed of room lifecycle and chat events
// consumed by the external notification/leveling service.
package events

const Channel = "room-events"

const (
	TypeRoomCreated  = "room_created"
	TypeRoomClosed   = "room_closed"
	TypeMemberJoined = "member_joined"
	TypeMemberLeft   = "member_left"
	TypeMessageSent  = "message_sent"
)

type Event struct {
	Type   string `json:"type"`
	RoomId string `json:"room_id"`
	UserId string `json:"user_id,omitempty"`
	At     int64  `json:"at"`
}
