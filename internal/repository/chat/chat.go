// Package chat defines the append-only chat history collaborator. The engine
// only requires live delivery; history persistence is best-effort and callers
// must tolerate failures.
package chat

import "errors"

var (
	ErrMessageNotFound = errors.New("message not found")
)

type Message struct {
	Id        string `redis:"id" json:"id"`
	AuthorId  string `redis:"author_id" json:"author_id"`
	Username  string `redis:"username" json:"username"`
	Content   string `redis:"content" json:"content"`
	ReplyToId string `redis:"reply_to_id" json:"reply_to_id,omitempty"`
	CreatedAt int64  `redis:"created_at" json:"created_at"`
	Deleted   bool   `redis:"deleted" json:"deleted,omitempty"`
}

type AppendParams struct {
	RoomId  string
	Message Message
}
