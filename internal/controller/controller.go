package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/watchroom/server/internal/repository/chat"
	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/internal/repository/roommeta"
	"github.com/watchroom/server/internal/room"
	"github.com/watchroom/server/pkg/randstr"
	"github.com/watchroom/server/pkg/validator"
	"github.com/watchroom/server/pkg/wsrouter"
)

// inboundRate caps frames per connection; a well-behaved client ticks state
// every few seconds, so this is purely an abuse guard.
const (
	inboundRate  rate.Limit = 20
	inboundBurst            = 40
)

type iRoomRegistry interface {
	GetOrCreate(ctx context.Context, roomId string) (*room.Actor, error)
	Get(roomId string) (*room.Actor, bool)
}

type iConnRepo interface {
	Add(conn *websocket.Conn, memberId, roomId string) error
	RemoveByConn(conn *websocket.Conn) (string, error)
	RemoveByMemberId(memberId string) error
	GetConn(memberId string) (*connection.Conn, error)
	GetMemberRoomId(memberId string) (string, error)
	GetMemberId(conn *websocket.Conn) (string, error)
	GetRoomId(conn *websocket.Conn) (string, error)
}

type iMetaRepo interface {
	Set(context.Context, *roommeta.SetParams) error
	Get(ctx context.Context, roomId string) (roommeta.Meta, error)
}

type iChatRepo interface {
	GetHistory(ctx context.Context, roomId string) ([]chat.Message, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type controller struct {
	registry  iRoomRegistry
	connRepo  iConnRepo
	metaRepo  iMetaRepo
	chatRepo  iChatRepo
	upgrader  websocket.Upgrader
	validate  *validator.Validator
	wsRouter  *wsrouter.WSRouter
	generator iGenerator
	logger    *slog.Logger
}

type NewControllerParams struct {
	Registry iRoomRegistry
	ConnRepo iConnRepo
	MetaRepo iMetaRepo
	ChatRepo iChatRepo
	Logger   *slog.Logger
}

func NewController(params *NewControllerParams) *controller {
	c := &controller{
		registry: params.Registry,
		connRepo: params.ConnRepo,
		metaRepo: params.MetaRepo,
		chatRepo: params.ChatRepo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:  validator.NewValidator(),
		generator: randstr.New([]byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")),
		logger:    params.Logger,
	}

	c.wsRouter = c.getWSRouter()

	return c
}
