package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/watchroom/server/internal/repository/connection"
)

type entry struct {
	memberId string
	roomId   string
	// wrapped is the single write-serialized handle for this connection;
	// every writer must go through it.
	wrapped *connection.Conn
}

type repo struct {
	byConn   map[*websocket.Conn]*entry
	byMember map[string]*websocket.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		byConn:   make(map[*websocket.Conn]*entry),
		byMember: make(map[string]*websocket.Conn),
		logger:   logger,
	}
}

func (r *repo) Add(conn *websocket.Conn, memberId, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("connection.Add", "member_id", memberId, "room_id", roomId)
	if _, ok := r.byConn[conn]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.byMember[memberId]; ok {
		return connection.ErrAlreadyExists
	}

	r.byConn[conn] = &entry{
		memberId: memberId,
		roomId:   roomId,
		wrapped:  connection.WrapConn(conn),
	}
	r.byMember[memberId] = conn

	return nil
}

func (r *repo) RemoveByConn(conn *websocket.Conn) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	delete(r.byConn, conn)
	delete(r.byMember, e.memberId)

	r.logger.Debug("connection.RemoveByConn", "member_id", e.memberId)
	return e.memberId, nil
}

// RemoveByMemberId drops the member's connection from the index and closes
// the transport.
func (r *repo) RemoveByMemberId(memberId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byMember[memberId]
	if !ok {
		return connection.ErrNotFound
	}
	r.byConn[conn].wrapped.Close()

	delete(r.byConn, conn)
	delete(r.byMember, memberId)

	r.logger.Debug("connection.RemoveByMemberId", "member_id", memberId)
	return nil
}

func (r *repo) GetConn(memberId string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byMember[memberId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return r.byConn[conn].wrapped, nil
}

// GetMemberRoomId returns the room a member's live session is bound to.
func (r *repo) GetMemberRoomId(memberId string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byMember[memberId]
	if !ok {
		return "", connection.ErrNotFound
	}

	return r.byConn[conn].roomId, nil
}

func (r *repo) GetMemberId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return e.memberId, nil
}

func (r *repo) GetRoomId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return e.roomId, nil
}
