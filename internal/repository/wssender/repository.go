// Package wssender delivers room events to individual members over their
// registered websocket connections.
package wssender

import (
	"context"
	"log/slog"

	"github.com/watchroom/server/internal/repository/connection"
	"github.com/watchroom/server/pkg/metrics"
)

type iConnRepo interface {
	GetConn(memberId string) (*connection.Conn, error)
	RemoveByMemberId(memberId string) error
}

type sender struct {
	connRepo iConnRepo
	logger   *slog.Logger
}

func NewSender(connRepo iConnRepo, logger *slog.Logger) *sender {
	return &sender{connRepo: connRepo, logger: logger}
}

// ToMember writes a single event to a member's connection. Delivery is
// fire-and-forget: a member without a live connection or with a failing
// transport is logged, counted and skipped.
func (s sender) ToMember(ctx context.Context, memberId string, out any) {
	conn, err := s.connRepo.GetConn(memberId)
	if err != nil {
		s.logger.DebugContext(ctx, "no connection for member", "member_id", memberId)
		return
	}

	if err := conn.WriteJSON(out); err != nil {
		metrics.DeliveryFailures.Inc()
		s.logger.InfoContext(ctx, "failed to write to member", "member_id", memberId, "error", err)
	}
}

// CloseMember drops the member's connection from the gateway index and closes
// the transport.
func (s sender) CloseMember(ctx context.Context, memberId string) {
	if err := s.connRepo.RemoveByMemberId(memberId); err != nil {
		s.logger.DebugContext(ctx, "failed to close member connection", "member_id", memberId, "error", err)
	}
}
