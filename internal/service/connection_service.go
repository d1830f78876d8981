package service

import (
	"context"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
)

// ConnectionService reads connection state and handles the direct respond
// shortcut (accepting or declining straight from a notification, without
// touching the originating request document).
type ConnectionService struct {
	connections domain.ConnectionRepository
	users       domain.UserRepository
}

func NewConnectionService(connections domain.ConnectionRepository, users domain.UserRepository) *ConnectionService {
	return &ConnectionService{connections: connections, users: users}
}

// ConnectionView pairs a connection with the peer's public profile.
type ConnectionView struct {
	*domain.Connection
	Peer *domain.User `json:"peer,omitempty"`
}

func (s *ConnectionService) Get(ctx context.Context, callerUID, pairID string) (*domain.Connection, error) {
	conn, err := s.connections.Get(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	if conn == nil {
		return nil, domain.NotFound("connection not found")
	}
	if !conn.HasMember(callerUID) {
		return nil, domain.PermissionDenied("not a member of this connection")
	}
	return conn, nil
}

func (s *ConnectionService) ListForUser(ctx context.Context, callerUID string) ([]*ConnectionView, error) {
	conns, err := s.connections.ListForUser(ctx, callerUID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	res := make([]*ConnectionView, 0, len(conns))
	for _, c := range conns {
		view := &ConnectionView{Connection: c}
		peerUID := c.MemberA
		if peerUID == callerUID {
			peerUID = c.MemberB
		}
		if peer, err := s.users.GetByUID(ctx, peerUID); err == nil && peer != nil {
			view.Peer = peer
		}
		res = append(res, view)
	}
	return res, nil
}

// Respond mutates a pending connection directly. Only the recipient of
// the original request may respond, and only accept/decline are valid.
func (s *ConnectionService) Respond(ctx context.Context, callerUID, pairID, action string) error {
	var status string
	switch action {
	case "accept":
		status = domain.ConnectionAccepted
	case "decline":
		status = domain.ConnectionDeclined
	default:
		return domain.InvalidArg("action must be accept or decline")
	}

	conn, err := s.connections.Get(ctx, pairID)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	if conn == nil {
		return domain.NotFound("connection not found")
	}
	if conn.RequestedTo != callerUID {
		return domain.PermissionDenied("only the requested user can respond")
	}
	if conn.Status != domain.ConnectionPending {
		return domain.FailedPrecondition("connection is already " + conn.Status)
	}

	conn.Status = status
	conn.UpdatedAt = time.Now().UTC()
	return s.connections.UpsertStatus(ctx, conn, domain.EventSourceDirect)
}
