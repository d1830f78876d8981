package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reelcv-backend/internal/domain"
)

// RequestService owns the network-request ledger: sending connection
// requests and walking them through their lifecycle. The connection and
// notification side effects happen asynchronously via the outbox.
type RequestService struct {
	requests    domain.RequestRepository
	connections domain.ConnectionRepository
	users       domain.UserRepository
}

func NewRequestService(
	requests domain.RequestRepository,
	connections domain.ConnectionRepository,
	users domain.UserRepository,
) *RequestService {
	return &RequestService{
		requests:    requests,
		connections: connections,
		users:       users,
	}
}

// Send creates a pending request from caller to target. At most one
// pending request may exist per unordered pair, and an already-accepted
// connection cannot be requested again.
func (s *RequestService) Send(ctx context.Context, callerUID, toUID string) (*domain.NetworkRequest, error) {
	if callerUID == "" {
		return nil, domain.Unauthenticated("caller identity required")
	}
	if toUID == "" {
		return nil, domain.InvalidArg("target uid is required")
	}
	if toUID == callerUID {
		return nil, domain.InvalidArg("cannot send a connection request to yourself")
	}

	target, err := s.users.GetByUID(ctx, toUID)
	if err != nil {
		return nil, fmt.Errorf("get target user: %w", err)
	}
	if target == nil || !target.IsActive {
		return nil, domain.NotFound("target user not found")
	}

	if pending, err := s.requests.FindPendingBetween(ctx, callerUID, toUID); err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	} else if pending != nil {
		return nil, domain.FailedPrecondition("a pending request already exists for this pair")
	}

	pairID := domain.PairID(callerUID, toUID)
	if conn, err := s.connections.Get(ctx, pairID); err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	} else if conn != nil && conn.Status == domain.ConnectionAccepted {
		return nil, domain.FailedPrecondition("users are already connected")
	}

	now := time.Now().UTC()
	req := &domain.NetworkRequest{
		ID:        uuid.NewString(),
		FromUID:   callerUID,
		ToUID:     toUID,
		Status:    domain.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// Accept resolves a pending request. Only the recipient may accept.
func (s *RequestService) Accept(ctx context.Context, callerUID, requestID string) error {
	return s.resolve(ctx, callerUID, requestID, domain.RequestAccepted)
}

// Decline resolves a pending request. Only the recipient may decline.
func (s *RequestService) Decline(ctx context.Context, callerUID, requestID string) error {
	return s.resolve(ctx, callerUID, requestID, domain.RequestDeclined)
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (s *RequestService) Cancel(ctx context.Context, callerUID, requestID string) error {
	return s.resolve(ctx, callerUID, requestID, domain.RequestCanceled)
}

func (s *RequestService) resolve(ctx context.Context, callerUID, requestID, status string) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return domain.NotFound("request not found")
	}

	switch status {
	case domain.RequestAccepted, domain.RequestDeclined:
		if req.ToUID != callerUID {
			return domain.PermissionDenied("only the recipient can respond to a request")
		}
	case domain.RequestCanceled:
		if req.FromUID != callerUID {
			return domain.PermissionDenied("only the requester can cancel a request")
		}
	}

	// Terminal statuses never revert.
	if req.Status != domain.RequestPending {
		return domain.FailedPrecondition("request is already " + req.Status)
	}

	return s.requests.SetStatus(ctx, requestID, status, time.Now().UTC())
}

// List returns the caller's requests, optionally filtered by direction
// ("incoming"/"outgoing") and status.
func (s *RequestService) List(ctx context.Context, callerUID, direction, status string) ([]*domain.NetworkRequest, error) {
	switch direction {
	case "", "incoming", "outgoing":
	default:
		return nil, domain.InvalidArg("direction must be incoming or outgoing")
	}
	switch status {
	case "", domain.RequestPending, domain.RequestAccepted, domain.RequestDeclined, domain.RequestCanceled:
	default:
		return nil, domain.InvalidArg("unknown request status")
	}
	return s.requests.ListForUser(ctx, callerUID, direction, status)
}
