package service

import (
	"context"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/security"
)

// ThreadService is the thread admission surface and the read side of the
// thread list. Aggregate fields on threads are written by the outbox
// worker; the only client-driven writes here are thread admission and the
// caller's own read-cursor reset.
type ThreadService struct {
	threads     domain.ThreadRepository
	connections domain.ConnectionRepository
	users       domain.UserRepository
	encryptor   *security.Encryptor
}

func NewThreadService(
	threads domain.ThreadRepository,
	connections domain.ConnectionRepository,
	users domain.UserRepository,
	encryptor *security.Encryptor,
) *ThreadService {
	return &ThreadService{
		threads:     threads,
		connections: connections,
		users:       users,
		encryptor:   encryptor,
	}
}

// AdmissionResult is the admission response: the pair's thread id and
// whether direct messaging is currently permitted.
type AdmissionResult struct {
	ThreadID string `json:"thread_id"`
	CanDM    bool   `json:"can_dm"`
}

// Open atomically ensures the thread for (caller, other) exists and
// reports whether the pair may exchange direct messages. Repeated calls
// only reset the caller's own read cursor and unread counter; they never
// create a second thread or touch the peer's entries.
func (s *ThreadService) Open(ctx context.Context, callerUID, otherUID string) (*AdmissionResult, error) {
	if callerUID == "" {
		return nil, domain.Unauthenticated("caller identity required")
	}
	if otherUID == "" {
		return nil, domain.InvalidArg("other uid is required")
	}
	if otherUID == callerUID {
		return nil, domain.InvalidArg("cannot open a thread with yourself")
	}

	pairID := domain.PairID(callerUID, otherUID)
	conn, err := s.connections.Get(ctx, pairID)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	canDM := conn != nil && conn.Status == domain.ConnectionAccepted

	var connectionID *string
	if canDM {
		connectionID = &pairID
	}
	if _, err := s.threads.Open(ctx, pairID, callerUID, otherUID, connectionID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("open thread: %w", err)
	}

	return &AdmissionResult{ThreadID: pairID, CanDM: canDM}, nil
}

// MarkRead resets the caller's own unread counter and read cursor. The
// caller's identity is implicit; there is no path to patch another
// member's entries.
func (s *ThreadService) MarkRead(ctx context.Context, callerUID, threadID string) error {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return domain.NotFound("thread not found")
	}
	if !t.HasMember(callerUID) {
		return domain.PermissionDenied("not a member of this thread")
	}
	return s.threads.MarkRead(ctx, threadID, callerUID, time.Now().UTC())
}

// Get returns the thread for members only.
func (s *ThreadService) Get(ctx context.Context, callerUID, threadID string) (*domain.Thread, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, domain.NotFound("thread not found")
	}
	if !t.HasMember(callerUID) {
		return nil, domain.PermissionDenied("not a member of this thread")
	}
	return t, nil
}

// ThreadView is the thread-list DTO: peer profile, decrypted preview, and
// the resolved unread badge for the viewer.
type ThreadView struct {
	ThreadID      string       `json:"thread_id"`
	Peer          *domain.User `json:"peer,omitempty"`
	LastMessage   *string      `json:"last_message,omitempty"`
	LastMessageAt *time.Time   `json:"last_message_at,omitempty"`
	LastSender    *string      `json:"last_sender,omitempty"`
	UnreadCount   int          `json:"unread_count"`
	Unread        bool         `json:"unread"`
	CanDM         bool         `json:"can_dm"`
}

// ListForUser returns the caller's threads ordered by last message.
func (s *ThreadService) ListForUser(ctx context.Context, callerUID string) ([]*ThreadView, error) {
	threads, err := s.threads.ListForUser(ctx, callerUID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	res := make([]*ThreadView, 0, len(threads))
	for _, t := range threads {
		view := &ThreadView{
			ThreadID:      t.PairID,
			LastMessageAt: t.LastMessageAt,
			LastSender:    t.LastSender,
			UnreadCount:   t.UnreadCount(callerUID),
			Unread:        t.Unread(callerUID),
		}
		if t.LastMessage != nil {
			if plain, err := s.encryptor.Decrypt(*t.LastMessage); err == nil {
				view.LastMessage = &plain
			}
		}
		if peer, err := s.users.GetByUID(ctx, t.Other(callerUID)); err == nil && peer != nil {
			view.Peer = peer
		}
		if conn, err := s.connections.Get(ctx, t.PairID); err == nil && conn != nil {
			view.CanDM = conn.Status == domain.ConnectionAccepted
		}
		res = append(res, view)
	}
	return res, nil
}
