package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByUID(ctx context.Context, uid string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, query string, offset, limit int) ([]*User, error)
	Update(ctx context.Context, u *User) error
	UpdateLastSeen(ctx context.Context, uid string) error
}

// RequestRepository persists the network-request ledger. Create and
// SetStatus append the matching outbox event in the same transaction as
// the write; SetStatus is a no-op (no event) when the status is unchanged.
type RequestRepository interface {
	Create(ctx context.Context, r *NetworkRequest) error
	GetByID(ctx context.Context, id string) (*NetworkRequest, error)
	SetStatus(ctx context.Context, id, status string, at time.Time) error
	FindPendingBetween(ctx context.Context, a, b string) (*NetworkRequest, error)
	ListForUser(ctx context.Context, uid, direction, status string) ([]*NetworkRequest, error)
}

// ConnectionRepository persists the pairwise relationship state.
// UpsertStatus merges the given connection in and, when the stored status
// actually changes, appends a ConnectionStatusChanged outbox event tagged
// with the given source in the same transaction.
type ConnectionRepository interface {
	Get(ctx context.Context, pairID string) (*Connection, error)
	ListForUser(ctx context.Context, uid string) ([]*Connection, error)
	UpsertStatus(ctx context.Context, c *Connection, source string) error
}

// ThreadRepository persists conversation threads and their per-member
// read cursors and unread counters.
type ThreadRepository interface {
	Get(ctx context.Context, pairID string) (*Thread, error)
	// Open atomically gets or creates the thread for the pair and resets
	// the caller's read cursor and unread counter. connectionID is set
	// (or backfilled) when non-nil.
	Open(ctx context.Context, pairID, caller, other string, connectionID *string, at time.Time) (*Thread, error)
	// EnsureForConnection creates the thread if absent and backfills a
	// missing connection id. Idempotent.
	EnsureForConnection(ctx context.Context, pairID, a, b, connectionID string, at time.Time) error
	// MarkRead resets uid's own unread counter and read cursor. It never
	// touches the other member's entries.
	MarkRead(ctx context.Context, pairID, uid string, at time.Time) error
	// ApplyMessage folds one new message into the thread aggregate:
	// preview fields, sender cursor reset, atomic unread increment for the
	// other member. Silently no-ops when the thread is missing or the
	// sender is not a member.
	ApplyMessage(ctx context.Context, pairID, sender, encPreview string, at time.Time) error
	ListForUser(ctx context.Context, uid string) ([]*Thread, error)
}

// MessageRepository persists the append-only message log. Create appends
// a MessageCreated outbox event in the same transaction.
type MessageRepository interface {
	Create(ctx context.Context, m *Message, encPreview string) error
	ListForThread(ctx context.Context, threadID string, limit int) ([]*Message, error)
}

// NotificationRepository persists per-user notification feeds.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, uid string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, uid, id string) error
	MarkAllRead(ctx context.Context, uid string) error
}

// OutboxRepository exposes the event log to the reconciliation worker.
type OutboxRepository interface {
	ListUnprocessed(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, seq int64) error
}
