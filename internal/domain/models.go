package domain

import "time"

// User represents an application user (candidate or employer).
type User struct {
	UID            string    `db:"uid" json:"uid"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	AvatarURL      string    `db:"avatar_url" json:"avatar_url"`
	Headline       string    `db:"headline" json:"headline"`
	Role           string    `db:"role" json:"role"` // "candidate" | "employer"
	HashedPassword string    `db:"hashed_password" json:"-"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Request status lifecycle. Terminal statuses never revert.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
	RequestCanceled = "canceled"
)

// NetworkRequest is one user asking to connect with another. A pair may
// accumulate several requests over time but at most one pending.
type NetworkRequest struct {
	ID        string    `db:"id" json:"id"`
	FromUID   string    `db:"from_uid" json:"from_uid"`
	ToUID     string    `db:"to_uid" json:"to_uid"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Connection statuses. "accepted" is the sole gate for direct messaging.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionDeclined = "declined"
)

// Connection is the relationship aggregate between two users, keyed by
// their pair id. Written by the reconciliation worker and the direct
// respond endpoint, never by ordinary client writes.
type Connection struct {
	PairID      string    `db:"pair_id" json:"pair_id"`
	MemberA     string    `db:"member_a" json:"-"`
	MemberB     string    `db:"member_b" json:"-"`
	Status      string    `db:"status" json:"status"`
	RequestedBy string    `db:"requested_by" json:"requested_by"`
	RequestedTo string    `db:"requested_to" json:"requested_to"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HasMember reports whether uid is one of the two members.
func (c *Connection) HasMember(uid string) bool {
	return uid == c.MemberA || uid == c.MemberB
}

// PreviewMaxChars caps the denormalized lastMessage preview stored on a
// thread. The message itself keeps its full text.
const PreviewMaxChars = 500

// Thread is the conversation aggregate between exactly two users, keyed by
// their pair id. The aggregate fields (LastMessage*, UnreadCounts,
// ConnectionID) are owned by the reconciliation worker; a client may only
// reset its own read cursor and unread counter.
type Thread struct {
	PairID        string               `json:"pair_id"`
	MemberA       string               `json:"-"`
	MemberB       string               `json:"-"`
	CreatedAt     time.Time            `json:"created_at"`
	LastMessageAt *time.Time           `json:"last_message_at,omitempty"`
	LastMessage   *string              `json:"-"` // encrypted preview
	LastSender    *string              `json:"last_sender,omitempty"`
	ConnectionID  *string              `json:"connection_id,omitempty"`
	Reads         map[string]time.Time `json:"reads"`
	UnreadCounts  map[string]int       `json:"unread_counts"`
}

// Members returns both member uids.
func (t *Thread) Members() []string {
	return []string{t.MemberA, t.MemberB}
}

// HasMember reports whether uid is one of the two members.
func (t *Thread) HasMember(uid string) bool {
	return uid == t.MemberA || uid == t.MemberB
}

// Other returns the member that is not uid. It assumes uid is a member.
func (t *Thread) Other(uid string) string {
	if uid == t.MemberA {
		return t.MemberB
	}
	return t.MemberA
}

// Unread resolves the unread flag for viewer uid.
func (t *Thread) Unread(uid string) bool {
	return t.UnreadCount(uid) > 0
}

// UnreadCount returns max(explicit counter, timestamp fallback) for uid.
// The denormalized counter can be stale or absent on older threads, so the
// read cursor vs. last message timestamp acts as a fallback that still
// produces a badge in the single-message-backlog case.
func (t *Thread) UnreadCount(uid string) int {
	explicit := 0
	if n, ok := t.UnreadCounts[uid]; ok {
		explicit = n
	}
	fallback := 0
	if t.LastMessageAt != nil && t.LastSender != nil && *t.LastSender != uid {
		read, ok := t.Reads[uid]
		if !ok || read.Before(*t.LastMessageAt) {
			fallback = 1
		}
	}
	if fallback > explicit {
		return fallback
	}
	return explicit
}

// Message is a single chat message inside a thread. Append-only.
type Message struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	SenderUID string    `db:"sender_uid" json:"sender_uid"`
	Content   string    `db:"content" json:"-"` // encrypted at rest
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Notification types fanned out by the reconciliation worker.
const (
	NotificationConnectionRequest  = "connection_request"
	NotificationConnectionAccepted = "connection_accepted"
	NotificationConnectionDeclined = "connection_declined"
	NotificationConnectionCanceled = "connection_canceled"
)

// Notification is an entry in a user's notification feed. The sender's
// display name and avatar are denormalized at creation time.
type Notification struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Type            string    `db:"type" json:"type"`
	FromUID         string    `db:"from_uid" json:"from_uid"`
	FromDisplayName string    `db:"from_display_name" json:"from_display_name"`
	FromAvatarURL   string    `db:"from_avatar_url" json:"from_avatar_url"`
	ConnectionID    string    `db:"connection_id" json:"connection_id"`
	RequestID       *string   `db:"request_id" json:"request_id,omitempty"`
	Read            bool      `db:"read" json:"read"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Outbox event types. Each state-changing write appends one of these in
// the same transaction; the reconciliation worker consumes them in
// sequence order.
const (
	EventRequestCreated          = "RequestCreated"
	EventRequestStatusChanged    = "RequestStatusChanged"
	EventConnectionStatusChanged = "ConnectionStatusChanged"
	EventMessageCreated          = "MessageCreated"
)

// OutboxEvent is one entry in the append-only event log.
type OutboxEvent struct {
	Seq          int64      `db:"seq"`
	AggregateKey string     `db:"aggregate_key"`
	Type         string     `db:"type"`
	Payload      []byte     `db:"payload"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}
