package domain

import "time"

// Sources for ConnectionStatusChanged events: status changes driven by the
// request ledger versus the direct "respond from the notification bell"
// endpoint. Notification fan-out for direct changes happens on the
// connection event; for request-driven changes it happens on the request
// event, so the source tag prevents double fan-out.
const (
	EventSourceRequest = "request"
	EventSourceDirect  = "direct"
)

// RequestCreatedEvent is appended when a network request is created.
type RequestCreatedEvent struct {
	RequestID string `json:"request_id"`
	FromUID   string `json:"from_uid"`
	ToUID     string `json:"to_uid"`
}

// RequestStatusChangedEvent is appended when a request resolves.
type RequestStatusChangedEvent struct {
	RequestID string `json:"request_id"`
	FromUID   string `json:"from_uid"`
	ToUID     string `json:"to_uid"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ConnectionStatusChangedEvent is appended on any status-changing write to
// a connection, whatever the driver.
type ConnectionStatusChangedEvent struct {
	PairID      string `json:"pair_id"`
	MemberA     string `json:"member_a"`
	MemberB     string `json:"member_b"`
	RequestedBy string `json:"requested_by"`
	RequestedTo string `json:"requested_to"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	Source      string `json:"source"`
}

// MessageCreatedEvent is appended with each new message. Preview carries
// the already-truncated, already-encrypted lastMessage candidate so the
// worker never handles plaintext.
type MessageCreatedEvent struct {
	ThreadID  string    `json:"thread_id"`
	MessageID string    `json:"message_id"`
	SenderUID string    `json:"sender_uid"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
}
