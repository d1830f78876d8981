// Package outbox contains the reconciliation worker that consumes the
// event log and propagates denormalized state between the request ledger,
// connections, threads, and notification feeds. It replaces the reactive
// document-store triggers of a hosted backend with a single-writer
// consumer applying each handler idempotently.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"reelcv-backend/internal/domain"
)

// Notifier pushes realtime payloads to connected users. Implemented by the
// websocket hub; a nil-safe no-op is used in tests.
type Notifier interface {
	NotifyUsers(uids []string, payload any)
}

type Worker struct {
	outbox        domain.OutboxRepository
	users         domain.UserRepository
	connections   domain.ConnectionRepository
	threads       domain.ThreadRepository
	notifications domain.NotificationRepository
	notifier      Notifier

	interval  time.Duration
	batchSize int
}

func NewWorker(
	outbox domain.OutboxRepository,
	users domain.UserRepository,
	connections domain.ConnectionRepository,
	threads domain.ThreadRepository,
	notifications domain.NotificationRepository,
	notifier Notifier,
	interval time.Duration,
) *Worker {
	return &Worker{
		outbox:        outbox,
		users:         users,
		connections:   connections,
		threads:       threads,
		notifications: notifications,
		notifier:      notifier,
		interval:      interval,
		batchSize:     100,
	}
}

// Run polls the outbox until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil {
				log.Printf("outbox: drain: %v", err)
			}
		}
	}
}

// Drain processes events in sequence order until the log is empty. A
// failing handler is logged and its event still marked processed: the
// write that caused it has already committed, and the denormalized state
// heals on the next qualifying write. There is no dead-letter path.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		events, err := w.outbox.ListUnprocessed(ctx, w.batchSize)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		for _, ev := range events {
			if err := w.handle(ctx, ev); err != nil {
				log.Printf("outbox: event %d (%s): %v", ev.Seq, ev.Type, err)
			}
			if err := w.outbox.MarkProcessed(ctx, ev.Seq); err != nil {
				return fmt.Errorf("mark processed: %w", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, ev *domain.OutboxEvent) error {
	switch ev.Type {
	case domain.EventRequestCreated:
		var p domain.RequestCreatedEvent
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return w.onRequestCreated(ctx, ev.AggregateKey, p)
	case domain.EventRequestStatusChanged:
		var p domain.RequestStatusChangedEvent
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return w.onRequestStatusChanged(ctx, ev.AggregateKey, p)
	case domain.EventConnectionStatusChanged:
		var p domain.ConnectionStatusChangedEvent
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return w.onConnectionStatusChanged(ctx, p)
	case domain.EventMessageCreated:
		var p domain.MessageCreatedEvent
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return w.onMessageCreated(ctx, p)
	default:
		log.Printf("outbox: unknown event type %q (seq %d)", ev.Type, ev.Seq)
		return nil
	}
}

// onRequestCreated upserts the connection to pending and fans a
// connection_request notification out to the recipient, denormalizing the
// requester's display name and avatar.
func (w *Worker) onRequestCreated(ctx context.Context, pairID string, p domain.RequestCreatedEvent) error {
	conn := &domain.Connection{
		PairID:      pairID,
		MemberA:     p.FromUID,
		MemberB:     p.ToUID,
		Status:      domain.ConnectionPending,
		RequestedBy: p.FromUID,
		RequestedTo: p.ToUID,
	}
	if err := w.connections.UpsertStatus(ctx, conn, domain.EventSourceRequest); err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}

	n := &domain.Notification{
		ID:           uuid.NewString(),
		UserID:       p.ToUID,
		Type:         domain.NotificationConnectionRequest,
		FromUID:      p.FromUID,
		ConnectionID: pairID,
		RequestID:    &p.RequestID,
		CreatedAt:    time.Now().UTC(),
	}
	// Requester profile may not be visible yet; tolerate and denormalize
	// what is there.
	if u, err := w.users.GetByUID(ctx, p.FromUID); err == nil && u != nil {
		n.FromDisplayName = u.DisplayName
		n.FromAvatarURL = u.AvatarURL
	}
	if err := w.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	w.push([]string{p.ToUID}, map[string]any{"type": "notification", "notification": n})
	return nil
}

// onRequestStatusChanged mirrors the request's terminal status onto the
// connection and notifies the affected party.
func (w *Worker) onRequestStatusChanged(ctx context.Context, pairID string, p domain.RequestStatusChangedEvent) error {
	if p.OldStatus == p.NewStatus {
		return nil
	}

	connStatus := p.NewStatus
	if p.NewStatus == domain.RequestCanceled {
		// The connection enum has no canceled state; a canceled request
		// closes the connection as declined.
		connStatus = domain.ConnectionDeclined
	}
	conn := &domain.Connection{
		PairID:      pairID,
		MemberA:     p.FromUID,
		MemberB:     p.ToUID,
		Status:      connStatus,
		RequestedBy: p.FromUID,
		RequestedTo: p.ToUID,
	}
	if err := w.connections.UpsertStatus(ctx, conn, domain.EventSourceRequest); err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}

	var n *domain.Notification
	switch p.NewStatus {
	case domain.RequestAccepted:
		n = w.buildNotification(ctx, p.FromUID, p.ToUID, domain.NotificationConnectionAccepted, pairID, &p.RequestID)
	case domain.RequestDeclined:
		n = w.buildNotification(ctx, p.FromUID, p.ToUID, domain.NotificationConnectionDeclined, pairID, &p.RequestID)
	case domain.RequestCanceled:
		n = w.buildNotification(ctx, p.ToUID, p.FromUID, domain.NotificationConnectionCanceled, pairID, &p.RequestID)
	default:
		return nil
	}
	if err := w.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	w.push([]string{n.UserID}, map[string]any{"type": "notification", "notification": n})
	return nil
}

// onConnectionStatusChanged ensures the thread exists once a connection
// becomes accepted, and fans out notifications for direct (bell shortcut)
// mutations.
func (w *Worker) onConnectionStatusChanged(ctx context.Context, p domain.ConnectionStatusChangedEvent) error {
	if p.OldStatus == p.NewStatus {
		return nil
	}

	if p.NewStatus == domain.ConnectionAccepted {
		if err := w.threads.EnsureForConnection(ctx, p.PairID, p.MemberA, p.MemberB, p.PairID, time.Now().UTC()); err != nil {
			return fmt.Errorf("ensure thread: %w", err)
		}
	}

	if p.Source == domain.EventSourceDirect &&
		(p.NewStatus == domain.ConnectionAccepted || p.NewStatus == domain.ConnectionDeclined) {
		typ := domain.NotificationConnectionAccepted
		if p.NewStatus == domain.ConnectionDeclined {
			typ = domain.NotificationConnectionDeclined
		}
		n := w.buildNotification(ctx, p.RequestedBy, p.RequestedTo, typ, p.PairID, nil)
		if err := w.notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		w.push([]string{n.UserID}, map[string]any{"type": "notification", "notification": n})
	}

	w.push([]string{p.MemberA, p.MemberB}, map[string]any{
		"type":    "connection_updated",
		"pair_id": p.PairID,
		"status":  p.NewStatus,
	})
	return nil
}

// onMessageCreated folds the message into the thread aggregate and nudges
// both members' clients.
func (w *Worker) onMessageCreated(ctx context.Context, p domain.MessageCreatedEvent) error {
	at := p.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := w.threads.ApplyMessage(ctx, p.ThreadID, p.SenderUID, p.Preview, at); err != nil {
		return fmt.Errorf("apply message: %w", err)
	}

	t, err := w.threads.Get(ctx, p.ThreadID)
	if err != nil || t == nil {
		return err
	}
	w.push(t.Members(), map[string]any{
		"type":      "thread_updated",
		"thread_id": p.ThreadID,
	})
	return nil
}

// buildNotification assembles a notification addressed to `to`, triggered
// by `from`, denormalizing the actor's profile when available.
func (w *Worker) buildNotification(ctx context.Context, to, from, typ, connectionID string, requestID *string) *domain.Notification {
	n := &domain.Notification{
		ID:           uuid.NewString(),
		UserID:       to,
		Type:         typ,
		FromUID:      from,
		ConnectionID: connectionID,
		RequestID:    requestID,
		CreatedAt:    time.Now().UTC(),
	}
	if u, err := w.users.GetByUID(ctx, from); err == nil && u != nil {
		n.FromDisplayName = u.DisplayName
		n.FromAvatarURL = u.AvatarURL
	}
	return n
}

func (w *Worker) push(uids []string, payload any) {
	if w.notifier == nil {
		return
	}
	w.notifier.NotifyUsers(uids, payload)
}
