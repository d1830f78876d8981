package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
)

// appendEvent writes one outbox row inside the caller's transaction so the
// event commits or rolls back together with the write it describes.
func appendEvent(ctx context.Context, tx *sql.Tx, aggregateKey, eventType string, payload any, at time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_key, type, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, aggregateKey, eventType, string(body), at); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

type OutboxRepo struct {
	db *sql.DB
}

func NewOutboxRepo(db *sql.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

var _ domain.OutboxRepository = (*OutboxRepo)(nil)

func (r *OutboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, aggregate_key, type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed events: %w", err)
	}
	defer rows.Close()

	var res []*domain.OutboxEvent
	for rows.Next() {
		ev := &domain.OutboxEvent{}
		var payload string
		if err := rows.Scan(&ev.Seq, &ev.AggregateKey, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Payload = []byte(payload)
		res = append(res, ev)
	}
	return res, rows.Err()
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET processed_at = ? WHERE seq = ?
	`, time.Now().UTC(), seq); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
