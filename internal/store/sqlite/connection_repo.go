package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
)

type ConnectionRepo struct {
	db *sql.DB
}

func NewConnectionRepo(db *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

var _ domain.ConnectionRepository = (*ConnectionRepo)(nil)

func (r *ConnectionRepo) Get(ctx context.Context, pairID string) (*domain.Connection, error) {
	c := &domain.Connection{}
	err := r.db.QueryRowContext(ctx, `
		SELECT pair_id, member_a, member_b, status, requested_by, requested_to, created_at, updated_at
		FROM connections
		WHERE pair_id = ?
	`, pairID).Scan(&c.PairID, &c.MemberA, &c.MemberB, &c.Status, &c.RequestedBy, &c.RequestedTo, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

func (r *ConnectionRepo) ListForUser(ctx context.Context, uid string) ([]*domain.Connection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pair_id, member_a, member_b, status, requested_by, requested_to, created_at, updated_at
		FROM connections
		WHERE member_a = ? OR member_b = ?
		ORDER BY updated_at DESC
	`, uid, uid)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var res []*domain.Connection
	for rows.Next() {
		c := &domain.Connection{}
		if err := rows.Scan(&c.PairID, &c.MemberA, &c.MemberB, &c.Status, &c.RequestedBy, &c.RequestedTo, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpsertStatus merges the connection in (insert when absent, touch when
// present) and appends a ConnectionStatusChanged event only when the
// stored status actually changes. A same-status write is skipped entirely,
// which makes replayed upserts no-ops.
func (r *ConnectionRepo) UpsertStatus(ctx context.Context, c *domain.Connection, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := c.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var oldStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM connections WHERE pair_id = ?
	`, c.PairID).Scan(&oldStatus)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO connections (pair_id, member_a, member_b, status, requested_by, requested_to, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, c.PairID, c.MemberA, c.MemberB, c.Status, c.RequestedBy, c.RequestedTo, now, now); err != nil {
			return fmt.Errorf("insert connection: %w", err)
		}
		oldStatus = ""
	case err != nil:
		return fmt.Errorf("get connection status: %w", err)
	case oldStatus == c.Status:
		return nil
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE connections SET status = ?, updated_at = ? WHERE pair_id = ?
		`, c.Status, now, c.PairID); err != nil {
			return fmt.Errorf("update connection status: %w", err)
		}
	}

	ev := domain.ConnectionStatusChangedEvent{
		PairID:      c.PairID,
		MemberA:     c.MemberA,
		MemberB:     c.MemberB,
		RequestedBy: c.RequestedBy,
		RequestedTo: c.RequestedTo,
		OldStatus:   oldStatus,
		NewStatus:   c.Status,
		Source:      source,
	}
	if err := appendEvent(ctx, tx, c.PairID, domain.EventConnectionStatusChanged, ev, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
