package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
)

type RequestRepo struct {
	db *sql.DB
}

func NewRequestRepo(db *sql.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

var _ domain.RequestRepository = (*RequestRepo)(nil)

func (r *RequestRepo) Create(ctx context.Context, req *domain.NetworkRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO network_requests (id, from_uid, to_uid, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.ID, req.FromUID, req.ToUID, req.Status, req.CreatedAt, req.UpdatedAt); err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	ev := domain.RequestCreatedEvent{
		RequestID: req.ID,
		FromUID:   req.FromUID,
		ToUID:     req.ToUID,
	}
	pairID := domain.PairID(req.FromUID, req.ToUID)
	if err := appendEvent(ctx, tx, pairID, domain.EventRequestCreated, ev, req.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id string) (*domain.NetworkRequest, error) {
	req := &domain.NetworkRequest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, from_uid, to_uid, status, created_at, updated_at
		FROM network_requests
		WHERE id = ?
	`, id).Scan(&req.ID, &req.FromUID, &req.ToUID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// SetStatus transitions the request and appends a RequestStatusChanged
// event in the same transaction. Writes where the status is unchanged are
// skipped entirely so replays never produce extra events.
func (r *RequestRepo) SetStatus(ctx context.Context, id, status string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	req := &domain.NetworkRequest{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, from_uid, to_uid, status, created_at, updated_at
		FROM network_requests
		WHERE id = ?
	`, id).Scan(&req.ID, &req.FromUID, &req.ToUID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.NotFound("request not found")
	}
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req.Status == status {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE network_requests SET status = ?, updated_at = ? WHERE id = ?
	`, status, at, id); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	ev := domain.RequestStatusChangedEvent{
		RequestID: req.ID,
		FromUID:   req.FromUID,
		ToUID:     req.ToUID,
		OldStatus: req.Status,
		NewStatus: status,
	}
	pairID := domain.PairID(req.FromUID, req.ToUID)
	if err := appendEvent(ctx, tx, pairID, domain.EventRequestStatusChanged, ev, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *RequestRepo) FindPendingBetween(ctx context.Context, a, b string) (*domain.NetworkRequest, error) {
	req := &domain.NetworkRequest{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, from_uid, to_uid, status, created_at, updated_at
		FROM network_requests
		WHERE status = ?
		  AND ((from_uid = ? AND to_uid = ?) OR (from_uid = ? AND to_uid = ?))
		LIMIT 1
	`, domain.RequestPending, a, b, b, a).Scan(&req.ID, &req.FromUID, &req.ToUID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending request: %w", err)
	}
	return req, nil
}

func (r *RequestRepo) ListForUser(ctx context.Context, uid, direction, status string) ([]*domain.NetworkRequest, error) {
	q := `
		SELECT id, from_uid, to_uid, status, created_at, updated_at
		FROM network_requests
		WHERE `
	args := []any{}
	switch direction {
	case "incoming":
		q += `to_uid = ?`
		args = append(args, uid)
	case "outgoing":
		q += `from_uid = ?`
		args = append(args, uid)
	default:
		q += `(from_uid = ? OR to_uid = ?)`
		args = append(args, uid, uid)
	}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var res []*domain.NetworkRequest
	for rows.Next() {
		req := &domain.NetworkRequest{}
		if err := rows.Scan(&req.ID, &req.FromUID, &req.ToUID, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		res = append(res, req)
	}
	return res, rows.Err()
}
