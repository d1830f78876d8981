package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"reelcv-backend/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, from_uid, from_display_name, from_avatar_url, connection_id, request_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Type, n.FromUID, n.FromDisplayName, n.FromAvatarURL, n.ConnectionID, n.RequestID, n.Read, n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, uid string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, from_uid, from_display_name, from_avatar_url, connection_id, request_id, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var res []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.FromUID, &n.FromDisplayName, &n.FromAvatarURL, &n.ConnectionID, &n.RequestID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r *NotificationRepo) MarkRead(ctx context.Context, uid, id string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?
	`, id, uid); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE user_id = ?
	`, uid); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
