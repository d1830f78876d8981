package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"reelcv-backend/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Create inserts the message and appends its MessageCreated event in one
// transaction. encPreview is the already-truncated, encrypted lastMessage
// candidate the worker will denormalize onto the thread.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message, encPreview string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, sender_uid, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ThreadID, m.SenderUID, m.Content, m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	ev := domain.MessageCreatedEvent{
		ThreadID:  m.ThreadID,
		MessageID: m.ID,
		SenderUID: m.SenderUID,
		Preview:   encPreview,
		CreatedAt: m.CreatedAt,
	}
	if err := appendEvent(ctx, tx, m.ThreadID, domain.EventMessageCreated, ev, m.CreatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForThread(ctx context.Context, threadID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, thread_id, sender_uid, content, created_at
		FROM messages
		WHERE thread_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderUID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order (DB returns DESC).
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}
