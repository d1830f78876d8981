package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"reelcv-backend/internal/domain"
)

type ThreadRepo struct {
	db *sql.DB
}

func NewThreadRepo(db *sql.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

var _ domain.ThreadRepository = (*ThreadRepo)(nil)

const threadColumns = `pair_id, member_a, member_b, created_at, last_message_at, last_message, last_sender, connection_id`

func scanThreadRow(row rowScanner, t *domain.Thread) error {
	return row.Scan(
		&t.PairID,
		&t.MemberA,
		&t.MemberB,
		&t.CreatedAt,
		&t.LastMessageAt,
		&t.LastMessage,
		&t.LastSender,
		&t.ConnectionID,
	)
}

func (r *ThreadRepo) Get(ctx context.Context, pairID string) (*domain.Thread, error) {
	t := &domain.Thread{}
	err := scanThreadRow(r.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+` FROM threads WHERE pair_id = ?
	`, pairID), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if err := r.loadMemberState(ctx, []*domain.Thread{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Open gets or creates the thread for the pair in one transaction and
// resets the caller's read cursor and unread counter. It deliberately does
// not touch last_message_at: opening a thread must not reorder the thread
// list by "last opened".
func (r *ThreadRepo) Open(ctx context.Context, pairID, caller, other string, connectionID *string, at time.Time) (*domain.Thread, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT pair_id FROM threads WHERE pair_id = ?`, pairID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (pair_id, member_a, member_b, created_at, connection_id)
			VALUES (?, ?, ?, ?, ?)
		`, pairID, caller, other, at, connectionID); err != nil {
			return nil, fmt.Errorf("insert thread: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
			VALUES (?, ?, ?, 0), (?, ?, NULL, 0)
		`, pairID, caller, at, pairID, other); err != nil {
			return nil, fmt.Errorf("insert thread members: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("get thread: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
			VALUES (?, ?, ?, 0)
			ON CONFLICT (thread_id, uid) DO UPDATE SET last_read_at = excluded.last_read_at, unread_count = 0
		`, pairID, caller, at); err != nil {
			return nil, fmt.Errorf("reset read cursor: %w", err)
		}
		if connectionID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE threads SET connection_id = ? WHERE pair_id = ? AND connection_id IS NULL
			`, *connectionID, pairID); err != nil {
				return nil, fmt.Errorf("backfill connection id: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.Get(ctx, pairID)
}

// EnsureForConnection creates the thread for a freshly accepted connection
// if it does not exist yet, or backfills a missing connection id.
// Re-running it for an already-processed transition changes nothing.
func (r *ThreadRepo) EnsureForConnection(ctx context.Context, pairID, a, b, connectionID string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT pair_id FROM threads WHERE pair_id = ?`, pairID).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO threads (pair_id, member_a, member_b, created_at, connection_id)
			VALUES (?, ?, ?, ?, ?)
		`, pairID, a, b, at, connectionID); err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
			VALUES (?, ?, NULL, 0), (?, ?, NULL, 0)
		`, pairID, a, pairID, b); err != nil {
			return fmt.Errorf("insert thread members: %w", err)
		}
	case err != nil:
		return fmt.Errorf("get thread: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, `
			UPDATE threads SET connection_id = ? WHERE pair_id = ? AND connection_id IS NULL
		`, connectionID, pairID); err != nil {
			return fmt.Errorf("backfill connection id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ThreadRepo) MarkRead(ctx context.Context, pairID, uid string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (thread_id, uid) DO UPDATE SET last_read_at = excluded.last_read_at, unread_count = 0
	`, pairID, uid, at); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ApplyMessage folds a new message into the thread aggregate. The unread
// bump for the other member is a SQL-side increment, not a read-modify-
// write, so concurrent senders cannot lose increments.
func (r *ThreadRepo) ApplyMessage(ctx context.Context, pairID, sender, encPreview string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var memberA, memberB string
	err = tx.QueryRowContext(ctx, `
		SELECT member_a, member_b FROM threads WHERE pair_id = ?
	`, pairID).Scan(&memberA, &memberB)
	if err == sql.ErrNoRows {
		// Nothing to reconcile yet.
		return nil
	}
	if err != nil {
		return fmt.Errorf("get thread members: %w", err)
	}
	if sender != memberA && sender != memberB {
		return nil
	}
	other := memberA
	if sender == memberA {
		other = memberB
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads
		SET last_message = ?, last_message_at = ?, last_sender = ?,
		    connection_id = COALESCE(connection_id, pair_id)
		WHERE pair_id = ?
	`, encPreview, at, sender, pairID); err != nil {
		return fmt.Errorf("update thread preview: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (thread_id, uid) DO UPDATE SET last_read_at = excluded.last_read_at, unread_count = 0
	`, pairID, sender, at); err != nil {
		return fmt.Errorf("reset sender cursor: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO thread_members (thread_id, uid, last_read_at, unread_count)
		VALUES (?, ?, NULL, 1)
		ON CONFLICT (thread_id, uid) DO UPDATE SET unread_count = unread_count + 1
	`, pairID, other); err != nil {
		return fmt.Errorf("bump unread count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ThreadRepo) ListForUser(ctx context.Context, uid string) ([]*domain.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE member_a = ? OR member_b = ?
		ORDER BY last_message_at IS NULL, last_message_at DESC, created_at DESC
	`, uid, uid)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var res []*domain.Thread
	for rows.Next() {
		t := &domain.Thread{}
		if err := scanThreadRow(rows, t); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadMemberState(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// loadMemberState fills the Reads and UnreadCounts maps for the given
// threads in one query.
func (r *ThreadRepo) loadMemberState(ctx context.Context, threads []*domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Thread, len(threads))
	placeholders := make([]string, 0, len(threads))
	args := make([]any, 0, len(threads))
	for _, t := range threads {
		t.Reads = make(map[string]time.Time, 2)
		t.UnreadCounts = make(map[string]int, 2)
		byID[t.PairID] = t
		placeholders = append(placeholders, "?")
		args = append(args, t.PairID)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT thread_id, uid, last_read_at, unread_count
		FROM thread_members
		WHERE thread_id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("load thread members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var threadID, memberUID string
		var lastRead *time.Time
		var unread int
		if err := rows.Scan(&threadID, &memberUID, &lastRead, &unread); err != nil {
			return fmt.Errorf("scan thread member: %w", err)
		}
		t, ok := byID[threadID]
		if !ok {
			continue
		}
		if lastRead != nil {
			t.Reads[memberUID] = *lastRead
		}
		t.UnreadCounts[memberUID] = unread
	}
	return rows.Err()
}
