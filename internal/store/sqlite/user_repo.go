package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reelcv-backend/internal/domain"
)

const userColumns = `uid, username, email, display_name, avatar_url, headline, role, hashed_password, is_active, created_at, last_seen`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.LastSeen = now
	u.IsActive = true
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO users (uid, username, email, display_name, avatar_url, headline, role, hashed_password, is_active, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.UID, u.Username, u.Email, u.DisplayName, u.AvatarURL, u.Headline, u.Role, u.HashedPassword, u.IsActive, u.CreatedAt, u.LastSeen); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, uid)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) List(ctx context.Context, query string, offset, limit int) ([]*domain.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_active = 1
	`
	args := []any{}
	if query != "" {
		q += ` AND (username LIKE ? OR display_name LIKE ? OR headline LIKE ?)`
		like := "%" + query + "%"
		args = append(args, like, like, like)
	}
	q += ` ORDER BY created_at ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var res []*domain.User
	for rows.Next() {
		u := &domain.User{}
		if err := scanUserRow(rows, u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET display_name = ?, avatar_url = ?, headline = ?, role = ?, email = ?, is_active = ?
		WHERE uid = ?
	`, u.DisplayName, u.AvatarURL, u.Headline, u.Role, u.Email, u.IsActive, u.UID); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepo) UpdateLastSeen(ctx context.Context, uid string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_seen = ? WHERE uid = ?
	`, time.Now().UTC(), uid); err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(row rowScanner, u *domain.User) error {
	return row.Scan(
		&u.UID,
		&u.Username,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.Headline,
		&u.Role,
		&u.HashedPassword,
		&u.IsActive,
		&u.CreatedAt,
		&u.LastSeen,
	)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := scanUserRow(r.db.QueryRowContext(ctx, query, arg), u)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
