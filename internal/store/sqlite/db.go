package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate runs a simple, idempotent set of CREATE TABLE / CREATE INDEX
// statements for the connection/messaging schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			uid VARCHAR(36) PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			headline VARCHAR(200) NOT NULL DEFAULT '',
			role VARCHAR(20) NOT NULL DEFAULT 'candidate',
			hashed_password VARCHAR(255) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		// Network request ledger: one row per send, status-mutated over
		// its lifecycle, never deleted.
		`CREATE TABLE IF NOT EXISTS network_requests (
			id VARCHAR(36) PRIMARY KEY,
			from_uid VARCHAR(36) NOT NULL,
			to_uid VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (from_uid) REFERENCES users(uid),
			FOREIGN KEY (to_uid) REFERENCES users(uid)
		);`,
		// Connections, keyed by pair id (at most one per unordered pair).
		`CREATE TABLE IF NOT EXISTS connections (
			pair_id VARCHAR(80) PRIMARY KEY,
			member_a VARCHAR(36) NOT NULL,
			member_b VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL,
			requested_by VARCHAR(36) NOT NULL,
			requested_to VARCHAR(36) NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		// Threads, keyed by pair id.
		`CREATE TABLE IF NOT EXISTS threads (
			pair_id VARCHAR(80) PRIMARY KEY,
			member_a VARCHAR(36) NOT NULL,
			member_b VARCHAR(36) NOT NULL,
			created_at DATETIME NOT NULL,
			last_message_at DATETIME DEFAULT NULL,
			last_message TEXT DEFAULT NULL,
			last_sender VARCHAR(36) DEFAULT NULL,
			connection_id VARCHAR(80) DEFAULT NULL
		);`,
		// Per-member thread state: read cursor and unread counter.
		`CREATE TABLE IF NOT EXISTS thread_members (
			thread_id VARCHAR(80) NOT NULL,
			uid VARCHAR(36) NOT NULL,
			last_read_at DATETIME DEFAULT NULL,
			unread_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (thread_id, uid),
			FOREIGN KEY (thread_id) REFERENCES threads(pair_id)
		);`,
		// Messages, append-only.
		`CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(36) PRIMARY KEY,
			thread_id VARCHAR(80) NOT NULL,
			sender_uid VARCHAR(36) NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(pair_id)
		);`,
		// Notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			type VARCHAR(32) NOT NULL,
			from_uid VARCHAR(36) NOT NULL,
			from_display_name VARCHAR(100) NOT NULL DEFAULT '',
			from_avatar_url TEXT NOT NULL DEFAULT '',
			connection_id VARCHAR(80) NOT NULL,
			request_id VARCHAR(36) DEFAULT NULL,
			read BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		// Outbox event log
		`CREATE TABLE IF NOT EXISTS outbox_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			aggregate_key VARCHAR(80) NOT NULL,
			type VARCHAR(40) NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			processed_at DATETIME DEFAULT NULL
		);`,
		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_from ON network_requests(from_uid, status);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_to ON network_requests(to_uid, status);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_member_a ON connections(member_a);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_member_b ON connections(member_b);`,
		`CREATE INDEX IF NOT EXISTS idx_threads_member_a ON threads(member_a);`,
		`CREATE INDEX IF NOT EXISTS idx_threads_member_b ON threads(member_b);`,
		`CREATE INDEX IF NOT EXISTS idx_threads_last_message_at ON threads(last_message_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread_created ON messages(thread_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_unprocessed ON outbox_events(processed_at, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
