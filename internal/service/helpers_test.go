package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/security"
	"reelcv-backend/internal/service"
	"reelcv-backend/internal/store/sqlite"
)

// testEnv wires real sqlite repositories against an in-memory database so
// service tests exercise the actual SQL paths.
type testEnv struct {
	db *sql.DB

	users       *sqlite.UserRepo
	requests    *sqlite.RequestRepo
	connections *sqlite.ConnectionRepo
	threads     *sqlite.ThreadRepo
	messages    *sqlite.MessageRepo
	outbox      *sqlite.OutboxRepo

	encryptor *security.Encryptor

	requestSvc *service.RequestService
	connSvc    *service.ConnectionService
	threadSvc  *service.ThreadService
	msgSvc     *service.MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	enc, err := security.NewEncryptor([]byte("test-encryption-key"))
	require.NoError(t, err)

	env := &testEnv{
		db:          db,
		users:       sqlite.NewUserRepo(db),
		requests:    sqlite.NewRequestRepo(db),
		connections: sqlite.NewConnectionRepo(db),
		threads:     sqlite.NewThreadRepo(db),
		messages:    sqlite.NewMessageRepo(db),
		outbox:      sqlite.NewOutboxRepo(db),
		encryptor:   enc,
	}
	env.requestSvc = service.NewRequestService(env.requests, env.connections, env.users)
	env.connSvc = service.NewConnectionService(env.connections, env.users)
	env.threadSvc = service.NewThreadService(env.threads, env.connections, env.users, enc)
	env.msgSvc = service.NewMessageService(env.threads, env.connections, env.messages, env.users, enc, 5000, 200)
	return env
}

func (e *testEnv) seedUser(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		UID:            uuid.NewString(),
		Username:       username,
		DisplayName:    username,
		Role:           "candidate",
		HashedPassword: "x",
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		LastSeen:       time.Now().UTC(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

// acceptConnection stamps an accepted connection between a and b directly,
// bypassing the request flow, for tests that only need the gate open.
func (e *testEnv) acceptConnection(t *testing.T, a, b string) string {
	t.Helper()
	pairID := domain.PairID(a, b)
	now := time.Now().UTC()
	conn := &domain.Connection{
		PairID:      pairID,
		MemberA:     min(a, b),
		MemberB:     max(a, b),
		Status:      domain.ConnectionAccepted,
		RequestedBy: a,
		RequestedTo: b,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.connections.UpsertStatus(context.Background(), conn, domain.EventSourceRequest))
	return pairID
}
