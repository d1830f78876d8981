package outbox_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelcv-backend/internal/domain"
	"reelcv-backend/internal/outbox"
	"reelcv-backend/internal/security"
	"reelcv-backend/internal/service"
	"reelcv-backend/internal/store/sqlite"
)

// capturePush records realtime payloads instead of a live websocket hub.
type capturePush struct {
	mu     sync.Mutex
	pushes []pushedPayload
}

type pushedPayload struct {
	UIDs    []string
	Payload any
}

func (c *capturePush) NotifyUsers(uids []string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushes = append(c.pushes, pushedPayload{UIDs: uids, Payload: payload})
}

type workerEnv struct {
	users         *sqlite.UserRepo
	connections   *sqlite.ConnectionRepo
	threads       *sqlite.ThreadRepo
	notifications *sqlite.NotificationRepo
	outboxRepo    *sqlite.OutboxRepo

	encryptor *security.Encryptor

	requestSvc *service.RequestService
	connSvc    *service.ConnectionService
	threadSvc  *service.ThreadService
	msgSvc     *service.MessageService

	push   *capturePush
	worker *outbox.Worker
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	enc, err := security.NewEncryptor([]byte("test-encryption-key"))
	require.NoError(t, err)

	env := &workerEnv{
		users:         sqlite.NewUserRepo(db),
		connections:   sqlite.NewConnectionRepo(db),
		threads:       sqlite.NewThreadRepo(db),
		notifications: sqlite.NewNotificationRepo(db),
		outboxRepo:    sqlite.NewOutboxRepo(db),
		encryptor:     enc,
		push:          &capturePush{},
	}
	requests := sqlite.NewRequestRepo(db)
	messages := sqlite.NewMessageRepo(db)

	env.requestSvc = service.NewRequestService(requests, env.connections, env.users)
	env.connSvc = service.NewConnectionService(env.connections, env.users)
	env.threadSvc = service.NewThreadService(env.threads, env.connections, env.users, enc)
	env.msgSvc = service.NewMessageService(env.threads, env.connections, messages, env.users, enc, 5000, 200)

	env.worker = outbox.NewWorker(env.outboxRepo, env.users, env.connections, env.threads, env.notifications, env.push, time.Millisecond)
	return env
}

func (e *workerEnv) seedUser(t *testing.T, username string) *domain.User {
	t.Helper()
	u := &domain.User{
		UID:            uuid.NewString(),
		Username:       username,
		DisplayName:    strings.ToUpper(username[:1]) + username[1:],
		Role:           "candidate",
		HashedPassword: "x",
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
		LastSeen:       time.Now().UTC(),
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *workerEnv) drain(t *testing.T) {
	t.Helper()
	require.NoError(t, e.worker.Drain(context.Background()))
}

func TestRequestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("SendCreatesPendingConnectionAndNotifiesRecipient", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		req, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)

		pairID := domain.PairID(alice.UID, bob.UID)
		conn, err := env.connections.Get(ctx, pairID)
		require.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, domain.ConnectionPending, conn.Status)
		assert.Equal(t, alice.UID, conn.RequestedBy)
		assert.Equal(t, bob.UID, conn.RequestedTo)

		notifs, err := env.notifications.ListForUser(ctx, bob.UID, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, domain.NotificationConnectionRequest, notifs[0].Type)
		assert.Equal(t, alice.UID, notifs[0].FromUID)
		assert.Equal(t, "Alice", notifs[0].FromDisplayName)
		require.NotNil(t, notifs[0].RequestID)
		assert.Equal(t, req.ID, *notifs[0].RequestID)

		// Requester gets no notification for their own send.
		mine, err := env.notifications.ListForUser(ctx, alice.UID, 0)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("AcceptOpensThreadAndNotifiesRequester", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		req, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)

		require.NoError(t, env.requestSvc.Accept(ctx, bob.UID, req.ID))
		env.drain(t)

		pairID := domain.PairID(alice.UID, bob.UID)
		conn, err := env.connections.Get(ctx, pairID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionAccepted, conn.Status)

		th, err := env.threads.Get(ctx, pairID)
		require.NoError(t, err)
		require.NotNil(t, th)
		require.NotNil(t, th.ConnectionID)
		assert.Equal(t, pairID, *th.ConnectionID)
		assert.Nil(t, th.LastMessageAt)

		notifs, err := env.notifications.ListForUser(ctx, alice.UID, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, domain.NotificationConnectionAccepted, notifs[0].Type)
		assert.Equal(t, bob.UID, notifs[0].FromUID)
	})

	t.Run("DeclineNotifiesRequester", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		req, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)

		require.NoError(t, env.requestSvc.Decline(ctx, bob.UID, req.ID))
		env.drain(t)

		conn, err := env.connections.Get(ctx, domain.PairID(alice.UID, bob.UID))
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionDeclined, conn.Status)

		notifs, err := env.notifications.ListForUser(ctx, alice.UID, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, domain.NotificationConnectionDeclined, notifs[0].Type)
	})

	t.Run("CancelClosesConnectionAndNotifiesRecipient", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		req, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)

		require.NoError(t, env.requestSvc.Cancel(ctx, alice.UID, req.ID))
		env.drain(t)

		conn, err := env.connections.Get(ctx, domain.PairID(alice.UID, bob.UID))
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionDeclined, conn.Status)

		notifs, err := env.notifications.ListForUser(ctx, bob.UID, 0)
		require.NoError(t, err)
		// The original connection_request plus the cancellation.
		require.Len(t, notifs, 2)
		var canceled *domain.Notification
		for _, n := range notifs {
			if n.Type == domain.NotificationConnectionCanceled {
				canceled = n
			}
		}
		require.NotNil(t, canceled)
		assert.Equal(t, alice.UID, canceled.FromUID)
	})

	t.Run("DirectRespondNotifiesRequester", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		_, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)

		pairID := domain.PairID(alice.UID, bob.UID)
		require.NoError(t, env.connSvc.Respond(ctx, bob.UID, pairID, "accept"))
		env.drain(t)

		th, err := env.threads.Get(ctx, pairID)
		require.NoError(t, err)
		require.NotNil(t, th)

		notifs, err := env.notifications.ListForUser(ctx, alice.UID, 0)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, domain.NotificationConnectionAccepted, notifs[0].Type)
	})
}

func TestDrainIdempotency(t *testing.T) {
	ctx := context.Background()

	t.Run("SecondDrainIsNoOp", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		_, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		env.drain(t)
		env.drain(t)

		notifs, err := env.notifications.ListForUser(ctx, bob.UID, 0)
		require.NoError(t, err)
		assert.Len(t, notifs, 1)

		pending, err := env.outboxRepo.ListUnprocessed(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("SameStatusUpsertEmitsNoEvent", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		req, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)
		require.NoError(t, env.requestSvc.Accept(ctx, bob.UID, req.ID))
		env.drain(t)

		pairID := domain.PairID(alice.UID, bob.UID)
		conn, err := env.connections.Get(ctx, pairID)
		require.NoError(t, err)

		// Replaying the accepted status must not enqueue anything.
		require.NoError(t, env.connections.UpsertStatus(ctx, conn, domain.EventSourceRequest))

		pending, err := env.outboxRepo.ListUnprocessed(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestMessageReconciliation(t *testing.T) {
	ctx := context.Background()

	connect := func(t *testing.T, env *workerEnv, a, b *domain.User) string {
		req, err := env.requestSvc.Send(ctx, a.UID, b.UID)
		require.NoError(t, err)
		require.NoError(t, env.requestSvc.Accept(ctx, b.UID, req.ID))
		env.drain(t)
		return domain.PairID(a.UID, b.UID)
	}

	t.Run("UpdatesAggregateAndUnread", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := connect(t, env, alice, bob)

		_, err := env.msgSvc.Send(ctx, alice.UID, pairID, "first")
		require.NoError(t, err)
		_, err = env.msgSvc.Send(ctx, alice.UID, pairID, "second")
		require.NoError(t, err)
		env.drain(t)

		th, err := env.threads.Get(ctx, pairID)
		require.NoError(t, err)
		require.NotNil(t, th.LastMessage)
		plain, err := env.encryptor.Decrypt(*th.LastMessage)
		require.NoError(t, err)
		assert.Equal(t, "second", plain)
		require.NotNil(t, th.LastSender)
		assert.Equal(t, alice.UID, *th.LastSender)

		assert.Equal(t, 2, th.UnreadCount(bob.UID))
		assert.Equal(t, 0, th.UnreadCount(alice.UID))
	})

	t.Run("PreviewTruncatedMessageIntact", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := connect(t, env, alice, bob)

		long := strings.Repeat("å", 600)
		_, err := env.msgSvc.Send(ctx, alice.UID, pairID, long)
		require.NoError(t, err)
		env.drain(t)

		th, err := env.threads.Get(ctx, pairID)
		require.NoError(t, err)
		require.NotNil(t, th.LastMessage)
		preview, err := env.encryptor.Decrypt(*th.LastMessage)
		require.NoError(t, err)
		assert.Len(t, []rune(preview), domain.PreviewMaxChars)

		msgs, err := env.msgSvc.List(ctx, bob.UID, pairID, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		full := env.msgSvc.ToResponse(ctx, msgs[0])
		assert.Len(t, []rune(full.Text), 600)
	})

	t.Run("ConcurrentSendsAllCounted", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := connect(t, env, alice, bob)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.msgSvc.Send(ctx, alice.UID, pairID, "ping")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		env.drain(t)

		th, err := env.threads.Get(ctx, pairID)
		require.NoError(t, err)
		assert.Equal(t, n, th.UnreadCount(bob.UID))
	})

	t.Run("MissingThreadHealsSilently", func(t *testing.T) {
		env := newWorkerEnv(t)
		alice := env.seedUser(t, "alice")

		// An ApplyMessage for a thread that never existed must not error;
		// the event is consumed and the log stays clean.
		enc, err := env.encryptor.Encrypt("ghost")
		require.NoError(t, err)
		require.NoError(t, env.threads.ApplyMessage(ctx, "ghost_pair", alice.UID, enc, time.Now().UTC()))

		pending, err := env.outboxRepo.ListUnprocessed(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
