package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelcv-backend/internal/domain"
)

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresAcceptedConnection", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		// Thread exists but no connection at all.
		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		_, err = env.msgSvc.Send(ctx, alice.UID, res.ThreadID, "hi")
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})

	t.Run("PendingConnectionStillGated", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")

		_, err := env.requestSvc.Send(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		_, err = env.msgSvc.Send(ctx, alice.UID, res.ThreadID, "hi")
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})

	t.Run("AcceptedConnectionAllows", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		env.acceptConnection(t, alice.UID, bob.UID)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		m, err := env.msgSvc.Send(ctx, alice.UID, res.ThreadID, "hi bob")
		require.NoError(t, err)
		assert.Equal(t, alice.UID, m.SenderUID)

		// Content is encrypted at rest.
		assert.NotEqual(t, "hi bob", m.Content)
		dto := env.msgSvc.ToResponse(ctx, m)
		assert.Equal(t, "hi bob", dto.Text)
		assert.Equal(t, "alice", dto.SenderUsername)
	})

	t.Run("EmptyAndOversizeRejected", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		env.acceptConnection(t, alice.UID, bob.UID)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		_, err = env.msgSvc.Send(ctx, alice.UID, res.ThreadID, "   ")
		assert.Equal(t, domain.CodeInvalidArgument, domain.ErrCode(err))

		_, err = env.msgSvc.Send(ctx, alice.UID, res.ThreadID, strings.Repeat("x", 5001))
		assert.Equal(t, domain.CodeInvalidArgument, domain.ErrCode(err))
	})

	t.Run("NonMemberDenied", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		carol := env.seedUser(t, "carol")
		env.acceptConnection(t, alice.UID, bob.UID)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		_, err = env.msgSvc.Send(ctx, carol.UID, res.ThreadID, "let me in")
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("ChronologicalOrder", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		env.acceptConnection(t, alice.UID, bob.UID)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		for _, text := range []string{"one", "two", "three"} {
			_, err := env.msgSvc.Send(ctx, alice.UID, res.ThreadID, text)
			require.NoError(t, err)
		}

		msgs, err := env.msgSvc.List(ctx, bob.UID, res.ThreadID, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 3)

		dtos := env.msgSvc.ToResponses(ctx, msgs)
		assert.Equal(t, "one", dtos[0].Text)
		assert.Equal(t, "two", dtos[1].Text)
		assert.Equal(t, "three", dtos[2].Text)
		assert.False(t, dtos[1].CreatedAt.Before(dtos[0].CreatedAt))
	})

	t.Run("NonMemberDenied", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		carol := env.seedUser(t, "carol")
		env.acceptConnection(t, alice.UID, bob.UID)

		res, err := env.threadSvc.Open(ctx, alice.UID, bob.UID)
		require.NoError(t, err)

		_, err = env.msgSvc.List(ctx, carol.UID, res.ThreadID, 0)
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})
}
