package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelcv-backend/internal/domain"
)

func (e *testEnv) seedPendingConnection(t *testing.T, from, to string) string {
	t.Helper()
	pairID := domain.PairID(from, to)
	now := time.Now().UTC()
	conn := &domain.Connection{
		PairID:      pairID,
		MemberA:     min(from, to),
		MemberB:     max(from, to),
		Status:      domain.ConnectionPending,
		RequestedBy: from,
		RequestedTo: to,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.connections.UpsertStatus(context.Background(), conn, domain.EventSourceRequest))
	return pairID
}

func TestRespondConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("RecipientAccepts", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := env.seedPendingConnection(t, alice.UID, bob.UID)

		require.NoError(t, env.connSvc.Respond(ctx, bob.UID, pairID, "accept"))

		conn, err := env.connSvc.Get(ctx, bob.UID, pairID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConnectionAccepted, conn.Status)
	})

	t.Run("RequesterCannotRespond", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := env.seedPendingConnection(t, alice.UID, bob.UID)

		err := env.connSvc.Respond(ctx, alice.UID, pairID, "accept")
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})

	t.Run("ResolvedConnectionImmutable", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := env.seedPendingConnection(t, alice.UID, bob.UID)

		require.NoError(t, env.connSvc.Respond(ctx, bob.UID, pairID, "decline"))

		err := env.connSvc.Respond(ctx, bob.UID, pairID, "accept")
		assert.Equal(t, domain.CodeFailedPrecondition, domain.ErrCode(err))
	})

	t.Run("UnknownAction", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		pairID := env.seedPendingConnection(t, alice.UID, bob.UID)

		err := env.connSvc.Respond(ctx, bob.UID, pairID, "block")
		assert.Equal(t, domain.CodeInvalidArgument, domain.ErrCode(err))
	})
}

func TestGetConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("MembersOnly", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		carol := env.seedUser(t, "carol")
		pairID := env.seedPendingConnection(t, alice.UID, bob.UID)

		_, err := env.connSvc.Get(ctx, carol.UID, pairID)
		assert.Equal(t, domain.CodePermissionDenied, domain.ErrCode(err))
	})

	t.Run("ListWithPeerProfiles", func(t *testing.T) {
		env := newTestEnv(t)
		alice := env.seedUser(t, "alice")
		bob := env.seedUser(t, "bob")
		env.acceptConnection(t, alice.UID, bob.UID)

		views, err := env.connSvc.ListForUser(ctx, alice.UID)
		require.NoError(t, err)
		require.Len(t, views, 1)
		require.NotNil(t, views[0].Peer)
		assert.Equal(t, bob.UID, views[0].Peer.UID)
	})
}
