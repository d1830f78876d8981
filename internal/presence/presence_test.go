package presence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelcv-backend/internal/presence"
)

// memKV is an in-memory KV with real expiry semantics, checked lazily on
// read the way Redis TTLs behave from a client's point of view.
type memKV struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func newMemKV() *memKV {
	return &memKV{entries: make(map[string]memEntry), now: time.Now}
}

func (m *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *memKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// advance pushes the kv's clock forward without sleeping.
func (m *memKV) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.now
	m.now = func() time.Time { return base().Add(d) }
}

func TestPresenceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("OnlineThenExpires", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.SetOnline(ctx, "alice"))

		rec, err := tr.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, presence.StateOnline, rec.State)
		assert.NotZero(t, rec.LastChanged)

		// No heartbeat; the record times out on its own.
		kv.advance(31 * time.Second)
		rec, err = tr.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, presence.StateOffline, rec.State)
	})

	t.Run("HeartbeatRenews", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.SetOnline(ctx, "alice"))
		kv.advance(20 * time.Second)
		require.NoError(t, tr.SetOnline(ctx, "alice")) // heartbeat
		kv.advance(20 * time.Second)

		rec, err := tr.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, presence.StateOnline, rec.State)
	})

	t.Run("ExplicitOffline", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.SetOnline(ctx, "alice"))
		require.NoError(t, tr.SetOffline(ctx, "alice"))

		rec, err := tr.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, presence.StateOffline, rec.State)
	})

	t.Run("UnknownUserIsOffline", func(t *testing.T) {
		tr := presence.NewTracker(newMemKV(), 30*time.Second, 4*time.Second)

		rec, err := tr.Get(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, presence.StateOffline, rec.State)
	})

	t.Run("GetMany", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.SetOnline(ctx, "alice"))

		recs := tr.GetMany(ctx, []string{"alice", "bob"})
		assert.Equal(t, presence.StateOnline, recs["alice"].State)
		assert.Equal(t, presence.StateOffline, recs["bob"].State)
	})
}

func TestTyping(t *testing.T) {
	ctx := context.Background()

	t.Run("FlagExpires", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.Typing(ctx, "alice_bob", "alice"))

		typing, err := tr.IsTyping(ctx, "alice_bob", "alice")
		require.NoError(t, err)
		assert.True(t, typing)

		kv.advance(5 * time.Second)
		typing, err = tr.IsTyping(ctx, "alice_bob", "alice")
		require.NoError(t, err)
		assert.False(t, typing)
	})

	t.Run("StopTypingClearsImmediately", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.Typing(ctx, "alice_bob", "alice"))
		require.NoError(t, tr.StopTyping(ctx, "alice_bob", "alice"))

		typing, err := tr.IsTyping(ctx, "alice_bob", "alice")
		require.NoError(t, err)
		assert.False(t, typing)
	})

	t.Run("ScopedPerThreadAndUser", func(t *testing.T) {
		kv := newMemKV()
		tr := presence.NewTracker(kv, 30*time.Second, 4*time.Second)

		require.NoError(t, tr.Typing(ctx, "alice_bob", "alice"))

		typing, err := tr.IsTyping(ctx, "alice_bob", "bob")
		require.NoError(t, err)
		assert.False(t, typing)

		typing, err = tr.IsTyping(ctx, "alice_carol", "alice")
		require.NoError(t, err)
		assert.False(t, typing)
	})
}
