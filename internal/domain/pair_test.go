package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reelcv-backend/internal/domain"
)

func TestPairID(t *testing.T) {
	t.Run("Symmetric", func(t *testing.T) {
		assert.Equal(t, domain.PairID("alice", "bob"), domain.PairID("bob", "alice"))
	})

	t.Run("SmallerFirst", func(t *testing.T) {
		assert.Equal(t, "alice_bob", domain.PairID("bob", "alice"))
		assert.Equal(t, "alice_bob", domain.PairID("alice", "bob"))
	})

	t.Run("DistinctPairsDistinctIDs", func(t *testing.T) {
		assert.NotEqual(t, domain.PairID("alice", "bob"), domain.PairID("alice", "carol"))
	})
}

func TestThreadUnreadCount(t *testing.T) {
	now := time.Now().UTC()
	earlier := now.Add(-time.Minute)
	sender := "bob"

	base := func() *domain.Thread {
		return &domain.Thread{
			PairID:       "alice_bob",
			MemberA:      "alice",
			MemberB:      "bob",
			Reads:        map[string]time.Time{},
			UnreadCounts: map[string]int{},
		}
	}

	t.Run("ExplicitCounterWins", func(t *testing.T) {
		th := base()
		th.LastMessageAt = &now
		th.LastSender = &sender
		th.UnreadCounts["alice"] = 3
		assert.Equal(t, 3, th.UnreadCount("alice"))
		assert.True(t, th.Unread("alice"))
	})

	t.Run("TimestampFallbackWhenCounterAbsent", func(t *testing.T) {
		th := base()
		th.LastMessageAt = &now
		th.LastSender = &sender
		th.Reads["alice"] = earlier
		assert.Equal(t, 1, th.UnreadCount("alice"))
	})

	t.Run("ReadCursorAtOrAfterLastMessage", func(t *testing.T) {
		th := base()
		th.LastMessageAt = &earlier
		th.LastSender = &sender
		th.Reads["alice"] = now
		assert.Equal(t, 0, th.UnreadCount("alice"))
		assert.False(t, th.Unread("alice"))
	})

	t.Run("SenderNeverUnreadViaFallback", func(t *testing.T) {
		th := base()
		th.LastMessageAt = &now
		th.LastSender = &sender
		assert.Equal(t, 0, th.UnreadCount("bob"))
	})

	t.Run("EmptyThread", func(t *testing.T) {
		th := base()
		assert.Equal(t, 0, th.UnreadCount("alice"))
	})
}

func TestThreadMembers(t *testing.T) {
	th := &domain.Thread{MemberA: "alice", MemberB: "bob"}
	assert.True(t, th.HasMember("alice"))
	assert.True(t, th.HasMember("bob"))
	assert.False(t, th.HasMember("carol"))
	assert.Equal(t, "bob", th.Other("alice"))
	assert.Equal(t, "alice", th.Other("bob"))
}
