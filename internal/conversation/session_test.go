package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCreatesSessionOnce(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)

	first := store.GetOrCreate("42")
	second := store.GetOrCreate("42")

	assert.Same(t, first, second)
	assert.Equal(t, StageInitial, first.Stage())
	assert.Equal(t, 0, first.Len())
	assert.Equal(t, 1, store.Len())
}

func TestStoreIsolatesIdentities(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)

	a := store.GetOrCreate("1")
	b := store.GetOrCreate("2")

	a.Append(ChatRoleUser, "от первого")
	a.advanceStage()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, StageInitial, b.Stage())
	assert.Equal(t, StageActive, a.Stage())
}

func TestSessionHistoryEvictsOldest(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")

	for i := 0; i < 9; i++ {
		sess.Append(ChatRoleUser, fmt.Sprintf("вопрос %d", i))
		sess.Append(ChatRoleAssistant, fmt.Sprintf("ответ %d", i))
	}

	history := sess.History()
	require.Len(t, history, DefaultHistoryLimit)
	// Only the newest ten messages survive.
	assert.Equal(t, "вопрос 4", history[0].Content)
	assert.Equal(t, "ответ 8", history[9].Content)
}

func TestSessionHistoryBelowCapacityKeepsAll(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")

	for i := 0; i < 3; i++ {
		sess.Append(ChatRoleUser, "в")
		sess.Append(ChatRoleAssistant, "о")
	}

	assert.Equal(t, 6, sess.Len())
}

func TestSessionHistoryReturnsCopy(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	sess := store.GetOrCreate("42")
	sess.Append(ChatRoleUser, "оригинал")

	snapshot := sess.History()
	snapshot[0].Content = "изменено"

	assert.Equal(t, "оригинал", sess.History()[0].Content)
}

func TestStoreLookupDoesNotCreate(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)

	_, ok := store.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestCleanupExpiredRemovesIdleSessions(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 50*time.Millisecond)

	idle := store.GetOrCreate("idle")
	idle.Append(ChatRoleUser, "старое")

	time.Sleep(80 * time.Millisecond)

	fresh := store.GetOrCreate("fresh")
	fresh.Append(ChatRoleUser, "новое")

	removed := store.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Lookup("idle")
	assert.False(t, ok)
	_, ok = store.Lookup("fresh")
	assert.True(t, ok)
}

func TestCleanupExpiredSkipsInFlightTurn(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, time.Nanosecond)

	sess := store.GetOrCreate("busy")
	sess.LockTurn()
	defer sess.UnlockTurn()

	time.Sleep(5 * time.Millisecond)

	removed := store.CleanupExpired()
	assert.Equal(t, 0, removed)
	_, ok := store.Lookup("busy")
	assert.True(t, ok)
}

func TestCleanupDisabledWithZeroTTL(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)
	store.GetOrCreate("forever")

	assert.Equal(t, 0, store.CleanupExpired())
	assert.Equal(t, 1, store.Len())
}

func TestStoreConcurrentGetOrCreate(t *testing.T) {
	store := NewStore(DefaultHistoryLimit, 0)

	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = store.GetOrCreate("same")
		}(i)
	}
	wg.Wait()

	for _, sess := range sessions[1:] {
		assert.Same(t, sessions[0], sess)
	}
	assert.Equal(t, 1, store.Len())
}
