package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedStore remembers which Telegram update IDs have already been
// handled so that webhook retries do not produce duplicate turns. An update
// is marked only after it was handed off successfully, so a failed handoff
// stays retryable.
type ProcessedStore interface {
	// AlreadyProcessed reports whether the update was handled before.
	AlreadyProcessed(ctx context.Context, updateID int64) (bool, error)
	// MarkProcessed records the update as handled.
	MarkProcessed(ctx context.Context, updateID int64) error
}

const memoryDedupeCapacity = 4096

// MemoryProcessedStore is a bounded in-process dedupe set. It is the
// default when no Redis address is configured and is sufficient for a
// single-instance deployment.
type MemoryProcessedStore struct {
	mu    sync.Mutex
	seen  map[int64]struct{}
	order []int64
	cap   int
}

// NewMemoryProcessedStore creates an in-memory dedupe store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{
		seen: make(map[int64]struct{}),
		cap:  memoryDedupeCapacity,
	}
}

// AlreadyProcessed reports whether the update ID is in the set.
func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, updateID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[updateID]
	return ok, nil
}

// MarkProcessed records the update ID, evicting the oldest entries once
// the capacity is exceeded. Marking an already-present ID is a no-op.
func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, updateID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[updateID]; ok {
		return nil
	}
	s.seen[updateID] = struct{}{}
	s.order = append(s.order, updateID)

	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	return nil
}

const redisDedupeTTL = 24 * time.Hour

// RedisProcessedStore deduplicates update IDs across instances. Entries
// expire on their own, so the set stays bounded.
type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProcessedStore wraps a Redis client as a dedupe store.
func NewRedisProcessedStore(client *redis.Client) *RedisProcessedStore {
	return &RedisProcessedStore{
		client: client,
		ttl:    redisDedupeTTL,
	}
}

// AlreadyProcessed reports whether the update ID was recorded and has not
// expired yet.
func (s *RedisProcessedStore) AlreadyProcessed(ctx context.Context, updateID int64) (bool, error) {
	n, err := s.client.Exists(ctx, dedupeKey(updateID)).Result()
	if err != nil {
		return false, fmt.Errorf("telegram: failed to check update dedupe: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the update ID with the dedupe TTL.
func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, updateID int64) error {
	if err := s.client.Set(ctx, dedupeKey(updateID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("telegram: failed to mark update processed: %w", err)
	}
	return nil
}

func dedupeKey(updateID int64) string {
	return fmt.Sprintf("tg:update:%d", updateID)
}
