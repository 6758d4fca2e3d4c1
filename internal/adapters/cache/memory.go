package cache

import (
	"context"
	"sync"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

// MemoryIdempotencyCache is the local/dev and test fallback. Same write-once
// contract as the Redis cache, with lazy expiry on read.
type MemoryIdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFn   func() time.Time
}

type memoryEntry struct {
	rec       ports.OutcomeRecord
	expiresAt time.Time
}

func NewMemoryIdempotencyCache() *MemoryIdempotencyCache {
	return &MemoryIdempotencyCache{
		entries: make(map[string]memoryEntry),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryIdempotencyCache) Get(_ context.Context, commandID string) (*ports.OutcomeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[commandID]
	if !ok {
		return nil, nil
	}
	if c.nowFn().After(entry.expiresAt) {
		delete(c.entries, commandID)
		return nil, nil
	}
	rec := entry.rec
	return &rec, nil
}

func (c *MemoryIdempotencyCache) PutIfAbsent(_ context.Context, rec ports.OutcomeRecord, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFn()
	if entry, ok := c.entries[rec.CommandID]; ok && now.Before(entry.expiresAt) {
		return nil
	}
	c.entries[rec.CommandID] = memoryEntry{rec: rec, expiresAt: now.Add(ttl)}
	return nil
}

var _ ports.IdempotencyCache = (*MemoryIdempotencyCache)(nil)
