package cache

import (
	"context"
	"testing"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
)

func TestMemoryCacheWriteOnce(t *testing.T) {
	t.Parallel()

	c := NewMemoryIdempotencyCache()
	ctx := context.Background()
	v := int64(0)
	first := ports.OutcomeRecord{
		CommandID:  "cmd-1",
		UserID:     "user-1",
		LessonID:   uuid.New(),
		Status:     domain.OutcomeApplied,
		NewVersion: &v,
		RecordedAt: time.Now().UTC(),
	}
	if err := c.PutIfAbsent(ctx, first, time.Hour); err != nil {
		t.Fatalf("put: %v", err)
	}

	second := first
	second.Status = domain.OutcomeConflict
	if err := c.PutIfAbsent(ctx, second, time.Hour); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := c.Get(ctx, "cmd-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected record")
	}
	if got.Status != domain.OutcomeApplied {
		t.Fatalf("expected first write to win, got %s", got.Status)
	}
}

func TestMemoryCacheMissReturnsNil(t *testing.T) {
	t.Parallel()

	c := NewMemoryIdempotencyCache()
	got, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()

	c := NewMemoryIdempotencyCache()
	now := time.Now().UTC()
	c.nowFn = func() time.Time { return now }

	rec := ports.OutcomeRecord{
		CommandID:  "cmd-ttl",
		UserID:     "user-1",
		LessonID:   uuid.New(),
		Status:     domain.OutcomeApplied,
		RecordedAt: now,
	}
	if err := c.PutIfAbsent(context.Background(), rec, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(2 * time.Minute)
	got, err := c.Get(context.Background(), "cmd-ttl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected expired record to be gone, got %+v", got)
	}
}
