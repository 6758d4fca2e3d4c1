package queue

import (
	"context"
	"testing"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/google/uuid"
)

func testEnvelope() domain.Envelope {
	return domain.Envelope{
		CommandID:   uuid.NewString(),
		UserID:      "user-1",
		Action:      domain.ActionCreate,
		LessonID:    uuid.New(),
		SubmittedAt: time.Now().UTC(),
		ExpiresAt:   time.Now().UTC().Add(5 * time.Minute),
	}
}

func TestMemoryQueueAckRemoves(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()
	if err := q.Enqueue(ctx, testEnvelope()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if d.DeliveryCount != 1 {
		t.Fatalf("expected first delivery count 1, got %d", d.DeliveryCount)
	}
	if err := q.Ack(ctx, d); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if q.Pending() != 0 {
		t.Fatalf("expected empty queue after ack, got %d pending", q.Pending())
	}
}

func TestMemoryQueueNackRedeliversAfterVisibilityWindow(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(30 * time.Millisecond)
	ctx := context.Background()
	env := testEnvelope()
	if err := q.Enqueue(ctx, env); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := q.Nack(ctx, d); err != nil {
		t.Fatalf("nack: %v", err)
	}

	// The nacked envelope stays invisible until the window elapses; a hot
	// retry loop here would hammer a store that is already failing.
	immediateCtx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	if _, err := q.Dequeue(immediateCtx); err == nil {
		cancel()
		t.Fatalf("expected nacked delivery to stay invisible")
	}
	cancel()

	waitCtx, cancelWait := context.WithTimeout(ctx, time.Second)
	defer cancelWait()
	redelivered, err := q.Dequeue(waitCtx)
	if err != nil {
		t.Fatalf("dequeue after nack: %v", err)
	}
	if redelivered.Envelope.CommandID != env.CommandID {
		t.Fatalf("expected same command back, got %s", redelivered.Envelope.CommandID)
	}
	if redelivered.DeliveryCount != 2 {
		t.Fatalf("expected delivery count 2 after nack, got %d", redelivered.DeliveryCount)
	}
}

func TestMemoryQueueVisibilityTimeoutRedelivers(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(20 * time.Millisecond)
	ctx := context.Background()
	if err := q.Enqueue(ctx, testEnvelope()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Never acked: the envelope must come back once the visibility window
	// elapses.
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d, err := q.Dequeue(waitCtx)
	if err != nil {
		t.Fatalf("expected redelivery after visibility timeout: %v", err)
	}
	if d.DeliveryCount != 2 {
		t.Fatalf("expected delivery count 2 on redelivery, got %d", d.DeliveryCount)
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("expected context error on empty queue")
	}
}
