package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

const memoryQueueCapacity = 1024

// MemoryQueue is the in-process command channel used when no Redis stream is
// configured (local development) and in tests. It keeps the same at-least-once
// semantics as the stream transport: an unacked delivery is redelivered after
// the visibility timeout, and the delivery counter grows on each attempt.
type MemoryQueue struct {
	mu         sync.Mutex
	visibility time.Duration
	ready      chan string
	items      map[string]*memoryItem
	seq        int64
}

type memoryItem struct {
	env        domain.Envelope
	deliveries int
	timer      *time.Timer
}

func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueue{
		visibility: visibility,
		ready:      make(chan string, memoryQueueCapacity),
		items:      make(map[string]*memoryItem),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, env domain.Envelope) error {
	q.mu.Lock()
	q.seq++
	id := strconv.FormatInt(q.seq, 10)
	q.items[id] = &memoryItem{env: env}
	q.mu.Unlock()

	select {
	case q.ready <- id:
		return nil
	default:
		q.mu.Lock()
		delete(q.items, id)
		q.mu.Unlock()
		return fmt.Errorf("%w: queue full", domain.ErrQueueUnavailable)
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*ports.Delivery, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case id := <-q.ready:
			q.mu.Lock()
			item, ok := q.items[id]
			if !ok {
				q.mu.Unlock()
				continue
			}
			item.deliveries++
			item.timer = time.AfterFunc(q.visibility, func() { q.redeliver(id) })
			d := &ports.Delivery{
				Envelope:      item.env,
				DeliveryCount: item.deliveries,
				AckID:         id,
			}
			q.mu.Unlock()
			return d, nil
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, d *ports.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item, ok := q.items[d.AckID]; ok {
		if item.timer != nil {
			item.timer.Stop()
		}
		delete(q.items, d.AckID)
	}
	return nil
}

// Nack keeps the envelope invisible for one visibility window before
// redelivery, matching the stream transport's pacing. An immediate re-enqueue
// would spin hot against a store outage.
func (q *MemoryQueue) Nack(_ context.Context, d *ports.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[d.AckID]
	if !ok {
		return nil
	}
	if item.timer != nil {
		item.timer.Stop()
	}
	item.timer = time.AfterFunc(q.visibility, func() { q.redeliver(d.AckID) })
	return nil
}

func (q *MemoryQueue) redeliver(id string) {
	q.mu.Lock()
	_, ok := q.items[id]
	q.mu.Unlock()
	if !ok {
		return
	}
	select {
	case q.ready <- id:
	default:
		// Ready channel full; try again after another visibility window
		// rather than blocking a timer goroutine.
		q.mu.Lock()
		if item, ok := q.items[id]; ok {
			item.timer = time.AfterFunc(q.visibility, func() { q.redeliver(id) })
		}
		q.mu.Unlock()
	}
}

// Pending reports queued plus in-flight envelopes. Test helper.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

var _ ports.CommandQueue = (*MemoryQueue)(nil)
