package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
)

type fakeSubmitQueue struct {
	mu        sync.Mutex
	envelopes []domain.Envelope
	failNext  bool
}

func (q *fakeSubmitQueue) Enqueue(_ context.Context, env domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext {
		q.failNext = false
		return fmt.Errorf("broker unreachable")
	}
	q.envelopes = append(q.envelopes, env)
	return nil
}

func (q *fakeSubmitQueue) Dequeue(context.Context) (*ports.Delivery, error) { return nil, nil }
func (q *fakeSubmitQueue) Ack(context.Context, *ports.Delivery) error      { return nil }
func (q *fakeSubmitQueue) Nack(context.Context, *ports.Delivery) error     { return nil }

func newServiceFixture() (*Service, *fakeSubmitQueue, *fakeCache) {
	queue := &fakeSubmitQueue{}
	cache := newFakeCache()
	svc := NewService(Dependencies{
		Config:      Config{EnvelopeTTL: 5 * time.Minute},
		Queue:       queue,
		Store:       newFakeStore(),
		Idempotency: cache,
		DeadLetters: &fakeDeadLetters{},
	})
	return svc, queue, cache
}

func TestSubmitCommandCreateAssignsIDs(t *testing.T) {
	t.Parallel()

	svc, queue, _ := newServiceFixture()
	accepted, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:  domain.ActionCreate,
		Payload: json.RawMessage(`{"title":"Intro"}`),
		UserID:  "user-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if accepted.CommandID == "" {
		t.Fatalf("expected a generated command id")
	}
	if accepted.LessonID == uuid.Nil {
		t.Fatalf("expected a generated lesson id")
	}
	if !strings.HasSuffix(accepted.LocationHint, accepted.LessonID.String()) {
		t.Fatalf("location hint should point at the new lesson, got %s", accepted.LocationHint)
	}

	if len(queue.envelopes) != 1 {
		t.Fatalf("expected exactly one enqueue, got %d", len(queue.envelopes))
	}
	env := queue.envelopes[0]
	if env.UserID != "user-1" {
		t.Fatalf("envelope must carry the caller identity")
	}
	if !env.ExpiresAt.After(env.SubmittedAt) {
		t.Fatalf("envelope TTL must be stamped at ingress")
	}
}

func TestSubmitCommandHonorsIdempotencyKey(t *testing.T) {
	t.Parallel()

	svc, queue, _ := newServiceFixture()
	accepted, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:    domain.ActionCreate,
		Payload:   json.RawMessage(`{"title":"Intro"}`),
		CommandID: "client-key-1",
		UserID:    "user-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if accepted.CommandID != "client-key-1" {
		t.Fatalf("expected the caller's idempotency key, got %s", accepted.CommandID)
	}
	if queue.envelopes[0].CommandID != "client-key-1" {
		t.Fatalf("envelope must carry the caller's idempotency key")
	}
}

func TestSubmitCommandCreateRejectsLessonID(t *testing.T) {
	t.Parallel()

	svc, _, _ := newServiceFixture()
	_, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:   domain.ActionCreate,
		LessonID: uuid.New(),
		Payload:  json.RawMessage(`{"title":"Intro"}`),
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitCommandRequiresIdentity(t *testing.T) {
	t.Parallel()

	svc, _, _ := newServiceFixture()
	_, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:  domain.ActionCreate,
		Payload: json.RawMessage(`{"title":"Intro"}`),
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSubmitCommandUpdateRequiresExpectedVersion(t *testing.T) {
	t.Parallel()

	svc, _, _ := newServiceFixture()
	_, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:   domain.ActionUpdate,
		LessonID: uuid.New(),
		Payload:  json.RawMessage(`{"title":"Intro"}`),
		UserID:   "user-1",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitCommandQueueFailure(t *testing.T) {
	t.Parallel()

	svc, queue, _ := newServiceFixture()
	queue.failNext = true
	_, err := svc.SubmitCommand(context.Background(), SubmitCommandInput{
		Action:  domain.ActionCreate,
		Payload: json.RawMessage(`{"title":"Intro"}`),
		UserID:  "user-1",
	})
	if !errors.Is(err, domain.ErrQueueUnavailable) {
		t.Fatalf("expected ErrQueueUnavailable, got %v", err)
	}
}

func TestGetCommandOutcome(t *testing.T) {
	t.Parallel()

	svc, _, cache := newServiceFixture()
	if _, err := svc.GetCommandOutcome(context.Background(), "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown command, got %v", err)
	}

	v := int64(2)
	rec := ports.OutcomeRecord{
		CommandID:  "cmd-1",
		UserID:     "user-1",
		LessonID:   uuid.New(),
		Status:     domain.OutcomeApplied,
		NewVersion: &v,
		RecordedAt: time.Now().UTC(),
	}
	if err := cache.PutIfAbsent(context.Background(), rec, time.Hour); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	got, err := svc.GetCommandOutcome(context.Background(), "cmd-1")
	if err != nil {
		t.Fatalf("get outcome: %v", err)
	}
	if got.Status != domain.OutcomeApplied || got.NewVersion == nil || *got.NewVersion != 2 {
		t.Fatalf("unexpected outcome record %+v", got)
	}
}
