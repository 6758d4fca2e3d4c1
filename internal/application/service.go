package application

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
)

type Service struct {
	cfg         Config
	queue       ports.CommandQueue
	store       ports.LessonStore
	idempotency ports.IdempotencyCache
	deadLetters ports.DeadLetterRepository
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Queue       ports.CommandQueue
	Store       ports.LessonStore
	Idempotency ports.IdempotencyCache
	DeadLetters ports.DeadLetterRepository
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M21-Lesson-Command-Service"
	}
	if cfg.EnvelopeTTL <= 0 {
		cfg.EnvelopeTTL = 5 * time.Minute
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	return &Service{
		cfg:         cfg,
		queue:       deps.Queue,
		store:       deps.Store,
		idempotency: deps.Idempotency,
		deadLetters: deps.DeadLetters,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// SubmitCommand validates the request shape, stamps identity and TTL, and
// performs exactly one enqueue. It returns once the queue has durably
// acknowledged the envelope; processing happens asynchronously. A validation
// failure is the only synchronous error a caller sees.
func (s *Service) SubmitCommand(ctx context.Context, in SubmitCommandInput) (Accepted, error) {
	if in.UserID == "" {
		return Accepted{}, fmt.Errorf("%w: missing caller identity", domain.ErrUnauthorized)
	}

	lessonID := in.LessonID
	if in.Action == domain.ActionCreate {
		if lessonID != uuid.Nil {
			return Accepted{}, fmt.Errorf("%w: create does not accept a lesson id", domain.ErrInvalidInput)
		}
		lessonID = uuid.New()
	}

	commandID := in.CommandID
	if commandID == "" {
		commandID = uuid.NewString()
	}

	now := s.nowFn()
	env := domain.Envelope{
		CommandID:       commandID,
		UserID:          in.UserID,
		Action:          in.Action,
		LessonID:        lessonID,
		ExpectedVersion: in.ExpectedVersion,
		Payload:         in.Payload,
		SubmittedAt:     now,
		ExpiresAt:       now.Add(s.cfg.EnvelopeTTL),
	}
	if err := env.Validate(); err != nil {
		return Accepted{}, err
	}

	if err := s.queue.Enqueue(ctx, env); err != nil {
		return Accepted{}, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return Accepted{
		CommandID:    commandID,
		LessonID:     lessonID,
		LocationHint: "/v1/lessons/" + lessonID.String(),
	}, nil
}

// GetLesson is the read boundary used to discover outcomes when no live
// connection is active. The returned version doubles as the ETag.
func (s *Service) GetLesson(ctx context.Context, lessonID uuid.UUID) (domain.Lesson, error) {
	return s.store.Get(ctx, lessonID)
}

// GetCommandOutcome exposes the cached outcome for a command id, when it is
// still within the idempotency window.
func (s *Service) GetCommandOutcome(ctx context.Context, commandID string) (*ports.OutcomeRecord, error) {
	if commandID == "" {
		return nil, fmt.Errorf("%w: missing command id", domain.ErrInvalidInput)
	}
	rec, err := s.idempotency.Get(ctx, commandID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// ListDeadLetters surfaces commands that exhausted redelivery.
func (s *Service) ListDeadLetters(ctx context.Context, limit, offset int) ([]ports.DeadLetter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.deadLetters.List(ctx, limit, offset)
}
