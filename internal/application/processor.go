package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

// Processor applies dequeued envelopes against the versioned store. Each
// worker drives one envelope to completion before dequeuing the next; the
// only cross-worker coordination is the store's compare-and-swap.
type Processor struct {
	cfg         Config
	store       ports.LessonStore
	idempotency ports.IdempotencyCache
	deadLetters ports.DeadLetterRepository
	publisher   ports.OutcomePublisher
	logger      *slog.Logger
	nowFn       func() time.Time
}

type ProcessorDependencies struct {
	Config      Config
	Store       ports.LessonStore
	Idempotency ports.IdempotencyCache
	DeadLetters ports.DeadLetterRepository
	Publisher   ports.OutcomePublisher
	Logger      *slog.Logger
}

func NewProcessor(deps ProcessorDependencies) *Processor {
	cfg := deps.Config
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:         cfg,
		store:       deps.Store,
		idempotency: deps.Idempotency,
		deadLetters: deps.DeadLetters,
		publisher:   deps.Publisher,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one delivery end to end and reports whether it should be
// acked. A false return with a non-nil error means a transient infrastructure
// failure: the caller nacks and the transport redelivers.
func (p *Processor) Process(ctx context.Context, d *ports.Delivery) (ack bool, err error) {
	env := d.Envelope

	// Redelivery of an already-processed command re-emits the cached
	// outcome and never touches the store again.
	cached, err := p.idempotency.Get(ctx, env.CommandID)
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if cached != nil {
		p.emit(ctx, outcomeFromRecord(*cached))
		return true, nil
	}

	now := p.nowFn()
	if env.Expired(now) {
		return p.finish(ctx, env, domain.OutcomeExpired, nil, now)
	}

	if d.DeliveryCount > p.cfg.MaxDeliveries {
		return p.deadLetter(ctx, d, now)
	}

	status, newVersion, applyErr := p.apply(ctx, env, now)
	if applyErr != nil {
		return false, applyErr
	}
	return p.finish(ctx, env, status, newVersion, now)
}

// apply runs the mutation under optimistic concurrency. Business-level
// rejections (conflict, not found, already exists) are terminal outcomes, not
// errors; anything else from the store is treated as transient.
func (p *Processor) apply(ctx context.Context, env domain.Envelope, now time.Time) (domain.OutcomeStatus, *int64, error) {
	switch env.Action {
	case domain.ActionCreate:
		err := p.store.Create(ctx, domain.Lesson{
			LessonID:       env.LessonID,
			Version:        0,
			Payload:        env.Payload,
			CreatedAt:      now,
			LastModifiedAt: now,
		})
		switch {
		case err == nil:
			v := int64(0)
			return domain.OutcomeApplied, &v, nil
		case errors.Is(err, domain.ErrAlreadyExists):
			return domain.OutcomeConflict, nil, nil
		default:
			return "", nil, fmt.Errorf("create lesson: %w", err)
		}

	case domain.ActionUpdate:
		updated, err := p.store.UpdateIfVersion(ctx, env.LessonID, *env.ExpectedVersion, env.Payload, now)
		switch {
		case err == nil:
			v := updated.Version
			return domain.OutcomeApplied, &v, nil
		case errors.Is(err, domain.ErrVersionConflict):
			return domain.OutcomeConflict, nil, nil
		case errors.Is(err, domain.ErrNotFound):
			return domain.OutcomeNotFound, nil, nil
		default:
			return "", nil, fmt.Errorf("update lesson: %w", err)
		}

	case domain.ActionDelete:
		err := p.store.DeleteIfVersion(ctx, env.LessonID, *env.ExpectedVersion)
		switch {
		case err == nil:
			return domain.OutcomeApplied, nil, nil
		case errors.Is(err, domain.ErrVersionConflict):
			return domain.OutcomeConflict, nil, nil
		case errors.Is(err, domain.ErrNotFound):
			return domain.OutcomeNotFound, nil, nil
		default:
			return "", nil, fmt.Errorf("delete lesson: %w", err)
		}

	default:
		// Unknown actions cannot appear past ingress validation, but a
		// malformed envelope must not loop forever on redelivery.
		return domain.OutcomeFailed, nil, nil
	}
}

// finish records the terminal outcome before acking. The record write is
// write-once: when two workers race on the same command id, both publish the
// same outcome and the first write wins.
func (p *Processor) finish(ctx context.Context, env domain.Envelope, status domain.OutcomeStatus, newVersion *int64, now time.Time) (bool, error) {
	rec := ports.OutcomeRecord{
		CommandID:  env.CommandID,
		UserID:     env.UserID,
		LessonID:   env.LessonID,
		Status:     status,
		NewVersion: newVersion,
		RecordedAt: now,
	}
	if err := p.idempotency.PutIfAbsent(ctx, rec, p.cfg.IdempotencyTTL); err != nil {
		return false, fmt.Errorf("record outcome: %w", err)
	}
	p.emit(ctx, outcomeFromRecord(rec))
	return true, nil
}

func (p *Processor) deadLetter(ctx context.Context, d *ports.Delivery, now time.Time) (bool, error) {
	env := d.Envelope
	raw, _ := json.Marshal(env)
	if err := p.deadLetters.Record(ctx, ports.DeadLetter{
		CommandID:      env.CommandID,
		UserID:         env.UserID,
		Action:         env.Action,
		LessonID:       env.LessonID,
		Envelope:       raw,
		DeliveryCount:  d.DeliveryCount,
		Reason:         "redelivery limit exceeded",
		FirstSeenAt:    env.SubmittedAt,
		DeadLetteredAt: now,
	}); err != nil {
		return false, fmt.Errorf("record dead letter: %w", err)
	}
	p.logger.WarnContext(ctx, "command dead-lettered",
		"module", "application.processor",
		"layer", "application",
		"operation", "dead_letter",
		"outcome", "failure",
		"command_id", env.CommandID,
		"delivery_count", d.DeliveryCount,
	)
	return p.finish(ctx, env, domain.OutcomeFailed, nil, now)
}

func (p *Processor) emit(ctx context.Context, outcome domain.Outcome) {
	if err := p.publisher.Publish(ctx, outcome); err != nil {
		// Delivery to listeners is fire-and-forget; the idempotency
		// record already holds the authoritative outcome.
		p.logger.WarnContext(ctx, "outcome publish failed",
			"module", "application.processor",
			"layer", "application",
			"operation", "emit",
			"outcome", "failure",
			"command_id", outcome.CommandID,
			"error", err,
		)
	}
}

func outcomeFromRecord(rec ports.OutcomeRecord) domain.Outcome {
	return domain.Outcome{
		CommandID:  rec.CommandID,
		UserID:     rec.UserID,
		LessonID:   rec.LessonID,
		Status:     rec.Status,
		NewVersion: rec.NewVersion,
		OccurredAt: rec.RecordedAt,
	}
}
