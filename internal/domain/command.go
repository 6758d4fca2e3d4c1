package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the mutation kind carried by a command envelope.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionCreate, ActionUpdate, ActionDelete:
		return Action(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
	}
}

// Envelope is the serialized command unit placed on the queue. CommandID is
// the idempotency key: redelivery of the same envelope carries the same id.
type Envelope struct {
	CommandID       string          `json:"command_id"`
	UserID          string          `json:"user_id"`
	Action          Action          `json:"action"`
	LessonID        uuid.UUID       `json:"lesson_id"`
	ExpectedVersion *int64          `json:"expected_version,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Validate checks the action-specific shape constraints enforced at ingress.
// Update and delete require an expected version; create must not carry one.
func (e Envelope) Validate() error {
	if e.CommandID == "" {
		return fmt.Errorf("%w: missing command_id", ErrInvalidInput)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrInvalidInput)
	}
	if e.LessonID == uuid.Nil {
		return fmt.Errorf("%w: missing lesson_id", ErrInvalidInput)
	}
	switch e.Action {
	case ActionCreate:
		if e.ExpectedVersion != nil {
			return fmt.Errorf("%w: create must not carry an expected version", ErrInvalidInput)
		}
		if len(e.Payload) == 0 {
			return fmt.Errorf("%w: create requires a payload", ErrInvalidInput)
		}
	case ActionUpdate:
		if e.ExpectedVersion == nil {
			return fmt.Errorf("%w: update requires an expected version", ErrInvalidInput)
		}
		if *e.ExpectedVersion < 0 {
			return fmt.Errorf("%w: expected version must not be negative", ErrInvalidInput)
		}
		if len(e.Payload) == 0 {
			return fmt.Errorf("%w: update requires a payload", ErrInvalidInput)
		}
	case ActionDelete:
		if e.ExpectedVersion == nil {
			return fmt.Errorf("%w: delete requires an expected version", ErrInvalidInput)
		}
		if *e.ExpectedVersion < 0 {
			return fmt.Errorf("%w: expected version must not be negative", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, e.Action)
	}
	return nil
}

// Expired reports whether the envelope outlived its TTL before processing.
func (e Envelope) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// OutcomeStatus tags the terminal state of a processed command.
type OutcomeStatus string

const (
	OutcomeApplied  OutcomeStatus = "applied"
	OutcomeConflict OutcomeStatus = "conflict"
	OutcomeNotFound OutcomeStatus = "not_found"
	OutcomeExpired  OutcomeStatus = "expired"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome is the event emitted by the consumer once a command reaches a
// terminal state. It is pushed to the submitting user's live connections and
// is never persisted beyond the idempotency record's copy.
type Outcome struct {
	CommandID  string        `json:"command_id"`
	UserID     string        `json:"user_id"`
	LessonID   uuid.UUID     `json:"lesson_id"`
	Status     OutcomeStatus `json:"status"`
	NewVersion *int64        `json:"new_version,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
