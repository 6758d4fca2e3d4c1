package application

import (
	"encoding/json"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/google/uuid"
)

type Config struct {
	ServiceName string

	// EnvelopeTTL bounds how long an accepted command may sit undelivered
	// before the consumer discards it as expired.
	EnvelopeTTL time.Duration

	// IdempotencyTTL must be >= the maximum plausible redelivery window.
	// A shorter value is a correctness hazard: a redelivered command whose
	// record already expired would be applied a second time.
	IdempotencyTTL time.Duration

	// MaxDeliveries is the redelivery limit after which an envelope is
	// moved to the dead-letter table instead of being processed.
	MaxDeliveries int
}

// SubmitCommandInput is the ingress-side shape of one mutating request.
// CommandID is empty unless the caller chose its own idempotency key.
type SubmitCommandInput struct {
	Action          domain.Action
	LessonID        uuid.UUID
	ExpectedVersion *int64
	Payload         json.RawMessage
	CommandID       string
	UserID          string
}

// Accepted acknowledges enqueueing, not completion.
type Accepted struct {
	CommandID    string
	LessonID     uuid.UUID
	LocationHint string
}
