package ports

import (
	"context"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/google/uuid"
)

// OutcomeRecord is the cached terminal outcome of a processed command, keyed
// by command id. It is what makes redelivery safe: a dequeued envelope whose
// command id already has a record is re-emitted, never reapplied.
type OutcomeRecord struct {
	CommandID  string               `json:"command_id"`
	UserID     string               `json:"user_id"`
	LessonID   uuid.UUID            `json:"lesson_id"`
	Status     domain.OutcomeStatus `json:"status"`
	NewVersion *int64               `json:"new_version,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// IdempotencyCache holds outcome records with write-once semantics per key.
// Writing the same outcome twice for one key is harmless; the first write
// wins. The configured TTL must be at least the maximum plausible redelivery
// window, otherwise dedup correctness is lost.
type IdempotencyCache interface {
	Get(ctx context.Context, commandID string) (*OutcomeRecord, error)
	PutIfAbsent(ctx context.Context, rec OutcomeRecord, ttl time.Duration) error
}
