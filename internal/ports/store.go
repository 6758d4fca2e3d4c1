package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/google/uuid"
)

// LessonStore is the versioned-store contract. The compare-and-swap methods
// are the sole mutation path: a write happens only when the caller's expected
// version still matches the stored version, atomically at the store level.
type LessonStore interface {
	// Create inserts a new record at version 0. Returns
	// domain.ErrAlreadyExists when a record already exists at that id.
	Create(ctx context.Context, lesson domain.Lesson) error

	Get(ctx context.Context, lessonID uuid.UUID) (domain.Lesson, error)

	// UpdateIfVersion writes payload and increments the version only when
	// expectedVersion matches the current version. On success the returned
	// lesson is the row as this write produced it (version is always
	// expectedVersion+1), never a later state another writer may have
	// committed since. Returns domain.ErrVersionConflict on mismatch,
	// domain.ErrNotFound when no record exists.
	UpdateIfVersion(ctx context.Context, lessonID uuid.UUID, expectedVersion int64, payload json.RawMessage, now time.Time) (domain.Lesson, error)

	// DeleteIfVersion removes the record only when expectedVersion matches.
	DeleteIfVersion(ctx context.Context, lessonID uuid.UUID, expectedVersion int64) error
}

type DeadLetter struct {
	CommandID      string
	UserID         string
	Action         domain.Action
	LessonID       uuid.UUID
	Envelope       []byte
	DeliveryCount  int
	Reason         string
	FirstSeenAt    time.Time
	DeadLetteredAt time.Time
}

type DeadLetterRepository interface {
	Record(ctx context.Context, letter DeadLetter) error
	List(ctx context.Context, limit, offset int) ([]DeadLetter, error)
}
