package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lesson is the versioned record owned by the store. Version starts at 0 on
// the first successful create and increments by exactly one per successful
// mutation; it never decreases and is never reused. The payload is opaque to
// this service.
type Lesson struct {
	LessonID       uuid.UUID
	Version        int64
	Payload        json.RawMessage
	CreatedAt      time.Time
	LastModifiedAt time.Time
}
