package postgres

import (
	"time"

	"github.com/google/uuid"
)

type lessonModel struct {
	LessonID       uuid.UUID `gorm:"column:lesson_id;type:uuid;primaryKey"`
	Version        int64     `gorm:"column:version"`
	Payload        string    `gorm:"column:payload"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	LastModifiedAt time.Time `gorm:"column:last_modified_at"`
}

func (lessonModel) TableName() string { return "lessons" }

type deadLetterModel struct {
	DeadLetterID   uuid.UUID `gorm:"column:dead_letter_id;type:uuid;default:gen_random_uuid();primaryKey"`
	CommandID      string    `gorm:"column:command_id"`
	UserID         string    `gorm:"column:user_id"`
	Action         string    `gorm:"column:action"`
	LessonID       uuid.UUID `gorm:"column:lesson_id"`
	Envelope       string    `gorm:"column:envelope"`
	DeliveryCount  int       `gorm:"column:delivery_count"`
	Reason         string    `gorm:"column:reason"`
	FirstSeenAt    time.Time `gorm:"column:first_seen_at"`
	DeadLetteredAt time.Time `gorm:"column:dead_lettered_at"`
}

func (deadLetterModel) TableName() string { return "dead_letters" }
