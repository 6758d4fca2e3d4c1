package postgres

import (
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Lessons     ports.LessonStore
	DeadLetters ports.DeadLetterRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Lessons:     &lessonRepository{db: db},
		DeadLetters: &deadLetterRepository{db: db},
	}
}
