package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ports.LessonStore = (*lessonRepository)(nil)

type lessonRepository struct {
	db *gorm.DB
}

func (r *lessonRepository) Create(ctx context.Context, lesson domain.Lesson) error {
	rec := lessonModel{
		LessonID:       lesson.LessonID,
		Version:        lesson.Version,
		Payload:        string(lesson.Payload),
		CreatedAt:      lesson.CreatedAt,
		LastModifiedAt: lesson.LastModifiedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (r *lessonRepository) Get(ctx context.Context, lessonID uuid.UUID) (domain.Lesson, error) {
	var rec lessonModel
	if err := r.db.WithContext(ctx).Where("lesson_id = ?", lessonID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Lesson{}, domain.ErrNotFound
		}
		return domain.Lesson{}, fmt.Errorf("select lesson: %w", err)
	}
	return toLesson(rec), nil
}

// UpdateIfVersion is the compare-and-swap the whole pipeline depends on: the
// version predicate in the WHERE clause makes the check-and-write atomic in
// the database, so no cross-worker locking is needed. The RETURNING clause
// fetches the row this statement produced; a separate read after the update
// could observe a later commit and report the wrong version.
func (r *lessonRepository) UpdateIfVersion(ctx context.Context, lessonID uuid.UUID, expectedVersion int64, payload json.RawMessage, now time.Time) (domain.Lesson, error) {
	var rec lessonModel
	res := r.db.WithContext(ctx).Model(&rec).
		Clauses(clause.Returning{}).
		Where("lesson_id = ? AND version = ?", lessonID, expectedVersion).
		Updates(map[string]any{
			"payload":          string(payload),
			"version":          gorm.Expr("version + 1"),
			"last_modified_at": now,
		})
	if res.Error != nil {
		return domain.Lesson{}, fmt.Errorf("update lesson: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Lesson{}, r.casFailure(ctx, lessonID)
	}
	return toLesson(rec), nil
}

func (r *lessonRepository) DeleteIfVersion(ctx context.Context, lessonID uuid.UUID, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Where("lesson_id = ? AND version = ?", lessonID, expectedVersion).
		Delete(&lessonModel{})
	if res.Error != nil {
		return fmt.Errorf("delete lesson: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.casFailure(ctx, lessonID)
	}
	return nil
}

// casFailure distinguishes a stale version from a missing record after a
// zero-row compare-and-swap.
func (r *lessonRepository) casFailure(ctx context.Context, lessonID uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&lessonModel{}).Where("lesson_id = ?", lessonID).Count(&count).Error; err != nil {
		return fmt.Errorf("probe lesson: %w", err)
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func toLesson(rec lessonModel) domain.Lesson {
	return domain.Lesson{
		LessonID:       rec.LessonID,
		Version:        rec.Version,
		Payload:        json.RawMessage(rec.Payload),
		CreatedAt:      rec.CreatedAt,
		LastModifiedAt: rec.LastModifiedAt,
	}
}
