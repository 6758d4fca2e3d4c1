package postgres

import (
	"context"
	"fmt"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"gorm.io/gorm"
)

type deadLetterRepository struct {
	db *gorm.DB
}

func (r *deadLetterRepository) Record(ctx context.Context, letter ports.DeadLetter) error {
	rec := deadLetterModel{
		CommandID:      letter.CommandID,
		UserID:         letter.UserID,
		Action:         string(letter.Action),
		LessonID:       letter.LessonID,
		Envelope:       string(letter.Envelope),
		DeliveryCount:  letter.DeliveryCount,
		Reason:         letter.Reason,
		FirstSeenAt:    letter.FirstSeenAt,
		DeadLetteredAt: letter.DeadLetteredAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		// The same command may hit the limit twice under redelivery
		// races; one row is enough.
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (r *deadLetterRepository) List(ctx context.Context, limit, offset int) ([]ports.DeadLetter, error) {
	var rows []deadLetterModel
	if err := r.db.WithContext(ctx).
		Order("dead_lettered_at desc").
		Limit(limit).Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select dead letters: %w", err)
	}
	out := make([]ports.DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.DeadLetter{
			CommandID:      row.CommandID,
			UserID:         row.UserID,
			Action:         domain.Action(row.Action),
			LessonID:       row.LessonID,
			Envelope:       []byte(row.Envelope),
			DeliveryCount:  row.DeliveryCount,
			Reason:         row.Reason,
			FirstSeenAt:    row.FirstSeenAt,
			DeadLetteredAt: row.DeadLetteredAt,
		})
	}
	return out, nil
}

var _ ports.DeadLetterRepository = (*deadLetterRepository)(nil)
