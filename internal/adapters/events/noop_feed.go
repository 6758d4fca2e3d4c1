package events

import (
	"context"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
)

type NoopFeed struct{}

func NewNoopFeed() *NoopFeed {
	return &NoopFeed{}
}

func (n *NoopFeed) Poll(_ context.Context, _ int) ([]domain.Outcome, error) {
	return nil, nil
}
