package ports

import (
	"context"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
)

// OutcomePublisher carries terminal outcomes from the consumer toward the
// notification layer. Implementations: Kafka topic (cross-instance), direct
// in-process dispatch, logging fallback.
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome domain.Outcome) error
}

// OutcomeDispatcher fans an outcome out to every live connection of the
// target user. Delivery is fire-and-forget: with no live connection the
// event is dropped and remains discoverable through the read path.
type OutcomeDispatcher interface {
	Dispatch(userID string, outcome domain.Outcome)
}
