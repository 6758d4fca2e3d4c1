package events

import (
	"context"
	"log/slog"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

// HubPublisher short-circuits the outcome path straight into a local hub.
// Used in single-process mode where API and worker share a runtime.
type HubPublisher struct {
	dispatcher ports.OutcomeDispatcher
}

func NewHubPublisher(dispatcher ports.OutcomeDispatcher) *HubPublisher {
	return &HubPublisher{dispatcher: dispatcher}
}

func (p *HubPublisher) Publish(_ context.Context, outcome domain.Outcome) error {
	p.dispatcher.Dispatch(outcome.UserID, outcome)
	return nil
}

type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, outcome domain.Outcome) error {
	p.logger.InfoContext(ctx, "outcome published",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"command_id", outcome.CommandID,
		"user_id", outcome.UserID,
		"status", string(outcome.Status),
	)
	return nil
}

var (
	_ ports.OutcomePublisher = (*HubPublisher)(nil)
	_ ports.OutcomePublisher = (*LoggingPublisher)(nil)
)
