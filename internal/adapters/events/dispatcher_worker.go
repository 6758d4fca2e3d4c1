package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

// OutcomeFeed is the source of outcome events for the local dispatcher.
type OutcomeFeed interface {
	Poll(ctx context.Context, max int) ([]domain.Outcome, error)
}

// DispatcherWorker pumps outcomes from the feed into the local hub. It runs
// in the API process, next to the connections it serves.
type DispatcherWorker struct {
	logger     *slog.Logger
	feed       OutcomeFeed
	dispatcher ports.OutcomeDispatcher
	interval   time.Duration
}

func NewDispatcherWorker(logger *slog.Logger, feed OutcomeFeed, dispatcher ports.OutcomeDispatcher, interval time.Duration) *DispatcherWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return &DispatcherWorker{
		logger: logger, feed: feed, dispatcher: dispatcher, interval: interval,
	}
}

func (w *DispatcherWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "dispatcher iteration failed",
				"module", "events.dispatcher_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *DispatcherWorker) processOnce(ctx context.Context) error {
	outcomes, err := w.feed.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, outcome := range outcomes {
		w.dispatcher.Dispatch(outcome.UserID, outcome)
	}
	return nil
}
