package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/application"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
)

// ConsumerWorker runs the command consumer pool: N goroutines, each dequeuing
// and driving one envelope to completion at a time. Workers coordinate only
// through the queue and the store's compare-and-swap; there is no shared
// in-process state between them.
type ConsumerWorker struct {
	logger    *slog.Logger
	queue     ports.CommandQueue
	processor *application.Processor
	workers   int
}

func NewConsumerWorker(logger *slog.Logger, queue ports.CommandQueue, processor *application.Processor, workers int) *ConsumerWorker {
	if workers <= 0 {
		workers = 4
	}
	return &ConsumerWorker{
		logger: logger, queue: queue, processor: processor, workers: workers,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *ConsumerWorker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			w.logger.ErrorContext(ctx, "dequeue failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "dequeue",
				"outcome", "failure",
				"error", err,
			)
			continue
		}
		if d == nil {
			continue
		}

		ack, err := w.processor.Process(ctx, d)
		if err != nil {
			// Transient infrastructure failure: release for redelivery.
			w.logger.WarnContext(ctx, "command processing failed, nacking",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process",
				"outcome", "failure",
				"command_id", d.Envelope.CommandID,
				"delivery_count", d.DeliveryCount,
				"error", err,
			)
			_ = w.queue.Nack(ctx, d)
			continue
		}
		if ack {
			if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
				w.logger.WarnContext(ctx, "ack failed",
					"module", "events.consumer_worker",
					"layer", "adapter",
					"operation", "ack",
					"outcome", "failure",
					"command_id", d.Envelope.CommandID,
					"error", ackErr,
				)
			}
		}
	}
}
