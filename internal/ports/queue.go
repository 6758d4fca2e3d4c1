package ports

import (
	"context"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
)

// Delivery is one dequeued envelope plus the transport handle needed to ack
// or nack it. DeliveryCount is 1 on first delivery and grows on each
// redelivery; the consumer uses it for the dead-letter decision.
type Delivery struct {
	Envelope      domain.Envelope
	DeliveryCount int

	// AckID is the transport-level handle (stream entry id, in-memory slot).
	AckID string
}

// CommandQueue is the durable at-least-once command channel. A delivery not
// acked within the transport's visibility timeout is redelivered, possibly to
// another consumer. No ordering is guaranteed, same-entity included; the
// store's version check is what makes reordering and duplication safe.
type CommandQueue interface {
	Enqueue(ctx context.Context, env domain.Envelope) error

	// Dequeue blocks until a delivery is available or ctx is done.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack marks the delivery processed; it will not be redelivered.
	Ack(ctx context.Context, d *Delivery) error

	// Nack releases the delivery for redelivery after the visibility
	// timeout. Used only for transient infrastructure failures.
	Nack(ctx context.Context, d *Delivery) error
}
