package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaOutcomeConsumer feeds the local notification hub from the outcome
// topic. Each API instance uses its own group id so every instance sees every
// outcome; fan-out to the right connections happens in the hub.
type KafkaOutcomeConsumer struct {
	reader *kafka.Reader
}

func NewKafkaOutcomeConsumer(brokers []string, groupID, topic string) (*KafkaOutcomeConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka consumer requires group id")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka consumer requires a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &KafkaOutcomeConsumer{reader: reader}, nil
}

func (c *KafkaOutcomeConsumer) Poll(ctx context.Context, max int) ([]domain.Outcome, error) {
	if max <= 0 {
		max = 1
	}
	out := make([]domain.Outcome, 0, max)
	for i := 0; i < max; i++ {
		readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		msg, err := c.reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return out, nil
			case errors.Is(err, context.Canceled):
				return out, ctx.Err()
			default:
				return out, err
			}
		}
		var outcome domain.Outcome
		if err := json.Unmarshal(msg.Value, &outcome); err != nil {
			// A malformed outcome is not worth stalling the feed over.
			continue
		}
		out = append(out, outcome)
	}
	return out, nil
}

func (c *KafkaOutcomeConsumer) Close() error {
	return c.reader.Close()
}
