package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/segmentio/kafka-go"
)

// KafkaOutcomePublisher carries outcome events across instances. Messages are
// keyed by user id so one user's outcomes stay on one partition.
type KafkaOutcomePublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaOutcomePublisher(brokers []string, topic string) (*KafkaOutcomePublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaOutcomePublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, outcome domain.Outcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(outcome.UserID),
		Value: raw,
		Time:  outcome.OccurredAt,
	})
}

func (p *KafkaOutcomePublisher) Close() error {
	return p.writer.Close()
}

var _ ports.OutcomePublisher = (*KafkaOutcomePublisher)(nil)
