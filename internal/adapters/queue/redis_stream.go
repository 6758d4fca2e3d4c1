package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/domain"
	"github.com/brightpath/platform/services/learning-core/M21-lesson-command-service/internal/ports"
	"github.com/redis/go-redis/v9"
)

const envelopeField = "envelope"

// RedisStreamQueue implements the command queue on a Redis stream with a
// consumer group. Visibility timeout is the stream's min-idle reclaim: a
// delivery left pending longer than visibilityTimeout is picked up again by
// XAUTOCLAIM, with the pending-entries delivery counter carried along so the
// consumer can enforce its redelivery limit.
type RedisStreamQueue struct {
	client            *redis.Client
	stream            string
	group             string
	consumerName      string
	visibilityTimeout time.Duration
	blockTimeout      time.Duration
}

type RedisStreamConfig struct {
	Stream            string
	Group             string
	ConsumerName      string
	VisibilityTimeout time.Duration
	BlockTimeout      time.Duration
}

func NewRedisStreamQueue(ctx context.Context, client *redis.Client, cfg RedisStreamConfig) (*RedisStreamQueue, error) {
	if cfg.Stream == "" || cfg.Group == "" || cfg.ConsumerName == "" {
		return nil, fmt.Errorf("redis stream queue requires stream, group and consumer name")
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RedisStreamQueue{
		client:            client,
		stream:            cfg.Stream,
		group:             cfg.Group,
		consumerName:      cfg.ConsumerName,
		visibilityTimeout: cfg.VisibilityTimeout,
		blockTimeout:      cfg.BlockTimeout,
	}, nil
}

func (q *RedisStreamQueue) Enqueue(ctx context.Context, env domain.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{envelopeField: string(raw)},
	}).Err()
}

func (q *RedisStreamQueue) Dequeue(ctx context.Context) (*ports.Delivery, error) {
	for {
		if d, ok, err := q.claimStalled(ctx); err != nil {
			return nil, err
		} else if ok {
			return d, nil
		}

		res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumerName,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.blockTimeout,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, ctx.Err()
		case err != nil:
			return nil, fmt.Errorf("read stream: %w", err)
		}
		for _, stream := range res {
			for _, msg := range stream.Messages {
				return q.toDelivery(msg, 1)
			}
		}
	}
}

// claimStalled reclaims one delivery whose visibility timeout elapsed.
func (q *RedisStreamQueue) claimStalled(ctx context.Context) (*ports.Delivery, bool, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumerName,
		MinIdle:  q.visibilityTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("autoclaim: %w", err)
	}
	if len(msgs) == 0 {
		return nil, false, nil
	}
	msg := msgs[0]
	count := q.deliveryCount(ctx, msg.ID)
	d, err := q.toDelivery(msg, count)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

func (q *RedisStreamQueue) deliveryCount(ctx context.Context, id string) int {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 1
	}
	return int(pending[0].RetryCount)
}

func (q *RedisStreamQueue) toDelivery(msg redis.XMessage, count int) (*ports.Delivery, error) {
	raw, _ := msg.Values[envelopeField].(string)
	var env domain.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope %s: %w", msg.ID, err)
	}
	if count < 1 {
		count = 1
	}
	return &ports.Delivery{Envelope: env, DeliveryCount: count, AckID: msg.ID}, nil
}

func (q *RedisStreamQueue) Ack(ctx context.Context, d *ports.Delivery) error {
	if err := q.client.XAck(ctx, q.stream, q.group, d.AckID).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", d.AckID, err)
	}
	// Acked entries are dropped from the stream; replay is not a feature
	// of this channel.
	return q.client.XDel(ctx, q.stream, d.AckID).Err()
}

// Nack leaves the entry in the pending list; it becomes claimable again once
// its idle time passes the visibility timeout.
func (q *RedisStreamQueue) Nack(_ context.Context, _ *ports.Delivery) error {
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ ports.CommandQueue = (*RedisStreamQueue)(nil)
