package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const payloadField = "task"

type streamMessage struct {
	ID      string
	Payload []byte
}

type streamBackend interface {
	CreateGroup(ctx context.Context, stream, group string) error
	Add(ctx context.Context, stream string, payload []byte) (string, error)
	// Read returns nil without error when nothing arrived within block.
	Read(ctx context.Context, stream, group, consumer string, block time.Duration) (*streamMessage, error)
	// Claim takes over one message left pending by any consumer for at least minIdle.
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration) (*streamMessage, error)
	DeliveryCount(ctx context.Context, stream, group, id string) (int64, error)
	Ack(ctx context.Context, stream, group, id string) error
}

type RedisStreamConfig struct {
	Stream        string
	Group         string
	Consumer      string
	MaxDeliveries int64
	ClaimIdle     time.Duration
}

// RedisStream is a Redis Streams queue with a consumer group. A nacked message stays
// pending and is reclaimed by some consumer once it has been idle for ClaimIdle; after
// MaxDeliveries attempts it is acknowledged and dropped.
type RedisStream struct {
	backend streamBackend
	cfg     RedisStreamConfig
}

func NewRedisStream(ctx context.Context, client redis.UniversalClient, cfg RedisStreamConfig) (*RedisStream, error) {
	return newRedisStream(ctx, &redisBackend{client: client}, cfg)
}

func newRedisStream(ctx context.Context, backend streamBackend, cfg RedisStreamConfig) (*RedisStream, error) {
	if cfg.Stream == "" || cfg.Group == "" || cfg.Consumer == "" {
		return nil, errors.New("stream, group and consumer are required")
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = time.Minute
	}
	if err := backend.CreateGroup(ctx, cfg.Stream, cfg.Group); err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &RedisStream{backend: backend, cfg: cfg}, nil
}

func (r *RedisStream) Publish(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	data, err := Encode(task)
	if err != nil {
		return err
	}
	_, err = r.backend.Add(ctx, r.cfg.Stream, data)
	return err
}

func (r *RedisStream) Fetch(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	msg, err := r.backend.Claim(ctx, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, r.cfg.ClaimIdle)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		msg, err = r.backend.Read(ctx, r.cfg.Stream, r.cfg.Group, r.cfg.Consumer, timeout)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, ErrNoTask
		}
	}

	deliveries, err := r.backend.DeliveryCount(ctx, r.cfg.Stream, r.cfg.Group, msg.ID)
	if err != nil {
		return nil, err
	}
	if deliveries > r.cfg.MaxDeliveries {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("task %s exceeded %d deliveries, dropping: %s", msg.ID, r.cfg.MaxDeliveries, msg.Payload)
		return nil, r.drop(ctx, msg.ID)
	}

	task, err := Decode(msg.Payload)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeQueue).
			Errorf("dropping malformed task %s: %v", msg.ID, err)
		return nil, r.drop(ctx, msg.ID)
	}

	id := msg.ID
	return &Delivery{
		Task: task,
		ID:   id,
		ack:  func(ctx context.Context) error { return r.backend.Ack(ctx, r.cfg.Stream, r.cfg.Group, id) },
		nack: func(context.Context) error {
			log.Debugf("task %s left pending for redelivery", id)
			return nil
		},
	}, nil
}

// drop acknowledges a message that will not be handed to the caller.
func (r *RedisStream) drop(ctx context.Context, id string) error {
	if err := r.backend.Ack(ctx, r.cfg.Stream, r.cfg.Group, id); err != nil {
		return err
	}
	return ErrNoTask
}

type redisBackend struct {
	client redis.UniversalClient
}

func (b *redisBackend) CreateGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (b *redisBackend) Add(ctx context.Context, stream string, payload []byte) (string, error) {
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{payloadField: payload},
	}).Result()
}

func (b *redisBackend) Read(ctx context.Context, stream, group, consumer string, block time.Duration) (*streamMessage, error) {
	streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, s := range streams {
		for _, m := range s.Messages {
			return toStreamMessage(m), nil
		}
	}
	return nil, nil
}

func (b *redisBackend) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration) (*streamMessage, error) {
	messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return toStreamMessage(messages[0]), nil
}

func (b *redisBackend) DeliveryCount(ctx context.Context, stream, group, id string) (int64, error) {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

func (b *redisBackend) Ack(ctx context.Context, stream, group, id string) error {
	return b.client.XAck(ctx, stream, group, id).Err()
}

func toStreamMessage(m redis.XMessage) *streamMessage {
	var payload []byte
	switch v := m.Values[payloadField].(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	}
	return &streamMessage{ID: m.ID, Payload: payload}
}
