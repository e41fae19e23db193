package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

// Consumer reads jobs for one consumer group member. A message stays pending
// until its handler succeeds; pending messages idle longer than the claim
// interval are taken over by whichever worker sweeps next.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	batch         int64
	block         time.Duration
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		batch:         10,
		block:         5 * time.Second,
		logger:        logger.With().Str("stream", stream).Str("consumer", consumer).Logger(),
		handler:       handler,
	}
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sweep := time.NewTicker(c.claimInterval)
	defer sweep.Stop()

	for {
		if err := c.read(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("stream read error")
			if !sleepCtx(ctx, 2*time.Second) {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweep.C:
			if err := c.claimStalled(ctx); err != nil {
				c.logger.Error().Err(err).Msg("claim sweep failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batch,
		Block:    c.block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range streams {
		c.process(ctx, stream.Messages, "delivered")
	}
	return nil
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	start := "0-0"
	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimInterval,
			Start:    start,
			Count:    c.batch,
		}).Result()
		if err != nil {
			return err
		}
		c.process(ctx, msgs, "claimed")
		if next == "0-0" || len(msgs) == 0 {
			return nil
		}
		start = next
	}
}

// process acks each message whose handler succeeded. Failures are logged and
// left pending for a later claim.
func (c *Consumer) process(ctx context.Context, msgs []redis.XMessage, source string) {
	for _, msg := range msgs {
		log := c.logger.With().Str("message_id", msg.ID).Str("source", source).Logger()
		if err := c.handler.Handle(ctx, msg); err != nil {
			log.Error().Err(err).Msg("handle message failed")
			continue
		}
		if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
			log.Error().Err(err).Msg("ack failed")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
