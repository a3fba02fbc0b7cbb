package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/reader-sync/app/feed"
)

// Handler stores one delivered item.
type Handler interface {
	WriteItem(ctx context.Context, item feed.RawItem) error
}

// Consumer reads the stream through a consumer group. A handled entry is
// acked; a failed one is re-added with its attempt count raised and the
// original acked, until attempts run out and it moves to the dead-letter
// stream.
type Consumer struct {
	stream  *Stream
	handler Handler
	log     *slog.Logger
}

func NewConsumer(stream *Stream, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = stream.log
	}

	return &Consumer{
		stream:  stream,
		handler: handler,
		log:     logger,
	}
}

// EnsureGroup creates the consumer group (and the stream) if needed.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.stream.client.XGroupCreateMkStream(ctx, c.stream.cfg.Stream, c.stream.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run handles entries left pending by a previous run of this consumer, then
// new ones until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	c.log.Info("Starting stream consumer",
		"stream", c.stream.cfg.Stream,
		"group", c.stream.cfg.Group,
		"consumer", c.stream.cfg.Consumer)

	n, err := c.ProcessPending(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if n > 0 {
		c.log.Info("Redelivered pending entries", "count", n)
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Stream consumer stopped")
			return nil
		default:
		}

		if _, err := c.poll(ctx, ">", c.stream.cfg.Block); err != nil {
			if ctx.Err() != nil {
				continue
			}

			c.log.Error("Failed to read from stream", "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessPending handles entries delivered to this consumer but never acked.
func (c *Consumer) ProcessPending(ctx context.Context) (int, error) {
	return c.drain(ctx, "0")
}

// ProcessNew handles entries not yet delivered to any consumer without
// blocking for more.
func (c *Consumer) ProcessNew(ctx context.Context) (int, error) {
	return c.drain(ctx, ">")
}

func (c *Consumer) drain(ctx context.Context, start string) (int, error) {
	total := 0
	for {
		n, err := c.poll(ctx, start, -1)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}

// poll reads one batch. A negative block does not wait for new entries.
func (c *Consumer) poll(ctx context.Context, start string, block time.Duration) (int, error) {
	streams, err := c.stream.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.stream.cfg.Group,
		Consumer: c.stream.cfg.Consumer,
		Streams:  []string{c.stream.cfg.Stream, start},
		Count:    c.stream.cfg.BatchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := c.handle(ctx, message); err != nil {
				return handled, err
			}
			handled++
		}
	}

	return handled, nil
}

func (c *Consumer) handle(ctx context.Context, message redis.XMessage) error {
	item, attempt, err := decodeItem(message.Values)
	if err != nil {
		c.log.Error("Dropping undecodable stream entry", "message_id", message.ID, "error", err)
		return c.deadLetter(ctx, message, "", 0, err)
	}

	handleErr := c.handler.WriteItem(ctx, item)
	if handleErr == nil {
		if err := c.stream.client.XAck(ctx, c.stream.cfg.Stream, c.stream.cfg.Group, message.ID).Err(); err != nil {
			return fmt.Errorf("failed to ack %s: %w", message.ID, err)
		}
		return nil
	}

	var validationErr *feed.ValidationError
	if errors.As(handleErr, &validationErr) || attempt >= c.stream.cfg.MaxAttempts {
		c.log.Error("Giving up on stream entry",
			"message_id", message.ID,
			"source_item_id", item.SourceItemID,
			"attempt", attempt,
			"error", handleErr)
		return c.deadLetter(ctx, message, item.SourceItemID, attempt, handleErr)
	}

	c.log.Warn("Stream entry failed, requeueing",
		"message_id", message.ID,
		"source_item_id", item.SourceItemID,
		"attempt", attempt,
		"max_attempts", c.stream.cfg.MaxAttempts,
		"error", handleErr)

	return c.retry(ctx, message, item, attempt+1)
}

func (c *Consumer) retry(ctx context.Context, message redis.XMessage, item feed.RawItem, attempt int) error {
	values, err := encodeItem(item, attempt)
	if err != nil {
		return err
	}

	_, err = c.stream.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: c.stream.cfg.Stream, Values: values})
		pipe.XAck(ctx, c.stream.cfg.Stream, c.stream.cfg.Group, message.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to requeue %s: %w", message.ID, err)
	}

	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, message redis.XMessage, sourceItemID string, attempt int, cause error) error {
	values := map[string]any{
		fieldError:    cause.Error(),
		fieldSourceID: sourceItemID,
		fieldAttempt:  fmt.Sprint(attempt),
	}
	if payload, ok := message.Values[fieldPayload]; ok {
		values[fieldPayload] = payload
	}

	_, err := c.stream.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: c.stream.cfg.DeadLetterStream, Values: values})
		pipe.XAck(ctx, c.stream.cfg.Stream, c.stream.cfg.Group, message.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter %s: %w", message.ID, err)
	}

	return nil
}
