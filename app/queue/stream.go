package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/reader-sync/app/feed"
)

type Config struct {
	URL              string
	Stream           string
	DeadLetterStream string
	Group            string
	Consumer         string
	MaxAttempts      int
	BatchSize        int64
	Block            time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:         "redis://localhost:6379/0",
		Stream:      "reader-sync:articles",
		Group:       "reader-sync",
		Consumer:    "reader-sync-1",
		MaxAttempts: 5,
		BatchSize:   50,
		Block:       5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Stream == "" {
		c.Stream = defaults.Stream
	}
	if c.DeadLetterStream == "" {
		c.DeadLetterStream = c.Stream + ":dead"
	}
	if c.Group == "" {
		c.Group = defaults.Group
	}
	if c.Consumer == "" {
		c.Consumer = defaults.Consumer
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Block <= 0 {
		c.Block = defaults.Block
	}
	return c
}

// Stream is a Redis Streams work queue for raw items. Delivery is
// at-least-once: entries stay pending in the consumer group until acked.
type Stream struct {
	client *redis.Client
	cfg    Config
	log    *slog.Logger
}

// Open connects to the Redis server named by cfg.URL.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Stream, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	stream := NewStream(client, cfg, logger)
	stream.log.Info("Connected to Redis", "addr", opts.Addr, "stream", stream.cfg.Stream)

	return stream, nil
}

func NewStream(client *redis.Client, cfg Config, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    logger,
	}
}

func (s *Stream) Name() string {
	return s.cfg.Stream
}

// Enqueue appends item to the stream and returns the entry id once Redis has
// accepted it.
func (s *Stream) Enqueue(ctx context.Context, item feed.RawItem) (string, error) {
	return s.add(ctx, item, 1)
}

func (s *Stream) add(ctx context.Context, item feed.RawItem, attempt int) (string, error) {
	values, err := encodeItem(item, attempt)
	if err != nil {
		return "", err
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add item %s to stream: %w", item.SourceItemID, err)
	}

	return id, nil
}

func (s *Stream) Len(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.cfg.Stream).Result()
}

func (s *Stream) DeadLetterLen(ctx context.Context) (int64, error) {
	return s.client.XLen(ctx, s.cfg.DeadLetterStream).Result()
}

// Pending returns how many delivered entries are waiting for an ack.
func (s *Stream) Pending(ctx context.Context) (int64, error) {
	pending, err := s.client.XPending(ctx, s.cfg.Stream, s.cfg.Group).Result()
	if err != nil {
		return 0, err
	}
	return pending.Count, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}
