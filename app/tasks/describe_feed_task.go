package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/feed"
)

const DefaultDescribeInterval = 24 * time.Hour

// DescribeFeedTask reads a feed's own document for the description, homepage,
// image and language the aggregator does not report.
type DescribeFeedTask struct {
	Task
	httpClient *http.Client
	parser     *feed.Parser
	feedRepo   database.FeedRepository
	userAgent  string
	interval   time.Duration
	now        func() time.Time
}

func NewDescribeFeedTask(feedID string, httpClient *http.Client, parser *feed.Parser, feedRepo database.FeedRepository, userAgent string, interval time.Duration) *DescribeFeedTask {
	if interval <= 0 {
		interval = DefaultDescribeInterval
	}

	return &DescribeFeedTask{
		Task:       NewTask(TaskTypeDescribeFeed, feedID),
		httpClient: httpClient,
		parser:     parser,
		feedRepo:   feedRepo,
		userAgent:  userAgent,
		interval:   interval,
		now:        time.Now,
	}
}

func (t *DescribeFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stored, err := t.feedRepo.GetFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	if stored == nil {
		slog.Warn("Feed not found in database, skipping", "feed_id", t.FeedID)
		return nil
	}

	if stored.MetadataFetchedAt != nil && t.now().Sub(*stored.MetadataFetchedAt) < t.interval {
		slog.Debug("Feed metadata is fresh", "feed_id", t.FeedID, "fetched_at", stored.MetadataFetchedAt)
		return nil
	}

	if stored.URL == "" {
		return Permanent(fmt.Errorf("feed %s has no URL", t.FeedID))
	}

	data, err := fetchDocument(ctx, t.httpClient, stored.URL, t.userAgent)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, err := t.parser.Run(data)
	if err != nil {
		return Permanent(fmt.Errorf("failed to parse feed: %w", err))
	}

	err = t.feedRepo.UpdateFeedMetadata(ctx, t.FeedID, database.FeedMetadata{
		Description: metadata.Description,
		SiteURL:     metadata.Link,
		ImageURL:    metadata.ImageURL,
		Language:    metadata.Language,
	})
	if err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"duration", t.GetDuration(),
		"language", metadata.Language)

	return nil
}
