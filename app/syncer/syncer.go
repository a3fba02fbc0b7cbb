package syncer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/feed"
	"github.com/lysyi3m/reader-sync/app/reader"
)

const DefaultFallbackCategory = "Uncategorized"

var _ Source = (*reader.Client)(nil)

// Source is the aggregator side of a pass.
type Source interface {
	Authenticate(ctx context.Context) (string, error)
	ListSubscriptions(ctx context.Context) ([]reader.Subscription, error)
	ListItems(ctx context.Context, streamID string, since *time.Time) ([]reader.Item, error)
}

type FeedStore interface {
	UpsertFeed(ctx context.Context, feed database.Feed) (database.Feed, error)
}

type Options struct {
	OwnerID          string
	FeedStatus       database.FeedStatus
	FallbackCategory string
	// ItemLookback limits item requests to the window before now. Zero
	// requests the newest page regardless of age.
	ItemLookback time.Duration
	Settings     *feed.Settings
	Now          func() time.Time
}

type Summary struct {
	Mode              string    `json:"mode"`
	FeedsProcessed    int       `json:"feeds_processed"`
	FeedsFailed       int       `json:"feeds_failed"`
	FeedsSkipped      int       `json:"feeds_skipped"`
	ArticlesProcessed int       `json:"articles_processed"`
	ArticlesFailed    int       `json:"articles_failed"`
	FeedIDs           []string  `json:"feed_ids"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

type Syncer struct {
	source Source
	feeds  FeedStore
	sink   Sink
	opts   Options
	log    *slog.Logger
}

func New(source Source, feeds FeedStore, sink Sink, opts Options, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = DefaultFallbackCategory
	}
	if opts.Settings == nil {
		opts.Settings = feed.NewSettings()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Syncer{
		source: source,
		feeds:  feeds,
		sink:   sink,
		opts:   opts,
		log:    logger,
	}
}

type target struct {
	subscription reader.Subscription
	feedID       string
}

// Run performs one pass. The returned summary is never nil, so a failed
// pass still reports how far it got. Only authentication, the subscription
// list and feed upserts abort a pass; a failing feed or item is logged and
// counted.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{Mode: s.sink.Mode(), StartedAt: s.opts.Now()}
	defer func() { summary.FinishedAt = s.opts.Now() }()

	s.log.Info("Sync pass started", "mode", summary.Mode)

	if _, err := s.source.Authenticate(ctx); err != nil {
		return summary, &SyncError{Stage: "authenticate", Err: err}
	}

	subscriptions, err := s.source.ListSubscriptions(ctx)
	if err != nil {
		return summary, &SyncError{Stage: "list subscriptions", Err: err}
	}

	targets := make([]target, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if !s.opts.Settings.IsEnabled(sub.ID) {
			s.log.Debug("Subscription disabled, skipping", "subscription_id", sub.ID)
			summary.FeedsSkipped++
			continue
		}

		stored, err := s.feeds.UpsertFeed(ctx, s.feedFor(sub))
		if err != nil {
			return summary, &SyncError{Stage: "upsert feed", SubscriptionID: sub.ID, Err: err}
		}

		targets = append(targets, target{subscription: sub, feedID: stored.ID})
		summary.FeedIDs = append(summary.FeedIDs, stored.ID)
	}

	var since *time.Time
	if s.opts.ItemLookback > 0 {
		t := s.opts.Now().Add(-s.opts.ItemLookback)
		since = &t
	}

	for _, tgt := range targets {
		if err := ctx.Err(); err != nil {
			return summary, &SyncError{Stage: "list items", SubscriptionID: tgt.subscription.ID, Err: err}
		}

		items, err := s.source.ListItems(ctx, tgt.subscription.ID, since)
		if err != nil {
			s.log.Error("Failed to list items", "subscription_id", tgt.subscription.ID, "feed_id", tgt.feedID, "error", err)
			summary.FeedsFailed++
			continue
		}

		for _, item := range items {
			raw := toRawItem(tgt.feedID, item)
			if err := s.sink.Accept(ctx, raw); err != nil {
				s.log.Error("Failed to handle item", "feed_id", tgt.feedID, "source_item_id", raw.SourceItemID, "error", err)
				summary.ArticlesFailed++
				continue
			}
			summary.ArticlesProcessed++
		}

		summary.FeedsProcessed++
		s.log.Debug("Feed synced", "subscription_id", tgt.subscription.ID, "feed_id", tgt.feedID, "items", len(items))
	}

	if err := s.sink.Flush(ctx); err != nil {
		s.log.Warn("Failed to flush sink", "mode", summary.Mode, "error", err)
	}

	s.log.Info("Sync pass completed",
		"mode", summary.Mode,
		"feeds_processed", summary.FeedsProcessed,
		"feeds_failed", summary.FeedsFailed,
		"feeds_skipped", summary.FeedsSkipped,
		"articles_processed", summary.ArticlesProcessed,
		"articles_failed", summary.ArticlesFailed)

	return summary, nil
}

func (s *Syncer) feedFor(sub reader.Subscription) database.Feed {
	title := sub.Title
	if title == "" {
		title = sub.URL
	}

	return database.Feed{
		ID:       DeriveFeedID(sub.ID),
		OwnerID:  s.opts.OwnerID,
		SourceID: sub.ID,
		URL:      sub.URL,
		Title:    title,
		Category: s.category(sub),
		Status:   s.opts.FeedStatus,
	}
}

func (s *Syncer) category(sub reader.Subscription) string {
	if category, ok := s.opts.Settings.Category(sub.ID); ok {
		return category
	}
	if len(sub.Categories) > 0 {
		return sub.Categories[0]
	}
	return s.opts.FallbackCategory
}

func toRawItem(feedID string, item reader.Item) feed.RawItem {
	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Summary
	}

	return feed.RawItem{
		SourceItemID: item.ID,
		FeedID:       feedID,
		Title:        item.Title,
		Content:      content,
		Summary:      item.Summary,
		Author:       item.Author,
		Link:         item.Link,
		PublishedAt:  item.Published,
	}
}
