package syncer

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/feed"
	"github.com/lysyi3m/reader-sync/app/tasks"
)

var _ tasks.ItemWriter = (*Writer)(nil)

type ArticleStore interface {
	UpsertArticle(ctx context.Context, article database.Article) (database.Article, error)
}

// Writer processes one raw item and upserts the result. Inline passes, the
// task queue and the stream consumer all store items through it.
type Writer struct {
	processor *feed.Processor
	articles  ArticleStore
	log       *slog.Logger
}

func NewWriter(processor *feed.Processor, articles ArticleStore, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		processor: processor,
		articles:  articles,
		log:       logger,
	}
}

func (w *Writer) WriteItem(ctx context.Context, item feed.RawItem) error {
	record, err := w.processor.Process(item)
	if err != nil {
		return err
	}

	stored, err := w.articles.UpsertArticle(ctx, database.Article{
		FeedID:       record.FeedID,
		SourceItemID: record.SourceItemID,
		Title:        record.Title,
		Content:      record.Content,
		Summary:      record.Summary,
		Link:         record.Link,
		Author:       record.Author,
		PublishedAt:  record.PublishedAt,
	})
	if err != nil {
		return err
	}

	w.log.Debug("Article stored", "feed_id", stored.FeedID, "source_item_id", stored.SourceItemID, "article_id", stored.ID)

	return nil
}
