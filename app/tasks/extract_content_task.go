package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/feed"
)

const (
	DefaultExtractLimit   = 20
	DefaultExtractTimeout = 30 * time.Second
)

// ExtractContentTask fills in bodies for articles the aggregator delivered
// without content by running readability over the linked page.
type ExtractContentTask struct {
	Task
	httpClient       *http.Client
	contentExtractor *feed.ContentExtractor
	processor        *feed.Processor
	articleRepo      database.ArticleRepository
	userAgent        string
	limit            int
	timeout          time.Duration
}

func NewExtractContentTask(feedID string, httpClient *http.Client, contentExtractor *feed.ContentExtractor, processor *feed.Processor, articleRepo database.ArticleRepository, userAgent string) *ExtractContentTask {
	return &ExtractContentTask{
		Task:             NewTask(TaskTypeExtractContent, feedID),
		httpClient:       httpClient,
		contentExtractor: contentExtractor,
		processor:        processor,
		articleRepo:      articleRepo,
		userAgent:        userAgent,
		limit:            DefaultExtractLimit,
		timeout:          DefaultExtractTimeout,
	}
}

func (t *ExtractContentTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	articles, err := t.articleRepo.ListArticlesMissingContent(ctx, t.FeedID, t.limit)
	if err != nil {
		return fmt.Errorf("failed to get articles for content extraction: %w", err)
	}

	if len(articles) == 0 {
		slog.Debug("No articles need content extraction", "feed_id", t.FeedID)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, article := range articles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		extractCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err := t.extractContentForArticle(extractCtx, article)
		cancel()

		if err != nil {
			slog.Error("Failed to extract content for article", "article_id", article.ID, "url", article.Link, "error", err)
			errorCount++
		} else {
			successCount++
		}
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *ExtractContentTask) extractContentForArticle(ctx context.Context, article database.ArticleForExtraction) error {
	pageURL, err := url.Parse(article.Link)
	if err != nil {
		return fmt.Errorf("invalid article link: %w", err)
	}

	data, err := fetchDocument(ctx, t.httpClient, article.Link, t.userAgent, "text/html")
	if err != nil {
		return fmt.Errorf("failed to fetch article content: %w", err)
	}

	extracted, err := t.contentExtractor.Run(data, pageURL)
	if err != nil {
		return fmt.Errorf("failed to extract content: %w", err)
	}

	content := t.processor.Sanitize(extracted)
	if content == "" {
		return fmt.Errorf("extracted content is empty after sanitizing")
	}

	if err := t.articleRepo.UpdateArticleContent(ctx, article.ID, content, t.processor.Summarize(content)); err != nil {
		return fmt.Errorf("failed to update article content: %w", err)
	}

	slog.Debug("Content extracted successfully", "article_id", article.ID, "url", article.Link, "content_length", len(content))
	return nil
}
