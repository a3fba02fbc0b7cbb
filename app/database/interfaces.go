package database

import (
	"context"
)

type FeedRepository interface {
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	UpsertFeed(ctx context.Context, feed Feed) (Feed, error)
	UpdateFeedMetadata(ctx context.Context, id string, metadata FeedMetadata) error
}

type ArticleRepository interface {
	GetArticleBySourceID(ctx context.Context, sourceItemID string) (*Article, error)
	GetArticleCount(ctx context.Context) (int, error)
	GetPendingMediaCount(ctx context.Context) (int, error)

	UpsertArticle(ctx context.Context, article Article) (Article, error)

	ListArticlesMissingContent(ctx context.Context, feedID string, limit int) ([]ArticleForExtraction, error)
	UpdateArticleContent(ctx context.Context, id, content, summary string) error
}
