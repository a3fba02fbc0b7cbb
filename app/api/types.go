package api

import (
	"context"
	"time"

	"github.com/lysyi3m/reader-sync/app/database"
	"github.com/lysyi3m/reader-sync/app/queue"
	"github.com/lysyi3m/reader-sync/app/syncer"
)

type SyncTrigger interface {
	Run(ctx context.Context) (*syncer.Summary, error)
	Last() (*syncer.Summary, error)
	Running() bool
}

var _ SyncTrigger = (*syncer.Tracker)(nil)

type QueueStats interface {
	Len(ctx context.Context) (int64, error)
	Pending(ctx context.Context) (int64, error)
	DeadLetterLen(ctx context.Context) (int64, error)
}

var _ QueueStats = (*queue.Stream)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	tracker     SyncTrigger
	stream      QueueStats
	version     string
	passTimeout time.Duration
}
