package tasks

import (
	"context"

	"github.com/lysyi3m/reader-sync/app/feed"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Example usage:
//
//	scheduler := NewScheduler(DefaultSchedulerOptions())
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessArticleTask(item, writer))
//	scheduler.Drain(ctx)
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	Drain(ctx context.Context) error
}

// Completer is implemented by tasks that want their final outcome. The
// scheduler calls Complete once per accepted task, with nil on success or the
// error it gave up on.
type Completer interface {
	Complete(err error)
}

// ItemWriter turns one raw item into a stored article.
type ItemWriter interface {
	WriteItem(ctx context.Context, item feed.RawItem) error
}
