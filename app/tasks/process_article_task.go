package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/reader-sync/app/feed"
)

type ProcessArticleTask struct {
	Task
	Item       feed.RawItem
	writer     ItemWriter
	onComplete func(error)
}

func NewProcessArticleTask(item feed.RawItem, writer ItemWriter) *ProcessArticleTask {
	return &ProcessArticleTask{
		Task:   NewTask(TaskTypeProcessArticle, item.FeedID),
		Item:   item,
		writer: writer,
	}
}

// WithCompletion registers fn to receive the task's final outcome.
func (t *ProcessArticleTask) WithCompletion(fn func(error)) *ProcessArticleTask {
	t.onComplete = fn
	return t
}

func (t *ProcessArticleTask) Complete(err error) {
	if t.onComplete != nil {
		t.onComplete(err)
	}
}

var _ Completer = (*ProcessArticleTask)(nil)

func (t *ProcessArticleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.writer.WriteItem(ctx, t.Item); err != nil {
		var validationErr *feed.ValidationError
		if errors.As(err, &validationErr) {
			return Permanent(err)
		}
		return fmt.Errorf("failed to write item %s: %w", t.Item.SourceItemID, err)
	}

	slog.Debug("Task completed",
		"type", t.GetType(),
		"feed_id", t.FeedID,
		"source_item_id", t.Item.SourceItemID,
		"duration", t.GetDuration(),
		"retries", t.RetryCount)

	return nil
}
