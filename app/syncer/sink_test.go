package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/reader-sync/app/feed"
	"github.com/lysyi3m/reader-sync/app/tasks"
)

type recordingWriter struct {
	mu      sync.Mutex
	written []string
}

func (w *recordingWriter) WriteItem(ctx context.Context, item feed.RawItem) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, item.SourceItemID)
	return nil
}

func (w *recordingWriter) Written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.written...)
}

// slowTask stands in for follow-up work sharing the scheduler.
type slowTask struct {
	tasks.Task
	release chan struct{}
}

func (s *slowTask) Execute(ctx context.Context) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTaskSink_FlushIgnoresUnrelatedTasks(t *testing.T) {
	scheduler := tasks.NewScheduler(tasks.SchedulerOptions{WorkerCount: 2, QueueSize: 10, TaskTimeout: 10 * time.Second})
	scheduler.Start()

	release := make(chan struct{})
	defer func() {
		close(release)
		scheduler.Stop()
	}()

	require.NoError(t, scheduler.EnqueueTask(&slowTask{Task: tasks.NewTask(tasks.TaskTypeExtractContent, "feed-1"), release: release}))

	writer := &recordingWriter{}
	sink := NewTaskSink(scheduler, writer)
	ctx := context.Background()

	require.NoError(t, sink.Accept(ctx, feed.RawItem{SourceItemID: "item-1", FeedID: "feed-1"}))
	require.NoError(t, sink.Accept(ctx, feed.RawItem{SourceItemID: "item-2", FeedID: "feed-1"}))

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, sink.Flush(flushCtx))

	assert.ElementsMatch(t, []string{"item-1", "item-2"}, writer.Written())

	busyCtx, busyCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer busyCancel()
	assert.ErrorIs(t, scheduler.Drain(busyCtx), context.DeadlineExceeded, "unrelated task is still running")
}

func TestTaskSink_FlushWhenNothingAccepted(t *testing.T) {
	sink := NewTaskSink(tasks.NewScheduler(tasks.SchedulerOptions{}), &recordingWriter{})
	assert.NoError(t, sink.Flush(context.Background()))
}

func TestTaskSink_RejectedTaskIsNotAwaited(t *testing.T) {
	scheduler := tasks.NewScheduler(tasks.SchedulerOptions{})
	scheduler.Start()
	scheduler.Stop()

	sink := NewTaskSink(scheduler, &recordingWriter{})
	assert.Error(t, sink.Accept(context.Background(), feed.RawItem{SourceItemID: "item-1", FeedID: "feed-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sink.Flush(ctx))
}
