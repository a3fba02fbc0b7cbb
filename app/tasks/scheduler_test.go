package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/reader-sync/app/feed"
)

// MockItemWriter fails the first failures calls for each source item id.
type MockItemWriter struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    map[string]int
	written  []string
}

func NewMockItemWriter(failures int, err error) *MockItemWriter {
	return &MockItemWriter{failures: failures, err: err, calls: make(map[string]int)}
}

func (m *MockItemWriter) WriteItem(ctx context.Context, item feed.RawItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[item.SourceItemID]++
	if m.failures < 0 || m.calls[item.SourceItemID] <= m.failures {
		return m.err
	}
	m.written = append(m.written, item.SourceItemID)
	return nil
}

func (m *MockItemWriter) Calls(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[id]
}

func (m *MockItemWriter) Written() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.written...)
}

func fastOptions() SchedulerOptions {
	return SchedulerOptions{
		WorkerCount:    3,
		QueueSize:      10,
		TaskTimeout:    time.Second,
		RetryBaseDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
	}
}

func drain(t *testing.T, s *Scheduler) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Drain(ctx); err != nil {
		t.Fatalf("Expected scheduler to drain, got: %v", err)
	}
}

func TestScheduler_ProcessesTasks(t *testing.T) {
	writer := NewMockItemWriter(0, nil)
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	defer scheduler.Stop()

	for _, id := range []string{"a", "b", "c", "d"} {
		if err := scheduler.EnqueueTask(NewProcessArticleTask(feed.RawItem{SourceItemID: id, FeedID: "feed-1"}, writer)); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	drain(t, scheduler)

	if got := len(writer.Written()); got != 4 {
		t.Errorf("Expected 4 written items, got %d", got)
	}
}

func TestScheduler_RetriesFailedTasks(t *testing.T) {
	writer := NewMockItemWriter(2, errors.New("database is locked"))
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	defer scheduler.Stop()

	task := NewProcessArticleTask(feed.RawItem{SourceItemID: "a", FeedID: "feed-1"}, writer)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	drain(t, scheduler)

	if calls := writer.Calls("a"); calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if got := writer.Written(); len(got) != 1 {
		t.Errorf("Expected item written after retries, got %v", got)
	}
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	writer := NewMockItemWriter(-1, errors.New("connection refused"))
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	defer scheduler.Stop()

	task := NewProcessArticleTask(feed.RawItem{SourceItemID: "a", FeedID: "feed-1"}, writer)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	drain(t, scheduler)

	if calls := writer.Calls("a"); calls != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, calls)
	}
}

func TestScheduler_DoesNotRetryValidationErrors(t *testing.T) {
	writer := NewMockItemWriter(-1, &feed.ValidationError{Field: "feed id", Reason: "is required"})
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(NewProcessArticleTask(feed.RawItem{SourceItemID: "a"}, writer)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	drain(t, scheduler)

	if calls := writer.Calls("a"); calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
}

func TestScheduler_ReportsEachOutcomeOnce(t *testing.T) {
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	defer scheduler.Stop()

	var mu sync.Mutex
	outcomes := make(map[string][]error)
	record := func(id string) func(error) {
		return func(err error) {
			mu.Lock()
			defer mu.Unlock()
			outcomes[id] = append(outcomes[id], err)
		}
	}

	items := map[string]*MockItemWriter{
		"ok":        NewMockItemWriter(0, nil),
		"flaky":     NewMockItemWriter(1, errors.New("database is locked")),
		"exhausted": NewMockItemWriter(-1, errors.New("connection refused")),
		"invalid":   NewMockItemWriter(-1, &feed.ValidationError{Field: "title", Reason: "is required"}),
	}
	for id, writer := range items {
		task := NewProcessArticleTask(feed.RawItem{SourceItemID: id, FeedID: "feed-1"}, writer).WithCompletion(record(id))
		if err := scheduler.EnqueueTask(task); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	drain(t, scheduler)

	mu.Lock()
	defer mu.Unlock()

	for id := range items {
		if got := len(outcomes[id]); got != 1 {
			t.Fatalf("Expected one outcome for %s, got %d", id, got)
		}
	}
	for _, id := range []string{"ok", "flaky"} {
		if err := outcomes[id][0]; err != nil {
			t.Errorf("Expected %s to succeed, got: %v", id, err)
		}
	}
	for _, id := range []string{"exhausted", "invalid"} {
		if outcomes[id][0] == nil {
			t.Errorf("Expected %s to report its failure", id)
		}
	}
}

type blockingTask struct {
	Task
	release chan struct{}
	ran     *atomic.Int32
}

func (b *blockingTask) Execute(ctx context.Context) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.ran.Add(1)
	return nil
}

func TestScheduler_QueueFull(t *testing.T) {
	opts := fastOptions()
	opts.WorkerCount = 1
	opts.QueueSize = 1
	scheduler := NewScheduler(opts)
	scheduler.Start()
	defer scheduler.Stop()

	release := make(chan struct{})
	var ran atomic.Int32

	newTask := func() *blockingTask {
		return &blockingTask{Task: NewTask(TaskTypeProcessArticle, "feed-1"), release: release, ran: &ran}
	}

	if err := scheduler.EnqueueTask(newTask()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Wait for the worker to pick up the first task so the queue slot frees up.
	deadline := time.Now().Add(time.Second)
	for len(scheduler.taskQueue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := scheduler.EnqueueTask(newTask()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := scheduler.EnqueueTask(newTask()); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got: %v", err)
	}

	close(release)
	drain(t, scheduler)

	if got := ran.Load(); got != 2 {
		t.Errorf("Expected 2 tasks to run, got %d", got)
	}
}

func TestScheduler_DrainRespectsContext(t *testing.T) {
	opts := fastOptions()
	opts.WorkerCount = 1
	scheduler := NewScheduler(opts)
	scheduler.Start()
	defer scheduler.Stop()

	var ran atomic.Int32
	task := &blockingTask{Task: NewTask(TaskTypeProcessArticle, "feed-1"), release: make(chan struct{}), ran: &ran}
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := scheduler.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got: %v", err)
	}
}

func TestScheduler_DrainWhenIdle(t *testing.T) {
	scheduler := NewScheduler(fastOptions())

	if err := scheduler.Drain(context.Background()); err != nil {
		t.Errorf("Expected idle scheduler to drain immediately, got: %v", err)
	}
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	scheduler := NewScheduler(fastOptions())
	scheduler.Start()
	scheduler.Stop()

	err := scheduler.EnqueueTask(NewProcessArticleTask(feed.RawItem{SourceItemID: "a", FeedID: "feed-1"}, NewMockItemWriter(0, nil)))
	if err == nil {
		t.Error("Expected error when enqueueing on a stopped scheduler")
	}

	if err := scheduler.Drain(context.Background()); err != nil {
		t.Errorf("Expected rejected task not to be tracked, got: %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	scheduler := NewScheduler(SchedulerOptions{RetryBaseDelay: time.Second, MaxRetryDelay: 30 * time.Second})

	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := scheduler.retryDelay(tt.retry); got != tt.expected {
			t.Errorf("Expected delay %v for retry %d, got %v", tt.expected, tt.retry, got)
		}
	}
}

func TestTask_RetryAccounting(t *testing.T) {
	task := NewTask(TaskTypeDescribeFeed, "feed-1")

	if task.ID == "" {
		t.Error("Expected task ID to be set")
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected task to be retryable after %d retries", i)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Expected task to stop retrying after max retries")
	}
}
