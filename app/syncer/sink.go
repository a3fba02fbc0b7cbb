package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/reader-sync/app/feed"
	"github.com/lysyi3m/reader-sync/app/tasks"
)

const (
	ModeInline = "inline"
	ModeTasks  = "tasks"
	ModeRedis  = "redis"
)

// Sink receives every item a pass fetches. Accept either stores the item or
// hands it to a queue that will. Flush is called once at the end of a pass.
type Sink interface {
	Mode() string
	Accept(ctx context.Context, item feed.RawItem) error
	Flush(ctx context.Context) error
}

var (
	_ Sink = (*InlineSink)(nil)
	_ Sink = (*TaskSink)(nil)
	_ Sink = (*StreamSink)(nil)
)

type InlineSink struct {
	writer tasks.ItemWriter
}

func NewInlineSink(writer tasks.ItemWriter) *InlineSink {
	return &InlineSink{writer: writer}
}

func (s *InlineSink) Mode() string { return ModeInline }

func (s *InlineSink) Accept(ctx context.Context, item feed.RawItem) error {
	return s.writer.WriteItem(ctx, item)
}

func (s *InlineSink) Flush(ctx context.Context) error { return nil }

// TaskSink queues one ProcessArticleTask per item on the in-process
// scheduler. A full queue is waited out rather than reported. The scheduler
// may be shared with other work; Flush only waits for the sink's own tasks.
type TaskSink struct {
	scheduler tasks.TaskSchedulerInterface
	writer    tasks.ItemWriter
	backoff   time.Duration

	mu       sync.Mutex
	inFlight int
	idle     chan struct{}
}

func NewTaskSink(scheduler tasks.TaskSchedulerInterface, writer tasks.ItemWriter) *TaskSink {
	idle := make(chan struct{})
	close(idle)

	return &TaskSink{
		scheduler: scheduler,
		writer:    writer,
		backoff:   50 * time.Millisecond,
		idle:      idle,
	}
}

func (s *TaskSink) Mode() string { return ModeTasks }

func (s *TaskSink) Accept(ctx context.Context, item feed.RawItem) error {
	task := tasks.NewProcessArticleTask(item, s.writer).WithCompletion(func(error) { s.done() })

	s.track()
	for {
		err := s.scheduler.EnqueueTask(task)
		if !errors.Is(err, tasks.ErrQueueFull) {
			if err != nil {
				s.done()
			}
			return err
		}

		select {
		case <-ctx.Done():
			s.done()
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

// Flush waits until every item accepted so far has been stored or given up on.
func (s *TaskSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TaskSink) track() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight == 0 {
		s.idle = make(chan struct{})
	}
	s.inFlight++
}

func (s *TaskSink) done() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	if s.inFlight == 0 {
		close(s.idle)
	}
}

type Enqueuer interface {
	Enqueue(ctx context.Context, item feed.RawItem) (string, error)
}

// StreamSink appends items to a Redis stream for a consumer group to store.
type StreamSink struct {
	stream Enqueuer
}

func NewStreamSink(stream Enqueuer) *StreamSink {
	return &StreamSink{stream: stream}
}

func (s *StreamSink) Mode() string { return ModeRedis }

func (s *StreamSink) Accept(ctx context.Context, item feed.RawItem) error {
	_, err := s.stream.Enqueue(ctx, item)
	return err
}

func (s *StreamSink) Flush(ctx context.Context) error { return nil }
