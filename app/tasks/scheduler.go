package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrQueueFull = errors.New("task queue is full")

type SchedulerOptions struct {
	WorkerCount    int
	QueueSize      int
	TaskTimeout    time.Duration
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
}

func DefaultSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{
		WorkerCount:    5,
		QueueSize:      300,
		TaskTimeout:    5 * time.Minute,
		RetryBaseDelay: time.Second,
		MaxRetryDelay:  30 * time.Second,
	}
}

// Scheduler runs tasks on a fixed pool of workers. Failed tasks are retried
// with exponential backoff until they run out of retries.
type Scheduler struct {
	opts      SchedulerOptions
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu       sync.Mutex
	inFlight int
	idle     chan struct{}
}

func NewScheduler(opts SchedulerOptions) *Scheduler {
	defaults := DefaultSchedulerOptions()
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaults.WorkerCount
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaults.QueueSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaults.TaskTimeout
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = defaults.MaxRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	return &Scheduler{
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, opts.QueueSize),
		idle:      idle,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	slog.Debug("Task scheduler started", "workers", s.opts.WorkerCount, "queue_size", s.opts.QueueSize)
}

// Stop cancels running tasks and waits for the workers to exit. Tasks still
// queued are discarded.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	for {
		select {
		case task := <-s.taskQueue:
			slog.Debug("Discarding queued task on shutdown", "type", string(task.GetType()), "id", task.GetID())
			s.complete(task, context.Canceled)
		default:
			return
		}
	}
}

// EnqueueTask returns once the task is accepted, not once it has run.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.track()

	if err := s.enqueue(task); err != nil {
		s.finish()
		return err
	}

	return nil
}

// Drain blocks until every accepted task has either succeeded or given up.
func (s *Scheduler) Drain(ctx context.Context) error {
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

func (s *Scheduler) enqueue(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) track() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight == 0 {
		s.idle = make(chan struct{})
	}
	s.inFlight++
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	if s.inFlight == 0 {
		close(s.idle)
	}
}

// complete reports the final outcome of an accepted task.
func (s *Scheduler) complete(task TaskInterface, err error) {
	if c, ok := task.(Completer); ok {
		c.Complete(err)
	}
	s.finish()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.opts.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.complete(task, nil)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "error", err)

	if IsPermanent(err) || !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.complete(task, err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed_id", task.GetFeedID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.complete(task, s.ctx.Err())
			return
		case <-timer.C:
		}

		if retryErr := s.enqueue(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", fmt.Errorf("requeue: %w", retryErr))
			s.complete(task, retryErr)
		}
	}()
}

func (s *Scheduler) retryDelay(retryCount int) time.Duration {
	shift := retryCount - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 30 {
		return s.opts.MaxRetryDelay
	}

	delay := s.opts.RetryBaseDelay * time.Duration(1<<uint(shift))
	if delay > s.opts.MaxRetryDelay || delay <= 0 {
		delay = s.opts.MaxRetryDelay
	}
	return delay
}
