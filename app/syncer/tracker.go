package syncer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

type Runner interface {
	Run(ctx context.Context) (*Summary, error)
}

// Tracker serializes passes and remembers the outcome of the last one.
type Tracker struct {
	runner Runner
	log    *slog.Logger

	mu      sync.Mutex
	running bool
	last    *Summary
	lastErr error
	hooks   []func(context.Context, *Summary)
}

func NewTracker(runner Runner, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{runner: runner, log: logger}
}

// OnComplete registers fn to run after every pass that did not abort.
func (t *Tracker) OnComplete(fn func(context.Context, *Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, fn)
}

// Run starts a pass unless one is already running, in which case it returns
// ErrPassInProgress immediately.
func (t *Tracker) Run(ctx context.Context) (*Summary, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil, ErrPassInProgress
	}
	t.running = true
	t.mu.Unlock()

	summary, err := t.runner.Run(ctx)

	t.mu.Lock()
	t.running = false
	t.last = summary
	t.lastErr = err
	hooks := slices.Clone(t.hooks)
	t.mu.Unlock()

	if err != nil {
		t.log.Error("Sync pass failed", "error", err)
		return summary, err
	}

	for _, hook := range hooks {
		hook(ctx, summary)
	}

	return summary, nil
}

func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Last returns the summary and error of the most recent pass, or nil, nil
// before the first one.
func (t *Tracker) Last() (*Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.lastErr
}
