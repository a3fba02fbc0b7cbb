package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/reader-sync/app/syncer"
)

const DefaultPassTimeout = 30 * time.Minute

type PassRunner interface {
	Run(ctx context.Context) (*syncer.Summary, error)
}

// Scheduler starts a sync pass on a cron schedule. A tick that arrives while
// the previous pass is still running is skipped.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	spec    string
	runner  PassRunner
	timeout time.Duration
	log     *slog.Logger
}

func New(ctx context.Context, spec string, runner PassRunner, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultPassTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		ctx:     ctx,
		cron:    cron.New(cron.WithLocation(time.Local)),
		spec:    spec,
		runner:  runner,
		timeout: timeout,
		log:     logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runPass); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("Sync scheduler started", "schedule", s.spec)

	return nil
}

// Stop prevents further passes and waits for a running one to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.Info("Scheduler context is done", "error", ctx.Err())
		return
	default:
	}

	summary, err := s.runner.Run(ctx)
	if errors.Is(err, syncer.ErrPassInProgress) {
		s.log.Info("Previous sync pass still running, skipping tick")
		return
	}
	if err != nil {
		return
	}

	s.log.Debug("Scheduled sync pass finished", "duration", summary.Duration().String())
}
