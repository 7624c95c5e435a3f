// Package scheduler runs named periodic tasks on cron specs (with seconds).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"FluxFeed/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Task is one run of a scheduled job. ctx is cancelled on Stop.
type Task func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	log    *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// a slow run is skipped rather than stacked
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:    log.With(logger.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds task under spec, e.g. "0 */5 * * * *".
func (s *Scheduler) Register(name, spec string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := task(s.ctx); err != nil {
			s.log.Error("scheduled task failed", logger.String("task", name), logger.Error(err))
			return
		}
		s.log.Debug("scheduled task done", logger.String("task", name), logger.Duration("elapsed_ms", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	s.log.Info("task registered", logger.String("task", name), logger.String("spec", spec))
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
