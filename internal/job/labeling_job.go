// Package job schedules the background work of the explorer backend.
package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/service"
)

const (
	// runTimeout bounds a single auto-labeling run
	runTimeout = 10 * time.Minute
	// purgeSchedule drops expired cache entries once a minute
	purgeSchedule = "0 * * * * *"
)

// AutoLabeler runs one labeling pass
type AutoLabeler interface {
	RunAutoLabeling(ctx context.Context) *service.LabelingReport
}

// CachePurger drops expired cache entries
type CachePurger interface {
	Purge() int
}

// Purgers purges several caches as one
type Purgers []CachePurger

// Purge purges every member and returns the total removed
func (p Purgers) Purge() int {
	total := 0
	for _, c := range p {
		total += c.Purge()
	}
	return total
}

// LabelingJobConfig configures the scheduler
type LabelingJobConfig struct {
	Schedule     string // cron expression with a seconds field, empty disables periodic runs
	StartupDelay time.Duration
	RunOnStartup bool
}

// LabelingScheduler runs auto-labeling after startup and on a cron schedule.
// A run still in progress when the next one is due causes that one to be skipped.
type LabelingScheduler struct {
	cfg     LabelingJobConfig
	labeler AutoLabeler
	purger  CachePurger
	cron    *cron.Cron
	logger  *logging.Logger

	mu      sync.Mutex
	running atomic.Bool
	last    *service.LabelingReport
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewLabelingScheduler creates a scheduler. purger may be nil.
func NewLabelingScheduler(cfg LabelingJobConfig, labeler AutoLabeler, purger CachePurger, logger *logging.Logger) (*LabelingScheduler, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithField("component", "labeling_job")
	cronLogger := logging.NewCronLogger(logger)

	s := &LabelingScheduler{
		cfg:     cfg,
		labeler: labeler,
		purger:  purger,
		logger:  logger,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	if cfg.Schedule != "" {
		if _, err := s.cron.AddFunc(cfg.Schedule, func() { s.run(s.baseContext(), "schedule") }); err != nil {
			return nil, err
		}
	}
	if purger != nil {
		if _, err := s.cron.AddFunc(purgeSchedule, s.purge); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start starts the cron scheduler and, when configured, the delayed startup run
func (s *LabelingScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx, s.cancel = ctx, cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.WithField("schedule", s.cfg.Schedule).Info("labeling scheduler started")

	if !s.cfg.RunOnStartup {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.run(ctx, "startup")
		}
	}()
}

// Stop stops scheduling and waits for a running pass to finish or for ctx to expire
func (s *LabelingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	cronDone := s.cron.Stop().Done()
	startupDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(startupDone)
	}()

	for _, done := range []<-chan struct{}{cronDone, startupDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.logger.Info("labeling scheduler stopped")
	return nil
}

// LastReport returns the report of the most recent completed run, if any
func (s *LabelingScheduler) LastReport() *service.LabelingReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// baseContext is cancelled by Stop so scheduled runs end with the scheduler
func (s *LabelingScheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// run executes one pass unless another one is in progress
func (s *LabelingScheduler) run(ctx context.Context, trigger string) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.WithField("trigger", trigger).Info("labeling run skipped, previous run still active")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	report := s.labeler.RunAutoLabeling(ctx)
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"trigger": trigger,
		"run_id":  report.RunID,
		"total":   report.Total(),
	}).Info("labeling run finished")
}

func (s *LabelingScheduler) purge() {
	if n := s.purger.Purge(); n > 0 {
		s.logger.Debugf("purged %d expired cache entries", n)
	}
}
