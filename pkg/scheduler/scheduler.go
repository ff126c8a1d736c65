// Package scheduler runs matching batches on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when starting a running scheduler.
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

const DefaultInterval = 5 * time.Minute

// BatchRunner is satisfied by *batch.Orchestrator.
type BatchRunner interface {
	Run(ctx context.Context) (*batch.Summary, error)
}

// Scheduler runs a batch immediately on start and then every interval.
type Scheduler struct {
	runner   BatchRunner
	interval time.Duration
	logger   ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

func NewScheduler(runner BatchRunner, interval time.Duration, logger ectologger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// GetName names the scheduler as a startup dependency.
func (s *Scheduler) GetName() string {
	return "scheduler"
}

// DependsOn orders the scheduler after the schema it reads.
func (s *Scheduler) DependsOn() []string {
	return []string{"migrations"}
}

// Start launches the polling loop. ctx scopes the loop's batches; Stop ends it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: interval=%s", s.interval)

	go s.loop(context.WithoutCancel(ctx))
	return nil
}

// Stop waits for the batch in progress, if any, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedC)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.WithContext(ctx).Debug("Scheduler loop stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.runOnce")
	defer span.End()

	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, batch.ErrBatchInProgress):
		s.logger.WithContext(ctx).Debug("Scheduled batch skipped, another run in progress")
	case err != nil:
		s.logger.WithContext(ctx).WithError(err).Error("Scheduled batch failed")
	default:
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"batch_id":  summary.BatchID,
			"processed": summary.Processed,
			"matched":   summary.Matched,
		}).Debug("Scheduled batch finished")
	}
}
