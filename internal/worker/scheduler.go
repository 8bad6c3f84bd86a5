package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a RentSync on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sync    *RentSync
	spec    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler creates a scheduler for spec (standard five-field cron syntax)
// interpreted in loc. Each run is bounded by timeout.
func NewScheduler(sync *RentSync, spec string, loc *time.Location, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sync:    sync,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the job, runs one sync immediately in the background and
// starts the cron loop. Runs use ctx as their parent.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("worker: schedule %q: %w", s.spec, err)
	}
	go s.runOnce(ctx)
	s.cron.Start()
	s.logger.Info("worker: scheduler started", "spec", s.spec)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("worker: scheduler stopped")
}

func (s *Scheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()
	if _, err := s.sync.Run(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			s.logger.Info("worker: previous sync still running, skipping")
			return
		}
		s.logger.Error("worker: rent sync failed", "error", err)
	}
}
