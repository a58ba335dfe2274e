package jobs

import (
	"context"
	"time"

	"donation_match_backend/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	runTimeout  = 5 * time.Minute
	stopTimeout = 10 * time.Second
)

// Scheduler runs the background jobs on their configured cron schedules.
type Scheduler struct {
	cfg          *config.Config
	verification *VerificationSyncJob
	sweep        *ClientSweepJob
	logger       *zap.Logger
	cron         *cron.Cron
}

// NewScheduler creates a scheduler for the verification sync and client sweep jobs.
func NewScheduler(cfg *config.Config, verification *VerificationSyncJob, sweep *ClientSweepJob, logger *zap.Logger) *Scheduler {
	cl := NewCronLogger(logger.Named("cron"))
	return &Scheduler{
		cfg:          cfg,
		verification: verification,
		sweep:        sweep,
		logger:       logger.Named("scheduler"),
		cron:         cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
	}
}

// SetupAndStart schedules every job with a non-empty schedule and starts the scheduler.
func (s *Scheduler) SetupAndStart() error {
	if err := s.add("verification_sync", s.cfg.VerificationSyncSchedule, func(ctx context.Context) {
		verified, err := s.verification.Run(ctx)
		if err != nil {
			s.logger.Error("Verification sync run failed", zap.Int("profiles_verified", verified), zap.Error(err))
			return
		}
		s.logger.Info("Verification sync run completed", zap.Int("profiles_verified", verified))
	}); err != nil {
		return err
	}
	if err := s.add("client_sweep", s.cfg.ClientSweepSchedule, func(context.Context) {
		evicted := s.sweep.Run()
		s.logger.Info("Client sweep run completed", zap.Int("clients_evicted", evicted))
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) add(name, spec string, run func(ctx context.Context)) error {
	if spec == "" {
		s.logger.Warn("Job schedule not defined. Job will not run.", zap.String("job", name))
		return nil
	}
	jobID, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		run(ctx)
	})
	if err != nil {
		s.logger.Error("Failed to schedule job", zap.String("job", name), zap.String("spec", spec), zap.Error(err))
		return err
	}
	s.logger.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec), zap.Any("jobID", jobID))
	return nil
}

// Entries returns the number of scheduled jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop gracefully stops the cron scheduler, waiting briefly for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("Job scheduler stopped gracefully.")
	case <-time.After(stopTimeout):
		s.logger.Warn("Job scheduler stop timed out.")
	}
}
