package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"launchline/internal/jobs"
)

// Config holds the cron expressions for each background job.
type Config struct {
	DispatchOutbox  string
	ExpireInvites   string
	PurgeLoginCodes string
}

// Scheduler manages cron job scheduling.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *jobs.JobRunner
	logger *slog.Logger
}

// NewScheduler creates a scheduler and registers all jobs.
func NewScheduler(jobRunner *jobs.JobRunner, cfg Config, logger *slog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)
	s := &Scheduler{cron: c, jobs: jobRunner, logger: logger}
	s.registerJobs(cfg)
	return s
}

func (s *Scheduler) registerJobs(cfg Config) {
	register := func(name, spec string, fn func()) {
		if _, err := s.cron.AddFunc(spec, fn); err != nil {
			s.logger.Error("failed to register job", "job", name, "spec", spec, "error", err)
			return
		}
		s.logger.Info("registered job", "job", name, "spec", spec)
	}
	register("DispatchOutbox", cfg.DispatchOutbox, s.jobs.DispatchOutbox)
	register("ExpireInvites", cfg.ExpireInvites, s.jobs.ExpireInvites)
	register("PurgeLoginCodes", cfg.PurgeLoginCodes, s.jobs.PurgeLoginCodes)
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
