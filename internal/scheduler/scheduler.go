// Package scheduler runs periodic maintenance jobs such as the rate limiter
// sweep and the expired session purge.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one named periodic task.
type Job struct {
	Name string
	// Spec is a cron expression or descriptor such as "@every 5m".
	Spec string
	Run  func(ctx context.Context) error
	// Timeout bounds a single run. Zero means one minute.
	Timeout time.Duration
}

// Scheduler wraps a cron runner and logs every job outcome.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   []string
}

// New creates a stopped Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.With("component", "scheduler"),
	}
}

// Every converts an interval into a cron descriptor.
func Every(d time.Duration) string {
	return "@every " + d.String()
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs a name and a run func")
	}
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	_, err := s.cron.AddFunc(job.Spec, func() {
		s.run(job.Name, timeout, job.Run)
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job.Name)
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("job_panic", "job", name, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Warn("job_failed", "job", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Debug("job_done", "job", name, "duration_ms", time.Since(start).Milliseconds())
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler_started", "jobs", s.jobs)
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever
// comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler_stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
