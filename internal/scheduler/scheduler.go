// Package scheduler runs the bot's periodic jobs. Each job gets its own
// ticker goroutine; a failing or panicking job never disturbs the others.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mentorlab/mentorbot/internal/joblock"
	"github.com/mentorlab/mentorbot/internal/storage"
)

// HealthRecorder persists job failures as health events. Implemented by
// storage.Store.
type HealthRecorder interface {
	LogHealth(component, status, message string) error
}

// Job is one periodic task. Run is invoked once at start and then on every
// interval tick until the scheduler's context is cancelled.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a fixed set of jobs.
type Scheduler struct {
	jobs   []Job
	health HealthRecorder
	logger *slog.Logger
	wg     sync.WaitGroup
}

// New creates a Scheduler over the given jobs. health may be nil, in which
// case failures are only logged.
func New(jobs []Job, health HealthRecorder) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		health: health,
		logger: slog.Default(),
	}
}

// Start launches one goroutine per job and returns. Cancel ctx to stop;
// Wait blocks until all job goroutines have exited.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
}

// Wait blocks until every job goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

// runOnce fences a single execution. A panic inside a job body is logged
// and absorbed so the ticker keeps going.
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", job.Name, "panic", r)
			s.recordFailure(job.Name, fmt.Sprintf("panic: %v", r))
		}
	}()

	s.logger.Debug("job starting", "job", job.Name)
	start := time.Now()

	err := job.Run(ctx)
	switch {
	case err == nil:
		s.logger.Debug("job finished", "job", job.Name, "duration", time.Since(start))
	case joblock.IsBusy(err):
		s.logger.Info("job skipped, previous run still active", "job", job.Name)
	default:
		s.logger.Error("job failed", "job", job.Name, "error", err, "duration", time.Since(start))
		s.recordFailure(job.Name, err.Error())
	}
}

func (s *Scheduler) recordFailure(name, message string) {
	if s.health == nil {
		return
	}
	if err := s.health.LogHealth("job:"+name, storage.StatusError, message); err != nil {
		s.logger.Error("recording job failure", "job", name, "error", err)
	}
}
