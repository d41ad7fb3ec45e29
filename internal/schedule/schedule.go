// Package schedule runs periodic background jobs from cron expressions,
// such as batch re-verification sweeps over a tool catalogue.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is a periodic background task.
type Job interface {
	// Name uniquely identifies the job in logs and for deduplication.
	Name() string

	// Schedule returns a 5-field cron expression (e.g. "*/10 * * * *").
	Schedule() string

	// Run executes one tick. Implementations should honour ctx
	// cancellation.
	Run(ctx context.Context) error
}

// FuncJob adapts a function into a Job.
type FuncJob struct {
	JobName string
	Spec    string
	Fn      func(ctx context.Context) error
}

var _ Job = (*FuncJob)(nil)

func (j *FuncJob) Name() string     { return j.JobName }
func (j *FuncJob) Schedule() string { return j.Spec }

func (j *FuncJob) Run(ctx context.Context) error { return j.Fn(ctx) }

// entry pairs a job with the mutex that keeps its ticks from overlapping.
type entry struct {
	job     Job
	running sync.Mutex
}

// Scheduler executes registered jobs on their cron schedules. A tick that
// fires while the previous one is still running is skipped, not queued.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries []*entry
	names   map[string]struct{}
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New creates a scheduler. A nil logger falls back to slog.Default().
// Jobs must be registered before Start.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:  make(map[string]struct{}),
		logger: logger,
	}
}

// Register adds a job. Job names must be unique.
func (s *Scheduler) Register(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("schedule: duplicate job name %q", name)
	}
	s.names[name] = struct{}{}
	s.entries = append(s.entries, &entry{job: j})
	return nil
}

// Start begins executing registered jobs. It fails if any job carries an
// invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New()

	for _, e := range s.entries {
		if _, err := s.cron.AddFunc(e.job.Schedule(), s.tick(ctx, e)); err != nil {
			cancel()
			return fmt.Errorf("schedule: invalid schedule for job %q: %w", e.job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("schedule: scheduler started", "jobs", len(s.entries))
	return nil
}

func (s *Scheduler) tick(ctx context.Context, e *entry) func() {
	return func() {
		// TryLock is atomic, so an overlapping tick is skipped without a
		// check-then-acquire race.
		if !e.running.TryLock() {
			s.logger.Warn("schedule: job still running, skipping tick", "job", e.job.Name())
			return
		}
		defer e.running.Unlock()

		s.logger.Debug("schedule: job started", "job", e.job.Name())
		if err := e.job.Run(ctx); err != nil {
			s.logger.Error("schedule: job failed", "job", e.job.Name(), "error", err)
			return
		}
		s.logger.Debug("schedule: job completed", "job", e.job.Name())
	}
}

// Stop shuts the scheduler down, waiting for in-flight ticks.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("schedule: scheduler stopped")
	}
	return nil
}
