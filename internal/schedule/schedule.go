// package schedule runs the sync on a cron spec for the watch command
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/robfig/cron/v3"
)

// Job is a scheduled unit of work. Its error is logged, never retried.
type Job func(ctx context.Context) error

// Scheduler wraps a [cron.Cron] whose jobs share a base context and never overlap.
type Scheduler struct {
	cron    *cron.Cron
	logger  *log.Logger
	baseCtx context.Context
	manual  sync.WaitGroup
}

// New creates a scheduler. Jobs receive baseCtx, so canceling it aborts a run in progress.
func New(baseCtx context.Context, logger *log.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under a standard five-field spec or a descriptor such as "@every 6h".
func (s *Scheduler) Add(spec string, name string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		logger := shared.WithLogger(s.logger, "job", name)
		start := time.Now()
		logger.Info("scheduled run started")
		if err := job(s.baseCtx); err != nil {
			logger.Error("scheduled run failed", "error", err, "duration", time.Since(start).Round(time.Millisecond))
			return
		}
		logger.Info("scheduled run finished", "duration", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return 0, fmt.Errorf("%w: schedule %q: %v", shared.ErrInvalidConfig, spec, err)
	}
	return id, nil
}

// Next returns when the entry fires next, or the zero time for an unknown entry.
// Before the scheduler runs, it is computed from the current time.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}
	}
	if e.Next.IsZero() {
		return e.Schedule.Next(time.Now())
	}
	return e.Next
}

// Trigger runs the entry immediately through the same overlap guard.
// [Scheduler.Stop] waits for it like any scheduled run.
func (s *Scheduler) Trigger(id cron.EntryID) {
	e := s.cron.Entry(id)
	if !e.Valid() {
		return
	}
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		e.WrappedJob.Run()
	}()
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs, triggered ones included, to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.manual.Wait()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()
	<-ctx.Done()
	s.Stop()
}

// cronLogger adapts a charmbracelet logger to [cron.Logger].
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
