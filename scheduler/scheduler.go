package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	coreruntime "github.com/Mora-na/mimotions/runtime"
)

// Job is the work fired on each tick.
type Job func(ctx context.Context) error

// Scheduler fires one Job on a Schedule. A tick that arrives while the
// previous run is still going is skipped.
type Scheduler struct {
	expr     string
	schedule Schedule
	job      Job
	clock    clockwork.Clock
	loc      *time.Location
	logger   coreruntime.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	fired   atomic.Int64
	skipped atomic.Int64
}

// New parses expr and returns a Scheduler for job. Times are evaluated in
// loc.
func New(expr string, loc *time.Location, job Job, clock clockwork.Clock, logger coreruntime.Logger) (*Scheduler, error) {
	sched, err := Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = coreruntime.NopLogger{}
	}
	return &Scheduler{expr: expr, schedule: sched, job: job, clock: clock, loc: loc, logger: logger}, nil
}

// Fired returns how many runs have been started.
func (s *Scheduler) Fired() int64 { return s.fired.Load() }

// Skipped returns how many ticks were skipped because a run was in progress.
func (s *Scheduler) Skipped() int64 { return s.skipped.Load() }

// Run blocks until ctx is done, then waits for an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.wg.Wait()

	for {
		now := s.clock.Now().In(s.loc)
		next := s.schedule.Next(now)
		if next.IsZero() {
			return fmt.Errorf("schedule %q never fires", s.expr)
		}
		s.logger.Info("next run scheduled", map[string]any{
			"cron": s.expr, "at": next.Format(time.DateTime),
		})

		timer := s.clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopping", nil)
			return nil
		case <-timer.Chan():
		}
		s.fire(ctx, next)
	}
}

func (s *Scheduler) fire(ctx context.Context, at time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Warn("run skipped (previous run still in progress)", map[string]any{
			"at": at.Format(time.DateTime),
		})
		return
	}
	s.fired.Add(1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		start := s.clock.Now()
		err := s.job(ctx)
		fields := map[string]any{"duration": s.clock.Since(start).String()}
		if err != nil {
			fields["error"] = err.Error()
			s.logger.Error("scheduled run failed", fields)
			return
		}
		s.logger.Info("scheduled run completed", fields)
	}()
}
