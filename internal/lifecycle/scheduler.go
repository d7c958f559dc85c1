package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	cron "gopkg.in/robfig/cron.v2"
)

// Sweeper runs one named sweep to completion
type Sweeper interface {
	RunSweep(ctx context.Context, sweep string) (*SweepReport, error)
}

type job struct {
	sweep    string
	spec     string
	schedule cron.Schedule
}

// Scheduler fires sweeps on their cron schedules, measured on an injectable clock
type Scheduler struct {
	sweeper Sweeper
	clock   clock.Clock
	loc     *time.Location
	jobs    []job
	log     *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler parses one cron.v2 spec (seconds first) per sweep name.
// Specs are evaluated in loc unless they carry their own TZ= prefix.
func NewScheduler(sweeper Sweeper, clk clock.Clock, loc *time.Location, specs map[string]string, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{sweeper: sweeper, clock: clk, loc: loc, log: log}
	for _, sweep := range []string{SweepExpire, SweepWarn} {
		spec, ok := specs[sweep]
		if !ok || spec == "" {
			continue
		}
		schedule, err := cron.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", sweep, spec, err)
		}
		if ss, ok := schedule.(*cron.SpecSchedule); ok && !strings.HasPrefix(spec, "TZ=") {
			ss.Location = loc
		}
		s.jobs = append(s.jobs, job{sweep: sweep, spec: spec, schedule: schedule})
	}
	return s, nil
}

// Next returns when the named sweep fires after t, and false if it is not scheduled
func (s *Scheduler) Next(sweep string, t time.Time) (time.Time, bool) {
	for _, j := range s.jobs {
		if j.sweep == sweep {
			return j.schedule.Next(t.In(s.loc)), true
		}
	}
	return time.Time{}, false
}

// Start launches one goroutine per scheduled sweep
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
		s.log.Info("Sweep scheduled", zap.String("sweep", j.sweep), zap.String("schedule", j.spec))
	}
}

// Stop stops scheduling and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()

	for {
		now := s.clock.Now().In(s.loc)
		next := j.schedule.Next(now)
		timer := s.clock.Timer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		report, err := s.sweeper.RunSweep(ctx, j.sweep)
		if err != nil {
			s.log.Error("Sweep failed", zap.String("sweep", j.sweep), zap.Error(err))
			continue
		}
		s.log.Debug("Sweep run complete",
			zap.String("sweep", j.sweep),
			zap.Int("changed", report.Changed),
			zap.Bool("lock_held", report.LockHeld))
	}
}
