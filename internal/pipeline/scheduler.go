package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RunnerFunc is what the scheduler triggers.
type RunnerFunc interface {
	RunOnce(ctx context.Context) (Run, error)
}

// Scheduler triggers a run every hour at a fixed minute.
type Scheduler struct {
	runner     RunnerFunc
	minute     int
	loc        *time.Location
	runOnStart bool
	logger     *log.Logger

	lastHour time.Time
}

// NewScheduler constructs a Scheduler firing at minute past every hour in loc.
func NewScheduler(runner RunnerFunc, minute int, loc *time.Location, runOnStart bool, logger *log.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if minute < 0 || minute > 59 {
		return nil, fmt.Errorf("pipeline: invalid schedule minute %d", minute)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{runner: runner, minute: minute, loc: loc, runOnStart: runOnStart, logger: logger}, nil
}

// Start runs the scheduler loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	if s.runOnStart {
		s.runOnce(ctx)
	}
	s.logger.Printf("pipeline schedule: minute=%d next=%s", s.minute, s.Next(time.Now()).Format(time.RFC3339))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

// shouldRun fires once per wall clock hour, at the configured minute.
func (s *Scheduler) shouldRun(now time.Time) bool {
	local := now.In(s.loc)
	if local.Minute() != s.minute {
		return false
	}
	hour := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, s.loc)
	if hour.Equal(s.lastHour) {
		return false
	}
	s.lastHour = hour
	return true
}

// Next returns the first scheduled instant strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = next.Add(time.Hour)
	}
	return next
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Printf("pipeline schedule error: err=%v", err)
	}
}
