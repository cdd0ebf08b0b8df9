package application

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler activates modes whose start time and weekday match the current
// minute. Each wall-clock minute is processed at most once; missed minutes
// are not caught up.
type Scheduler struct {
	modes      *ModeRepository
	exec       *Executor
	clock      Clock
	tick       time.Duration
	logger     *slog.Logger
	lastMinute time.Time
}

func NewScheduler(modes *ModeRepository, exec *Executor, clock Clock, tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		modes:  modes,
		exec:   exec,
		clock:  clock,
		tick:   tick,
		logger: logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "tick", s.tick)
	s.Tick(ctx, s.clock.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.tick):
			s.Tick(ctx, s.clock.Now())
		}
	}
}

// Tick runs the modes scheduled for now's minute unless that minute was
// already handled, and returns the names of the modes it ran.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []string {
	minute := now.Truncate(time.Minute)
	if minute.Equal(s.lastMinute) {
		return nil
	}
	s.lastMinute = minute

	table, err := s.modes.Load(ctx)
	if err != nil {
		s.logger.Error("loading modes for schedule", "error", err)
		return nil
	}

	var ran []string
	for _, mode := range table {
		if !mode.ScheduledAt(now) {
			continue
		}
		s.logger.Info("scheduled mode due", "mode", mode.Name, "time", mode.StartTime)
		if err := s.exec.ExecuteMode(ctx, mode, false); err != nil {
			s.logger.Error("running scheduled mode", "mode", mode.Name, "error", err)
		}
		ran = append(ran, mode.Name)
	}
	return ran
}
