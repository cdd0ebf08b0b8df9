package application

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// MotionWatchdog turns off motion-controlled relays in rooms that saw no
// motion for the timeout. A room stops being tracked once it fires and is
// only tracked again after the next motion trigger.
type MotionWatchdog struct {
	mu      sync.Mutex
	last    map[string]time.Time
	exec    *Executor
	clock   Clock
	timeout time.Duration
	tick    time.Duration
	logger  *slog.Logger
}

func NewMotionWatchdog(exec *Executor, clock Clock, timeout, tick time.Duration, logger *slog.Logger) *MotionWatchdog {
	if tick <= 0 {
		tick = time.Second
	}
	return &MotionWatchdog{
		last:    make(map[string]time.Time),
		exec:    exec,
		clock:   clock,
		timeout: timeout,
		tick:    tick,
		logger:  logger,
	}
}

func (w *MotionWatchdog) Touch(room string) {
	w.mu.Lock()
	w.last[room] = w.clock.Now()
	w.mu.Unlock()
}

func (w *MotionWatchdog) Tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	rooms := make([]string, 0, len(w.last))
	for room := range w.last {
		rooms = append(rooms, room)
	}
	slices.Sort(rooms)
	return rooms
}

func (w *MotionWatchdog) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(w.tick):
			w.Tick(ctx, w.clock.Now())
		}
	}
}

// Tick fires every room idle for longer than the timeout and returns them.
func (w *MotionWatchdog) Tick(ctx context.Context, now time.Time) []string {
	w.mu.Lock()
	var expired []string
	for room, seen := range w.last {
		if now.Sub(seen) > w.timeout {
			expired = append(expired, room)
			delete(w.last, room)
		}
	}
	w.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}
	slices.Sort(expired)

	if err := w.exec.MotionTimeout(ctx, expired, w.timeout); err != nil {
		w.logger.Error("motion timeout", "rooms", expired, "error", err)
	}
	return expired
}
