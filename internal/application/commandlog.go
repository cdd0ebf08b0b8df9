package application

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"home-hub/internal/domain"
)

const commandLogLimit = 100

// CommandLog keeps the most recent operator-facing log lines and mirrors each
// one to slog and to live subscribers as a log event.
type CommandLog struct {
	mu      sync.Mutex
	entries []string
	events  *Broadcaster
	clock   Clock
	logger  *slog.Logger
}

func NewCommandLog(events *Broadcaster, clock Clock, logger *slog.Logger) *CommandLog {
	return &CommandLog{events: events, clock: clock, logger: logger}
}

func (l *CommandLog) Recordf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	entry := l.clock.Now().Format("2006-01-02 15:04:05") + " - " + msg

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > commandLogLimit {
		l.entries = l.entries[len(l.entries)-commandLogLimit:]
	}
	l.mu.Unlock()

	l.logger.Info(msg)
	l.events.Emit(domain.LogEntry(entry))
}

// Entries returns the retained lines, newest first.
func (l *CommandLog) Entries() []string {
	l.mu.Lock()
	out := slices.Clone(l.entries)
	l.mu.Unlock()

	slices.Reverse(out)
	return out
}
