package application

import (
	"context"
	"log/slog"

	"home-hub/internal/domain"
)

// Notifier delivers a short message to the operator outside the hub.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// FeedbackForwarder relays voice feedback events to a Notifier, e.g. push
// notifications to the operator's phone.
type FeedbackForwarder struct {
	events   *Broadcaster
	notifier Notifier
	logger   *slog.Logger
}

func NewFeedbackForwarder(events *Broadcaster, notifier Notifier, logger *slog.Logger) *FeedbackForwarder {
	return &FeedbackForwarder{events: events, notifier: notifier, logger: logger}
}

func (f *FeedbackForwarder) Run(ctx context.Context) error {
	sub := f.events.Subscribe()
	defer func() { f.events.Unsubscribe(sub) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-sub.C:
			if !ok {
				f.logger.Warn("feedback subscription evicted, resubscribing")
				sub = f.events.Subscribe()
				continue
			}
			if event.Type != domain.EventVoiceFeedback {
				continue
			}
			if err := f.notifier.Notify(ctx, event.Text); err != nil {
				f.logger.Error("notifying feedback", "error", err)
			}
		}
	}
}
