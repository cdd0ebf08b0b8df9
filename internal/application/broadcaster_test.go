package application_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"home-hub/internal/application"
	"home-hub/internal/domain"
	"home-hub/internal/metrics"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := application.NewBroadcaster(application.SubscriberMailbox, nil, testLogger())
	first := b.Subscribe()
	second := b.Subscribe()

	b.Emit(domain.VoiceFeedback("hello"))

	for i, sub := range []*application.Subscription{first, second} {
		got := drain(sub)
		if len(got) != 1 || got[0].Text != "hello" {
			t.Errorf("subscriber %d: got %+v", i, got)
		}
	}
}

func TestBroadcaster_EvictsFullMailbox(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	b := application.NewBroadcaster(2, m, testLogger())
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < 3; i++ {
		b.Emit(domain.LogEntry(fmt.Sprintf("line %d", i)))
		drain(fast)
	}

	if got := b.Subscribers(); got != 1 {
		t.Errorf("subscribers: got %d, want 1", got)
	}
	if got := len(drain(slow)); got != 2 {
		t.Errorf("slow subscriber kept %d events, want 2", got)
	}
	if _, ok := <-slow.C; ok {
		t.Error("evicted subscriber channel should be closed")
	}
	if got := testutil.ToFloat64(m.Evictions); got != 1 {
		t.Errorf("evictions: got %v, want 1", got)
	}

	b.Unsubscribe(slow)
	b.Unsubscribe(fast)
	b.Unsubscribe(fast)
	if got := b.Subscribers(); got != 0 {
		t.Errorf("subscribers after unsubscribe: got %d", got)
	}
}

func TestBroadcaster_EmitWithoutSubscribers(t *testing.T) {
	b := application.NewBroadcaster(0, nil, testLogger())
	b.Emit(domain.LogEntry("nobody listening"))
}

func TestCommandLog_Entries(t *testing.T) {
	f := newFixture(t, nil)
	sub := f.events.Subscribe()

	for i := 0; i < 105; i++ {
		f.log.Recordf("entry %d", i)
	}

	entries := f.log.Entries()
	if len(entries) != 100 {
		t.Fatalf("entries: got %d, want 100", len(entries))
	}
	if !strings.HasSuffix(entries[0], " - entry 104") {
		t.Errorf("newest first: got %q", entries[0])
	}
	if !strings.HasSuffix(entries[99], " - entry 5") {
		t.Errorf("oldest kept: got %q", entries[99])
	}
	if !strings.HasPrefix(entries[0], "2024-06-07 20:00:00 - ") {
		t.Errorf("timestamp format: got %q", entries[0])
	}

	logs := eventsOfType(drain(sub), domain.EventLog)
	if len(logs) != 100 {
		t.Errorf("log events buffered: got %d, want 100", len(logs))
	}
}
