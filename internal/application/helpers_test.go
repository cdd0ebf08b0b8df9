package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"home-hub/internal/application"
	"home-hub/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   map[string]int
	saveErr error
}

func newMockStore(docs map[string]string) *mockStore {
	s := &mockStore{docs: make(map[string][]byte), saves: make(map[string]int)}
	for k, v := range docs {
		s.docs[k] = []byte(v)
	}
	return s
}

func (s *mockStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, application.ErrDocumentNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (s *mockStore) Save(_ context.Context, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.docs[key] = append([]byte(nil), doc...)
	s.saves[key]++
	return nil
}

func (s *mockStore) saveCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

type mockBus struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (b *mockBus) Publish(_ context.Context, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	return b.err
}

func (b *mockBus) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.payloads...)
}

// stepClock never blocks: After advances the clock by d and fires at once.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newStepClock(now time.Time) *stepClock {
	return &stepClock{now: now}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *stepClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type mockTranscriber struct {
	mu         sync.Mutex
	text       string
	err        error
	vocabulary []string
	calls      int
}

func (m *mockTranscriber) Transcribe(_ context.Context, _ []byte, _ int, vocabulary []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.vocabulary = vocabulary
	return m.text, m.err
}

func (m *mockTranscriber) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// loudDetector treats any frame with a non-zero sample as speech.
type loudDetector struct {
	err error
}

func (d *loudDetector) IsSpeech(frame []byte, _ int) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	for _, b := range frame {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

const livingRoomDoc = `{
	"living_room": {
		"wake_word": "jarvis",
		"relay1": {"label": "Main Light", "status": "OFF", "motion_control": false},
		"relay2": {"label": "Fan", "status": "OFF", "motion_control": true},
		"relay3": {"label": "Television", "status": "ON", "motion_control": true}
	},
	"bedroom": {
		"relay1": {"label": "Lamp", "status": "OFF", "motion_control": false}
	}
}`

const partyModeDoc = `{
	"Party": {
		"start_time": "20:00",
		"days": ["Fri", "Sat"],
		"audio_id": 3,
		"actions": {
			"living_room": {"relay1": "ON", "relay2": "ON"},
			"bedroom": {"relay1": "OFF"}
		}
	}
}`

type fixture struct {
	docs   *mockStore
	bus    *mockBus
	clock  *stepClock
	events *application.Broadcaster
	log    *application.CommandLog
	state  *application.StateStore
	modes  *application.ModeRepository
	exec   *application.Executor
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()
	logger := testLogger()

	f := &fixture{
		docs:  newMockStore(docs),
		bus:   &mockBus{},
		clock: newStepClock(time.Date(2024, 6, 7, 20, 0, 0, 0, time.UTC)),
	}
	f.events = application.NewBroadcaster(application.SubscriberMailbox, nil, logger)
	f.log = application.NewCommandLog(f.events, f.clock, logger)
	f.state = application.NewStateStore(f.docs)
	if err := f.state.Load(context.Background()); err != nil {
		t.Fatalf("loading state: %v", err)
	}
	f.modes = application.NewModeRepository(f.docs)
	f.exec = application.NewExecutor(f.state, f.bus, f.events, f.log, f.clock, application.DefaultTiming(), nil, logger)
	return f
}

func (f *fixture) status(t *testing.T, room, relay string) domain.Status {
	t.Helper()
	r, ok := f.state.Relay(room, relay)
	if !ok {
		t.Fatalf("relay %s/%s not found", room, relay)
	}
	return r.Status
}

// drain returns every event currently buffered for sub.
func drain(sub *application.Subscription) []domain.Event {
	var out []domain.Event
	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventsOfType(events []domain.Event, typ domain.EventType) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

var errBusDown = errors.New("bus down")
