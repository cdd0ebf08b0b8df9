package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"home-hub/internal/domain"
	"home-hub/internal/metrics"
)

var ErrUnknownRelay = errors.New("unknown room or relay")

type Timing struct {
	ModeDelay   time.Duration
	ActionDelay time.Duration
	AudioSettle time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		ModeDelay:   100 * time.Millisecond,
		ActionDelay: 50 * time.Millisecond,
		AudioSettle: 3500 * time.Millisecond,
	}
}

// ControlRequest is a manual change to one relay. Nil fields are left alone.
type ControlRequest struct {
	Room          string
	Relay         string
	Action        *domain.Status
	MotionControl *bool
}

// Executor is the only writer of relay state. Every read-compare-mutate-
// publish-persist unit runs under one mutex, so the bus listener, scheduler,
// motion watchdog and voice workers never interleave inside a unit.
type Executor struct {
	mu      sync.Mutex
	state   *StateStore
	bus     DeviceBus
	events  *Broadcaster
	log     *CommandLog
	clock   Clock
	timing  Timing
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewExecutor(
	state *StateStore,
	bus DeviceBus,
	events *Broadcaster,
	log *CommandLog,
	clock Clock,
	timing Timing,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		state:   state,
		bus:     bus,
		events:  events,
		log:     log,
		clock:   clock,
		timing:  timing,
		metrics: m,
		logger:  logger,
	}
}

// ExecuteMode drives every relay named by mode to its target (OFF when
// deactivating), then starts the mode's audio cue and announces the result.
func (e *Executor) ExecuteMode(ctx context.Context, mode domain.Mode, deactivate bool) error {
	verb, kind := "Activating", "activate"
	if deactivate {
		verb, kind = "Deactivating", "deactivate"
	}
	e.log.Recordf("[MODE] %s '%s'...", verb, mode.Name)
	e.metrics.ModeRun(kind)

	switched, err := e.applyMode(ctx, mode, deactivate)
	if err != nil {
		return fmt.Errorf("applying mode %s: %w", mode.Name, err)
	}

	if !deactivate && mode.HasAudio() {
		if switched {
			e.log.Recordf("[MODE] Waiting for system voice...")
			if err := sleep(ctx, e.clock, e.timing.AudioSettle); err != nil {
				return err
			}
		}

		room, ok := mode.FirstRoom()
		if !ok {
			if rooms := e.state.Rooms(); len(rooms) > 0 {
				room, ok = rooms[0], true
			}
		}
		if ok {
			e.publish(ctx, fmt.Sprintf("%s:AUDIO:%d", room, *mode.AudioID))
			e.log.Recordf("[MODE] Playing Song #%d in %s", *mode.AudioID, room)
		}
	}

	feedback := fmt.Sprintf("Okay, switching to %s mode", mode.Name)
	if deactivate {
		feedback = fmt.Sprintf("Okay, %s mode deactivated", mode.Name)
	}
	e.events.Emit(domain.VoiceFeedback(feedback))
	return nil
}

func (e *Executor) applyMode(ctx context.Context, mode domain.Mode, deactivate bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switched := false
	for _, rt := range mode.Actions {
		if !e.state.HasRoom(rt.Room) {
			continue
		}
		for _, target := range rt.Relays {
			desired := target.Status
			if deactivate {
				desired = domain.StatusOff
			}

			relay, ok := e.state.Relay(rt.Room, target.Relay)
			if !ok || relay.Status == desired {
				continue
			}

			e.switchRelay(ctx, rt.Room, target.Relay, desired, "mode")
			switched = true

			if err := sleep(ctx, e.clock, e.timing.ModeDelay); err != nil {
				e.persist(ctx)
				return switched, err
			}
		}
	}

	if switched {
		e.persist(ctx)
	}
	return switched, nil
}

// ExecuteActions applies device actions in order, re-checking each relay
// against current state first, and returns how many were applied. The spoken
// feedback describes only the applied actions.
func (e *Executor) ExecuteActions(ctx context.Context, res domain.Resolution) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		applied []domain.DeviceAction
		err     error
	)
	for _, action := range res.Actions {
		relay, ok := e.state.Relay(action.Room, action.Relay)
		if !ok {
			continue
		}
		if relay.Status == action.Status {
			e.log.Recordf("[SKIPPED] %s is already %s", relay.Label, action.Status)
			continue
		}

		e.state.SetStatus(action.Room, action.Relay, action.Status)
		e.log.Recordf("[EXECUTE] %s -> %s", relay.Label, action.Status)
		e.publish(ctx, fmt.Sprintf("%s:%s:%s", action.Room, action.Relay, action.Status))
		e.events.Emit(domain.StatusUpdate(action.Room, action.Relay, action.Status))
		e.metrics.RelaySwitched("voice")
		applied = append(applied, action)

		if err = sleep(ctx, e.clock, e.timing.ActionDelay); err != nil {
			break
		}
	}

	if len(applied) > 0 {
		e.persist(ctx)
		e.events.Emit(domain.VoiceFeedback(feedbackFor(applied)))
	}
	return len(applied), err
}

// MotionTimeout forces every motion-controlled relay that is ON in rooms to
// OFF, persisting once for the whole pass.
func (e *Executor) MotionTimeout(ctx context.Context, rooms []string, idle time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	home := e.state.Snapshot()
	switched := false
	for _, id := range rooms {
		e.log.Recordf("[MOTION] No motion in '%s' for %ds.", id, int(idle.Seconds()))

		room, ok := home.Room(id)
		if !ok {
			continue
		}
		for _, relay := range room.Relays {
			if !relay.MotionControl || relay.Status != domain.StatusOn {
				continue
			}
			current, ok := e.state.Relay(id, relay.ID)
			if !ok || current.Status == domain.StatusOff {
				continue
			}

			e.switchRelay(ctx, id, relay.ID, domain.StatusOff, "motion")
			switched = true

			if err := sleep(ctx, e.clock, e.timing.ActionDelay); err != nil {
				e.persist(ctx)
				return err
			}
		}
	}

	if switched {
		e.persist(ctx)
	}
	return nil
}

// ApplyEcho records a status reported by a device. Only an actual change is
// stored, broadcast and persisted; nothing is published back to the bus.
func (e *Executor) ApplyEcho(ctx context.Context, room, relay string, status domain.Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.state.Relay(room, relay)
	if !ok || current.Status == status {
		return false
	}

	e.state.SetStatus(room, relay, status)
	e.events.Emit(domain.StatusUpdate(room, relay, status))
	e.metrics.RelaySwitched("echo")
	e.persist(ctx)
	return true
}

func (e *Executor) Control(ctx context.Context, req ControlRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.state.Relay(req.Room, req.Relay)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownRelay, req.Room, req.Relay)
	}

	changed := false
	if req.MotionControl != nil && *req.MotionControl != current.MotionControl {
		e.state.SetMotionControl(req.Room, req.Relay, *req.MotionControl)
		e.events.Emit(domain.MotionUpdate(req.Room, req.Relay, *req.MotionControl))
		changed = true
	}
	if req.Action != nil && *req.Action != current.Status {
		e.switchRelay(ctx, req.Room, req.Relay, *req.Action, "manual")
		changed = true
	}

	if changed {
		e.persist(ctx)
	}
	return nil
}

func (e *Executor) switchRelay(ctx context.Context, room, relay string, status domain.Status, source string) {
	e.state.SetStatus(room, relay, status)
	e.publish(ctx, fmt.Sprintf("%s:%s:%s", room, relay, status))
	e.events.Emit(domain.StatusUpdate(room, relay, status))
	e.metrics.RelaySwitched(source)
}

// publish failures are logged only. State is not rolled back.
func (e *Executor) publish(ctx context.Context, payload string) {
	if err := e.bus.Publish(ctx, payload); err != nil {
		e.logger.Error("publishing to device bus", "payload", payload, "error", err)
	}
}

func (e *Executor) persist(ctx context.Context) {
	if err := e.state.Persist(context.WithoutCancel(ctx)); err != nil {
		e.logger.Error("persisting device state", "error", err)
		e.log.Recordf("[STORE] saving %s failed: %v", DeviceDocument, err)
	}
}
