package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"home-hub/internal/domain"
	"home-hub/internal/metrics"
)

var (
	ErrUnknownRoom = errors.New("unknown room")
	ErrQueueFull   = errors.New("room is busy with another utterance")
)

type Topics struct {
	Control            string
	Status             string
	Motion             string
	VoiceAudioPrefix   string
	VoiceCommandPrefix string
	Discovery          string
}

func DefaultTopics() Topics {
	return Topics{
		Control:            "home/control",
		Status:             "home/status",
		Motion:             "home/motion_trigger",
		VoiceAudioPrefix:   "home/voice/audio/",
		VoiceCommandPrefix: "home/voice/command/",
		Discovery:          "home/device_discovery",
	}
}

type HubConfig struct {
	Topics      Topics
	Segmenter   SegmenterConfig
	BrowserGain float64
}

// Hub routes inbound bus messages and operator requests to the components
// that handle them, and owns the per-room listening sessions.
type Hub struct {
	mu         sync.Mutex
	segmenters map[string]*Segmenter

	cfg       HubConfig
	state     *StateStore
	exec      *Executor
	pipeline  *VoicePipeline
	queue     *UtteranceQueue
	watchdog  *MotionWatchdog
	discovery *Discovery
	detector  SpeechDetector
	log       *CommandLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewHub(
	cfg HubConfig,
	state *StateStore,
	exec *Executor,
	pipeline *VoicePipeline,
	queue *UtteranceQueue,
	watchdog *MotionWatchdog,
	discovery *Discovery,
	detector SpeechDetector,
	log *CommandLog,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Hub {
	return &Hub{
		segmenters: make(map[string]*Segmenter),
		cfg:        cfg,
		state:      state,
		exec:       exec,
		pipeline:   pipeline,
		queue:      queue,
		watchdog:   watchdog,
		discovery:  discovery,
		detector:   detector,
		log:        log,
		metrics:    m,
		logger:     logger,
	}
}

// HandleMessage dispatches one bus message by topic. Malformed payloads are
// logged and dropped.
func (h *Hub) HandleMessage(ctx context.Context, topic string, payload []byte) {
	t := h.cfg.Topics
	if strings.HasPrefix(topic, t.VoiceAudioPrefix) {
		h.FeedAudio(roomFromTopic(topic), payload)
		return
	}

	if !utf8.Valid(payload) {
		h.logger.Debug("ignoring non-text payload", "topic", topic)
		return
	}
	text := strings.TrimSpace(string(payload))

	switch {
	case topic == t.Status:
		h.handleStatus(ctx, text)
	case strings.HasPrefix(topic, t.VoiceCommandPrefix):
		room := roomFromTopic(topic)
		switch text {
		case "START":
			h.StartListening(room)
		case "END":
			h.StopListening(room)
		default:
			h.logger.Debug("unknown voice command", "room", room, "payload", text)
		}
	case topic == t.Motion:
		if text != "" {
			h.watchdog.Touch(text)
		}
	case topic == t.Discovery:
		h.handleDiscovery(text)
	default:
		h.logger.Debug("unhandled topic", "topic", topic)
	}
}

func (h *Hub) handleStatus(ctx context.Context, payload string) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		h.logger.Debug("malformed status payload", "payload", payload)
		return
	}
	status, ok := domain.ParseStatus(parts[2])
	if !ok {
		h.logger.Debug("invalid status in echo", "payload", payload)
		return
	}
	h.exec.ApplyEcho(ctx, parts[0], parts[1], status)
}

func (h *Hub) handleDiscovery(payload string) {
	var announce struct {
		DeviceID string `json:"device_id"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &announce); err != nil || announce.DeviceID == "" {
		h.logger.Debug("malformed discovery payload", "payload", payload)
		return
	}
	if h.discovery.Observe(announce.DeviceID, announce.Type) {
		h.logger.Info("device discovered", "device_id", announce.DeviceID)
	}
}

// StartListening opens a fresh listening session for room, discarding any
// session already open.
func (h *Hub) StartListening(room string) {
	seg := NewSegmenter(room, h.cfg.Segmenter, h.detector, h.log, h.dispatch, h.logger)

	h.mu.Lock()
	h.segmenters[room] = seg
	h.mu.Unlock()
	h.logger.Info("listening started", "room", room)
}

// StopListening drops the room's session and any partial utterance in it.
// An utterance already dispatched keeps running.
func (h *Hub) StopListening(room string) {
	h.mu.Lock()
	_, ok := h.segmenters[room]
	delete(h.segmenters, room)
	h.mu.Unlock()
	if ok {
		h.logger.Info("listening stopped", "room", room)
	}
}

func (h *Hub) Listening(room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.segmenters[room]
	return ok
}

func (h *Hub) FeedAudio(room string, chunk []byte) {
	h.mu.Lock()
	seg := h.segmenters[room]
	h.mu.Unlock()
	if seg != nil {
		seg.Feed(chunk)
	}
}

// Listen streams a local audio source into room's segmenter until ctx is
// done or the source fails.
func (h *Hub) Listen(ctx context.Context, room string, src AudioSource) error {
	h.logger.Info("starting audio source", "source", src.Name(), "room", room)
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer src.Stop()

	h.StartListening(room)
	defer h.StopListening(room)

	for {
		chunk, err := src.NextChunk(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading audio: %w", err)
		}
		h.FeedAudio(room, chunk)
	}
}

func (h *Hub) dispatch(room string, utterance []byte) {
	ok := h.queue.Submit(room, func(ctx context.Context) {
		h.pipeline.HandleUtterance(ctx, room, utterance)
	})
	if !ok {
		h.logger.Warn("dropping utterance, room busy", "room", room)
		h.metrics.Utterance("dropped")
	}
}

// ResolveRoom maps an empty room to the first known room and rejects
// unknown ones.
func (h *Hub) ResolveRoom(room string) (string, error) {
	if room == "" {
		rooms := h.state.Rooms()
		if len(rooms) == 0 {
			return "", ErrUnknownRoom
		}
		return rooms[0], nil
	}
	if !h.state.HasRoom(room) {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	return room, nil
}

// SubmitUtterance queues PCM recorded outside the bus, such as a browser
// upload. It skips segmentation and applies the browser gain.
func (h *Hub) SubmitUtterance(room string, pcm []byte) (string, error) {
	room, err := h.ResolveRoom(room)
	if err != nil {
		return "", err
	}

	if boosted, err := ApplyGain(pcm, h.cfg.BrowserGain); err == nil {
		pcm = boosted
	} else {
		h.logger.Debug("browser gain skipped", "room", room, "error", err)
	}

	ok := h.queue.Submit(room, func(ctx context.Context) {
		h.pipeline.HandleUtterance(ctx, room, pcm)
	})
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrQueueFull, room)
	}
	return room, nil
}

func (h *Hub) SubmitText(room, text string) (string, error) {
	room, err := h.ResolveRoom(room)
	if err != nil {
		return "", err
	}

	ok := h.queue.Submit(room, func(ctx context.Context) {
		h.pipeline.HandleText(ctx, room, text)
	})
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrQueueFull, room)
	}
	return room, nil
}

func (h *Hub) Control(ctx context.Context, req ControlRequest) error {
	return h.exec.Control(ctx, req)
}

func (h *Hub) Snapshot() domain.Home {
	return h.state.Snapshot()
}

func (h *Hub) RecentLog() []string {
	return h.log.Entries()
}

func (h *Hub) UnassignedDevices() []domain.DiscoveredDevice {
	return h.discovery.Unassigned()
}

func (h *Hub) AssignDevice(ctx context.Context, deviceID, room string) error {
	if !h.state.HasRoom(room) {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, room)
	}
	return h.discovery.Assign(ctx, deviceID, room)
}

func roomFromTopic(topic string) string {
	return strings.TrimSpace(topic[strings.LastIndex(topic, "/")+1:])
}
