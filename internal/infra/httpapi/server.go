package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"home-hub/internal/application"
	"home-hub/internal/domain"
	"home-hub/internal/infra/audio"
)

const (
	maxAudioBody = 10 * 1024 * 1024
	maxTextBody  = 1024
	maxJSONBody  = 4096
)

// Hub is the slice of the application hub the operator API drives.
type Hub interface {
	SubmitUtterance(room string, pcm []byte) (string, error)
	SubmitText(room, text string) (string, error)
	Control(ctx context.Context, req application.ControlRequest) error
	Snapshot() domain.Home
	RecentLog() []string
	UnassignedDevices() []domain.DiscoveredDevice
	AssignDevice(ctx context.Context, deviceID, room string) error
}

type EventSource interface {
	Subscribe() *application.Subscription
	Unsubscribe(sub *application.Subscription)
	Subscribers() int
}

type Config struct {
	Addr       string
	AuthToken  string
	SampleRate int
	// RateLimit is the number of command requests allowed per client per
	// minute.
	RateLimit int
}

type Server struct {
	cfg         Config
	hub         Hub
	events      EventSource
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	running bool
}

// NewServer builds the operator API. A nil gatherer leaves /metrics
// unregistered.
func NewServer(cfg Config, hub Hub, events EventSource, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}
	s := &Server{
		cfg:         cfg,
		hub:         hub,
		events:      events,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(cfg.RateLimit, time.Minute),
	}

	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return s.authorize(s.rateLimiter.Middleware(h))
	}
	s.mux.HandleFunc("POST /audio", limited(s.handleAudio))
	s.mux.HandleFunc("POST /text", limited(s.handleText))
	s.mux.HandleFunc("POST /control", limited(s.handleControl))
	s.mux.HandleFunc("POST /devices/assign", limited(s.handleAssign))
	s.mux.HandleFunc("GET /state", s.authorize(s.handleState))
	s.mux.HandleFunc("GET /log", s.authorize(s.handleLog))
	s.mux.HandleFunc("GET /devices", s.authorize(s.handleDevices))
	s.mux.HandleFunc("GET /events", s.authorize(s.handleEvents))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}

	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		s.logger.Info("operator API starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.cfg.AuthToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.cfg.AuthToken {
			s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBody))
	if err != nil {
		s.logger.Error("reading audio body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	pcm, err := audio.DecodeWAV(data, s.cfg.SampleRate)
	if err != nil {
		s.logger.Warn("rejecting audio upload", "error", err)
		http.Error(w, "invalid WAV audio", http.StatusBadRequest)
		return
	}

	room, err := s.hub.SubmitUtterance(r.URL.Query().Get("room"), pcm)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("received audio via HTTP", "room", room, "bytes", len(pcm))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"status":"received","room":%q,"bytes":%d}`, room, len(pcm))
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTextBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return
	}

	room, err := s.hub.SubmitText(r.URL.Query().Get("room"), text)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("received text command via HTTP", "room", room, "text", text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received", "room": room, "text": text})
}

type controlBody struct {
	Room          string  `json:"room"`
	Relay         string  `json:"relay"`
	Action        *string `json:"action"`
	MotionControl *bool   `json:"motion_control"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var body controlBody
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Room == "" || body.Relay == "" {
		http.Error(w, "room and relay are required", http.StatusBadRequest)
		return
	}

	req := application.ControlRequest{Room: body.Room, Relay: body.Relay, MotionControl: body.MotionControl}
	if body.Action != nil {
		status, ok := domain.ParseStatus(*body.Action)
		if !ok {
			http.Error(w, "action must be ON or OFF", http.StatusBadRequest)
			return
		}
		req.Action = &status
	}

	if err := s.hub.Control(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var body struct {
		DeviceID string `json:"device_id"`
		Room     string `json:"room"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.DeviceID == "" || body.Room == "" {
		http.Error(w, "device_id and room are required", http.StatusBadRequest)
		return
	}

	if err := s.hub.AssignDevice(r.Context(), body.DeviceID, body.Room); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned", "device_id": body.DeviceID, "room": body.Room})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Snapshot())
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	entries := s.hub.RecentLog()
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.hub.UnassignedDevices()
	if devices == nil {
		devices = []domain.DiscoveredDevice{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleEvents streams broadcaster events as Server-Sent Events until the
// client goes away or the subscription is evicted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clearing write deadline", "error", err)
	}

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Warn("streaming unsupported", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("encoding event", "type", event.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","running":%t,"rooms":%d,"subscribers":%d}`,
		running, len(s.hub.Snapshot().Rooms), s.events.Subscribers())
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrUnknownRoom):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, application.ErrUnknownRelay):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrQueueFull):
		http.Error(w, "queue full, try again", http.StatusServiceUnavailable)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
