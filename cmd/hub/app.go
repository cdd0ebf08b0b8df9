package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"home-hub/config"
	"home-hub/internal/application"
	"home-hub/internal/infra/audio"
	"home-hub/internal/infra/httpapi"
	"home-hub/internal/infra/mqtt"
	"home-hub/internal/infra/openai"
	"home-hub/internal/infra/pushover"
	"home-hub/internal/infra/storage"
	"home-hub/internal/infra/vad"
	"home-hub/internal/infra/vosk"
	"home-hub/internal/metrics"
)

// deviceBus is the device transport: it publishes commands and delivers
// inbound messages to the hub once connected.
type deviceBus interface {
	application.DeviceBus
	Connect(ctx context.Context, handler mqtt.MessageHandler) error
	Close()
}

type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store     application.DocumentStore
	closers   []io.Closer
	bus       deviceBus
	hub       *application.Hub
	queue     *application.UtteranceQueue
	scheduler *application.Scheduler
	watchdog  *application.MotionWatchdog
	forwarder *application.FeedbackForwarder
	server    *httpapi.Server
	source    application.AudioSource
	room      string
}

func newApp(ctx context.Context, cfg *config.Config, bus deviceBus, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, bus: bus}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if err := a.openStore(); err != nil {
		return nil, err
	}

	state := application.NewStateStore(a.store)
	if err := state.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("loading device state: %w", err)
	}
	modes := application.NewModeRepository(a.store)
	clock := application.SystemClock()

	discovery := application.NewDiscovery(a.store, clock)
	if err := discovery.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("loading device assignments: %w", err)
	}

	events := application.NewBroadcaster(application.SubscriberMailbox, m, logger)
	cmdLog := application.NewCommandLog(events, clock, logger)

	timing := application.Timing{
		ModeDelay:   cfg.Timing.ModeDelay,
		ActionDelay: cfg.Timing.ActionDelay,
		AudioSettle: cfg.Timing.AudioSettle,
	}
	exec := application.NewExecutor(state, bus, events, cmdLog, clock, timing, m, logger)

	pipeline := application.NewVoicePipeline(
		state, modes, application.NewInterpreter(), newTranscriber(cfg.Transcriber, logger),
		exec, cmdLog, cfg.Audio.SampleRate, m, logger,
	)

	a.queue = application.NewUtteranceQueue(ctx, logger)
	a.watchdog = application.NewMotionWatchdog(exec, clock, cfg.Timing.MotionTimeout, cfg.Timing.Tick, logger)
	a.scheduler = application.NewScheduler(modes, exec, clock, cfg.Timing.Tick, logger)

	a.hub = application.NewHub(
		application.HubConfig{
			Topics: topics(cfg.MQTT.Topics),
			Segmenter: application.SegmenterConfig{
				SampleRate:    cfg.Audio.SampleRate,
				Gain:          cfg.Audio.Gain,
				FrameDuration: time.Duration(cfg.Audio.FrameMS) * time.Millisecond,
				MinUtterance:  time.Duration(cfg.Audio.MinUtteranceMS) * time.Millisecond,
			},
			BrowserGain: cfg.Audio.BrowserGain,
		},
		state, exec, pipeline, a.queue, a.watchdog, discovery,
		vad.NewEnergyDetector(cfg.Audio.EnergyThreshold), cmdLog, m, logger,
	)

	a.server = httpapi.NewServer(httpapi.Config{
		Addr:       cfg.HTTP.Addr,
		AuthToken:  cfg.HTTP.AuthToken,
		SampleRate: cfg.Audio.SampleRate,
		RateLimit:  cfg.HTTP.RateLimit,
	}, a.hub, events, reg, logger)

	if cfg.Pushover.Enabled {
		notifier := pushover.NewClient(pushover.Config{Token: cfg.Pushover.Token, UserKey: cfg.Pushover.UserKey})
		a.forwarder = application.NewFeedbackForwarder(events, notifier, logger)
	}

	if cfg.Audio.Source != "" {
		room, err := a.hub.ResolveRoom(cfg.Audio.Room)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("resolving audio.room: %w", err)
		}
		a.room = room
		a.source = newAudioSource(cfg.Audio, logger)
	}

	return a, nil
}

func (a *app) openStore() error {
	switch a.cfg.Storage.Backend {
	case "sqlite":
		db, err := storage.NewSQLiteStore(a.cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		a.store = db
		a.closers = append(a.closers, db)
	default:
		files, err := storage.NewFileStore(a.cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("opening file store: %w", err)
		}
		a.store = files
	}
	return nil
}

// run connects the bus, starts the operator API and blocks running the
// background loops until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	defer a.close()

	if err := a.bus.Connect(ctx, a.hub); err != nil {
		return err
	}
	if err := a.server.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.scheduler.Run(gctx) })
	g.Go(func() error { return a.watchdog.Run(gctx) })
	if a.forwarder != nil {
		g.Go(func() error { return a.forwarder.Run(gctx) })
	}
	if a.source != nil {
		g.Go(func() error {
			err := a.hub.Listen(gctx, a.room, a.source)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("local audio stopped", "source", a.source.Name(), "room", a.room, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) close() {
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			a.logger.Warn("stopping operator API", "error", err)
		}
	}
	if a.queue != nil {
		a.queue.Close()
	}
	a.bus.Close()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing store", "error", err)
		}
	}
	a.closers = nil
}

func newTranscriber(cfg config.TranscriberConfig, logger *slog.Logger) application.Transcriber {
	switch cfg.Backend {
	case "whisper":
		return openai.NewWhisperClient(openai.WhisperConfig{
			APIKey:   cfg.OpenAI.APIKey,
			Model:    cfg.OpenAI.Model,
			Language: cfg.OpenAI.Language,
			BaseURL:  cfg.OpenAI.BaseURL,
		}, logger)
	case "vosk":
		return vosk.NewClient(cfg.VoskURL, cfg.Timeout, logger)
	default:
		return &application.NoopTranscriber{}
	}
}

func newAudioSource(cfg config.AudioConfig, logger *slog.Logger) application.AudioSource {
	if cfg.Source == "microphone" {
		return audio.NewMicrophoneSource(cfg.SampleRate, logger)
	}
	return audio.NewFileSource(cfg.FileDir, cfg.SampleRate, logger)
}

func topics(cfg config.TopicsConfig) application.Topics {
	return application.Topics{
		Control:            cfg.Control,
		Status:             cfg.Status,
		Motion:             cfg.Motion,
		VoiceAudioPrefix:   cfg.VoiceAudio,
		VoiceCommandPrefix: cfg.VoiceCommand,
		Discovery:          cfg.Discovery,
	}
}
