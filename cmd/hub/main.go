package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"home-hub/config"
	"home-hub/internal/infra/mqtt"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	logLevel := pflag.String("log-level", "", "override log.level from the config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := mqtt.NewBus(mqtt.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      byte(cfg.MQTT.QoS),
		Topics:   topics(cfg.MQTT.Topics),
	}, logger)

	hub, err := newApp(ctx, cfg, bus, logger)
	if err != nil {
		logger.Error("starting home hub", "error", err)
		os.Exit(1)
	}

	logger.Info("starting home hub",
		"broker", cfg.MQTT.Broker,
		"transcriber", cfg.Transcriber.Backend,
		"storage", cfg.Storage.Backend,
		"http", cfg.HTTP.Addr,
	)

	if err := hub.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("home hub error", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
