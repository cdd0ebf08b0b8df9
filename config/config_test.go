package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"home-hub/config"
)

func TestLoad_ExpandsEnvAndDefaults(t *testing.T) {
	t.Setenv("HUB_MQTT_PASSWORD", "s3cret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
mqtt:
  broker: tcp://broker.local:1883
  username: hub
  password: ${HUB_MQTT_PASSWORD}
  qos: 1
storage:
  backend: sqlite
timing:
  motion_timeout: 2m
  mode_delay: 250ms
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	if cfg.MQTT.Password != "s3cret" {
		t.Errorf("password: got %q", cfg.MQTT.Password)
	}
	if cfg.MQTT.QoS != 1 || cfg.MQTT.Broker != "tcp://broker.local:1883" {
		t.Errorf("mqtt: %+v", cfg.MQTT)
	}
	if cfg.MQTT.Topics.Control != "home/control" || cfg.MQTT.Topics.VoiceAudio != "home/voice/audio/" {
		t.Errorf("default topics: %+v", cfg.MQTT.Topics)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.SQLitePath == "" {
		t.Errorf("storage: %+v", cfg.Storage)
	}
	if cfg.Timing.MotionTimeout != 2*time.Minute || cfg.Timing.ModeDelay != 250*time.Millisecond {
		t.Errorf("timing: %+v", cfg.Timing)
	}
	if cfg.Timing.AudioSettle != 3500*time.Millisecond {
		t.Errorf("audio settle default: got %v", cfg.Timing.AudioSettle)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Gain != 4.0 || cfg.Audio.BrowserGain != 3.0 {
		t.Errorf("audio defaults: %+v", cfg.Audio)
	}
	if cfg.Transcriber.Backend != "vosk" {
		t.Errorf("transcriber backend: got %q", cfg.Transcriber.Backend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log: %+v", cfg.Log)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"transcriber", "transcriber:\n  backend: deepspeech\n", "transcriber.backend"},
		{"storage", "storage:\n  backend: redis\n", "storage.backend"},
		{"audio source", "audio:\n  source: bluetooth\n", "audio.source"},
		{"qos", "mqtt:\n  qos: 3\n", "mqtt.qos"},
		{"sample rate", "audio:\n  sample_rate: -16000\n", "audio.sample_rate"},
		{"frame size", "audio:\n  frame_ms: -30\n", "audio.frame_ms"},
		{"min utterance", "audio:\n  min_utterance_ms: -1\n", "audio.min_utterance_ms"},
		{"whisper key", "transcriber:\n  backend: whisper\n", "api_key"},
		{"yaml", "mqtt: [", "parsing config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error: got %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
