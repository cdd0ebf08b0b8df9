package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Audio       AudioConfig       `yaml:"audio"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Storage     StorageConfig     `yaml:"storage"`
	Timing      TimingConfig      `yaml:"timing"`
	HTTP        HTTPConfig        `yaml:"http"`
	Pushover    PushoverConfig    `yaml:"pushover"`
	Log         LogConfig         `yaml:"log"`
}

type MQTTConfig struct {
	Broker   string       `yaml:"broker"`
	ClientID string       `yaml:"client_id"`
	Username string       `yaml:"username"`
	Password string       `yaml:"password"`
	QoS      int          `yaml:"qos"`
	Topics   TopicsConfig `yaml:"topics"`
}

type TopicsConfig struct {
	Control      string `yaml:"control"`
	Status       string `yaml:"status"`
	Motion       string `yaml:"motion"`
	VoiceAudio   string `yaml:"voice_audio"`
	VoiceCommand string `yaml:"voice_command"`
	Discovery    string `yaml:"discovery"`
}

type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	Gain            float64 `yaml:"gain"`
	BrowserGain     float64 `yaml:"browser_gain"`
	FrameMS         int     `yaml:"frame_ms"`
	MinUtteranceMS  int     `yaml:"min_utterance_ms"`
	EnergyThreshold float64 `yaml:"energy_threshold"`
	// Source optionally feeds one room from a local device: "microphone"
	// or "file". Empty means bus and HTTP audio only.
	Source  string `yaml:"source"`
	Room    string `yaml:"room"`
	FileDir string `yaml:"file_dir"`
}

type TranscriberConfig struct {
	Backend string        `yaml:"backend"`
	VoskURL string        `yaml:"vosk_url"`
	Timeout time.Duration `yaml:"timeout"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	BaseURL  string `yaml:"base_url"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type TimingConfig struct {
	ModeDelay     time.Duration `yaml:"mode_delay"`
	ActionDelay   time.Duration `yaml:"action_delay"`
	AudioSettle   time.Duration `yaml:"audio_settle"`
	MotionTimeout time.Duration `yaml:"motion_timeout"`
	Tick          time.Duration `yaml:"tick"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
	RateLimit int    `yaml:"rate_limit"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML and fills defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "home-hub"
	}
	t := &c.MQTT.Topics
	if t.Control == "" {
		t.Control = "home/control"
	}
	if t.Status == "" {
		t.Status = "home/status"
	}
	if t.Motion == "" {
		t.Motion = "home/motion_trigger"
	}
	if t.VoiceAudio == "" {
		t.VoiceAudio = "home/voice/audio/"
	}
	if t.VoiceCommand == "" {
		t.VoiceCommand = "home/voice/command/"
	}
	if t.Discovery == "" {
		t.Discovery = "home/device_discovery"
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Gain == 0 {
		c.Audio.Gain = 4.0
	}
	if c.Audio.BrowserGain == 0 {
		c.Audio.BrowserGain = 3.0
	}
	if c.Audio.FrameMS == 0 {
		c.Audio.FrameMS = 30
	}
	if c.Audio.MinUtteranceMS == 0 {
		c.Audio.MinUtteranceMS = 100
	}
	if c.Audio.EnergyThreshold == 0 {
		c.Audio.EnergyThreshold = 500
	}
	if c.Audio.FileDir == "" {
		c.Audio.FileDir = "./audio"
	}

	if c.Transcriber.Backend == "" {
		c.Transcriber.Backend = "vosk"
	}
	if c.Transcriber.VoskURL == "" {
		c.Transcriber.VoskURL = "ws://localhost:2700"
	}
	if c.Transcriber.Timeout == 0 {
		c.Transcriber.Timeout = 30 * time.Second
	}
	if c.Transcriber.OpenAI.Model == "" {
		c.Transcriber.OpenAI.Model = "whisper-1"
	}
	if c.Transcriber.OpenAI.Language == "" {
		c.Transcriber.OpenAI.Language = "en"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./data/home-hub.db"
	}

	if c.Timing.ModeDelay == 0 {
		c.Timing.ModeDelay = 100 * time.Millisecond
	}
	if c.Timing.ActionDelay == 0 {
		c.Timing.ActionDelay = 50 * time.Millisecond
	}
	if c.Timing.AudioSettle == 0 {
		c.Timing.AudioSettle = 3500 * time.Millisecond
	}
	if c.Timing.MotionTimeout == 0 {
		c.Timing.MotionTimeout = 25 * time.Second
	}
	if c.Timing.Tick == 0 {
		c.Timing.Tick = time.Second
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 30
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Transcriber.Backend {
	case "vosk", "whisper", "none":
	default:
		return fmt.Errorf("transcriber.backend must be vosk, whisper or none, got %q", c.Transcriber.Backend)
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be file or sqlite, got %q", c.Storage.Backend)
	}
	switch c.Audio.Source {
	case "", "microphone", "file":
	default:
		return fmt.Errorf("audio.source must be microphone, file or empty, got %q", c.Audio.Source)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameMS <= 0 {
		return fmt.Errorf("audio.frame_ms must be positive, got %d", c.Audio.FrameMS)
	}
	if c.Audio.MinUtteranceMS <= 0 {
		return fmt.Errorf("audio.min_utterance_ms must be positive, got %d", c.Audio.MinUtteranceMS)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Transcriber.Backend == "whisper" && c.Transcriber.OpenAI.APIKey == "" {
		return fmt.Errorf("transcriber.openai.api_key is required for the whisper backend")
	}
	return nil
}
