//go:build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoMicrophone is returned by MicrophoneSource in builds without the
// portaudio tag.
var ErrNoMicrophone = errors.New("microphone support not compiled in: rebuild with -tags portaudio")

type MicrophoneSource struct {
	logger *slog.Logger
}

func NewMicrophoneSource(_ int, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string { return "microphone" }

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.logger.Warn("local microphone requested", "error", ErrNoMicrophone)
	return ErrNoMicrophone
}

func (m *MicrophoneSource) Stop() error { return nil }

func (m *MicrophoneSource) NextChunk(_ context.Context) ([]byte, error) {
	return nil, ErrNoMicrophone
}
