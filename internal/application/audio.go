package application

import "context"

// AudioSource produces raw PCM chunks for one room, e.g. a local microphone.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextChunk(ctx context.Context) ([]byte, error)
	Name() string
}

// SpeechDetector classifies a single PCM frame as speech or silence.
type SpeechDetector interface {
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}
