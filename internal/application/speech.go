package application

import (
	"context"
	"fmt"
)

// Transcriber turns an utterance into text. vocabulary lists the words the
// recognizer should restrict itself to; backends that cannot enforce a
// grammar treat it as a hint.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, vocabulary []string) (string, error)
}

// NoopTranscriber is used by text-only deployments. It fails on any audio.
type NoopTranscriber struct{}

func (n *NoopTranscriber) Transcribe(_ context.Context, _ []byte, _ int, _ []string) (string, error) {
	return "", fmt.Errorf("speech-to-text not configured: set transcriber.backend to vosk or whisper")
}
