package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"home-hub/internal/infra"
	"home-hub/internal/infra/audio"
)

const defaultModel = "whisper-1"

type WhisperConfig struct {
	APIKey   string
	Model    string
	Language string
	// BaseURL overrides the API endpoint, e.g. for a self-hosted
	// OpenAI-compatible server.
	BaseURL string
}

// WhisperClient transcribes utterances with the OpenAI audio API. Whisper
// cannot enforce a grammar, so the vocabulary is sent as the prompt.
type WhisperClient struct {
	client   openai.Client
	model    string
	language string
	retry    infra.RetryConfig
	logger   *slog.Logger
}

func NewWhisperClient(cfg WhisperConfig, logger *slog.Logger) *WhisperClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &WhisperClient{
		client:   openai.NewClient(opts...),
		model:    model,
		language: cfg.Language,
		retry:    infra.DefaultRetryConfig(),
		logger:   logger,
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, pcm []byte, sampleRate int, vocabulary []string) (string, error) {
	wavData, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", fmt.Errorf("encoding utterance: %w", err)
	}

	var text string
	err = infra.WithRetry(ctx, c.retry, func() error {
		params := openai.AudioTranscriptionNewParams{
			File:  openai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
			Model: openai.AudioModel(c.model),
		}
		if c.language != "" {
			params.Language = openai.String(c.language)
		}
		if prompt := Prompt(vocabulary); prompt != "" {
			params.Prompt = openai.String(prompt)
		}

		transcription, err := c.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) && !infra.IsRetryableHTTPStatus(apiErr.StatusCode) {
				return infra.Permanent(fmt.Errorf("whisper API error %d: %w", apiErr.StatusCode, err))
			}
			return fmt.Errorf("transcription request: %w", err)
		}
		text = transcription.Text
		return nil
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	c.logger.Debug("whisper transcription", "bytes", len(pcm), "text", text)
	return text, nil
}

// Prompt joins the vocabulary into a transcription hint, leaving out
// recognizer-only tokens such as "[unk]".
func Prompt(vocabulary []string) string {
	words := slices.DeleteFunc(slices.Clone(vocabulary), func(w string) bool {
		return strings.HasPrefix(w, "[")
	})
	return strings.Join(words, " ")
}
