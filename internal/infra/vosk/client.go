package vosk

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"home-hub/internal/infra"
)

const (
	chunkSize      = 8000
	defaultTimeout = 30 * time.Second
	unknownWord    = "[unk]"
)

// Client transcribes utterances against a vosk-server websocket endpoint,
// one connection per utterance.
type Client struct {
	url     string
	timeout time.Duration
	retry   infra.RetryConfig
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:     url,
		timeout: timeout,
		retry:   infra.DefaultRetryConfig(),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  logger,
	}
}

type configMessage struct {
	Config recognizerConfig `json:"config"`
}

type recognizerConfig struct {
	SampleRate int      `json:"sample_rate"`
	PhraseList []string `json:"phrase_list,omitempty"`
}

type result struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// Transcribe streams pcm to the server with vocabulary as the recognizer
// grammar and returns the recognized text, trimmed.
func (c *Client) Transcribe(ctx context.Context, pcm []byte, sampleRate int, vocabulary []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var conn *websocket.Conn
	err := infra.WithRetry(ctx, c.retry, func() error {
		var dialErr error
		conn, _, dialErr = c.dialer.DialContext(ctx, c.url, nil)
		return dialErr
	})
	if err != nil {
		return "", fmt.Errorf("dialing vosk server: %w", err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	cfg := configMessage{Config: recognizerConfig{SampleRate: sampleRate}}
	if len(vocabulary) > 0 {
		cfg.Config.PhraseList = grammar(vocabulary)
	}
	if err := conn.WriteJSON(cfg); err != nil {
		return "", fmt.Errorf("sending recognizer config: %w", err)
	}

	var texts []string
	for chunk := range slices.Chunk(pcm, chunkSize) {
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return "", fmt.Errorf("sending audio: %w", err)
		}
		var r result
		if err := conn.ReadJSON(&r); err != nil {
			return "", fmt.Errorf("reading partial result: %w", err)
		}
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return "", fmt.Errorf("sending eof: %w", err)
	}
	var final result
	if err := conn.ReadJSON(&final); err != nil {
		return "", fmt.Errorf("reading final result: %w", err)
	}
	if final.Text != "" {
		texts = append(texts, final.Text)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	text := strings.TrimSpace(strings.Join(texts, " "))
	c.logger.Debug("vosk transcription", "bytes", len(pcm), "text", text)
	return text, nil
}

// grammar returns vocabulary with the unknown-word token the recognizer
// needs to reject out-of-grammar speech.
func grammar(vocabulary []string) []string {
	if slices.Contains(vocabulary, unknownWord) {
		return vocabulary
	}
	return append(slices.Clone(vocabulary), unknownWord)
}
