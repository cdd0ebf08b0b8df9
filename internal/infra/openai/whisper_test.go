package openai_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"home-hub/internal/infra/openai"
)

func newWhisper(t *testing.T, handler http.HandlerFunc) *openai.WhisperClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return openai.NewWhisperClient(openai.WhisperConfig{
		APIKey:   "test-key",
		Language: "en",
		BaseURL:  server.URL + "/",
	}, logger)
}

func TestWhisperClient_Transcribe(t *testing.T) {
	var prompt, model, language, auth string
	client := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		auth = r.Header.Get("Authorization")
		prompt = r.FormValue("prompt")
		model = r.FormValue("model")
		language = r.FormValue("language")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"  Turn on the fan. "}`)
	})

	pcm := make([]byte, 3200)
	text, err := client.Transcribe(context.Background(), pcm, 16000, []string{"[unk]", "fan", "turn"})
	if err != nil {
		t.Fatalf("transcribing: %v", err)
	}
	if text != "Turn on the fan." {
		t.Errorf("text: got %q", text)
	}
	if auth != "Bearer test-key" {
		t.Errorf("authorization: got %q", auth)
	}
	if model != "whisper-1" || language != "en" {
		t.Errorf("model/language: got %q/%q", model, language)
	}
	if prompt != "fan turn" {
		t.Errorf("prompt: got %q, want %q", prompt, "fan turn")
	}
}

func TestWhisperClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad audio","type":"invalid_request_error"}}`)
	})

	_, err := client.Transcribe(context.Background(), make([]byte, 320), 16000, nil)
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected 400 error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func TestWhisperClient_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	client := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"party mode"}`)
	})

	text, err := client.Transcribe(context.Background(), make([]byte, 320), 16000, nil)
	if err != nil {
		t.Fatalf("transcribing: %v", err)
	}
	if text != "party mode" {
		t.Errorf("text: got %q", text)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls: got %d, want 2", got)
	}
}

func TestWhisperClient_OddPCM(t *testing.T) {
	client := newWhisper(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.Transcribe(context.Background(), []byte{1, 2, 3}, 16000, nil); err == nil {
		t.Error("expected encoding error")
	}
}

func TestPrompt(t *testing.T) {
	if got := openai.Prompt([]string{"[unk]", "kitchen", "light", "on"}); got != "kitchen light on" {
		t.Errorf("Prompt: got %q", got)
	}
	if got := openai.Prompt(nil); got != "" {
		t.Errorf("empty prompt: got %q", got)
	}
}
