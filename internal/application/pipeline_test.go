package application_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"home-hub/internal/application"
	"home-hub/internal/domain"
)

func newPipeline(f *fixture, stt application.Transcriber) *application.VoicePipeline {
	return application.NewVoicePipeline(f.state, f.modes, application.NewInterpreter(), stt, f.exec, f.log, 16000, nil, testLogger())
}

func logContains(f *fixture, line string) bool {
	return strings.Contains(strings.Join(f.log.Entries(), "\n"), line)
}

func TestVoicePipeline_HandleUtterance(t *testing.T) {
	f := newFixture(t, map[string]string{application.DeviceDocument: livingRoomDoc})
	stt := &mockTranscriber{text: "turn on the main light"}
	p := newPipeline(f, stt)

	p.HandleUtterance(context.Background(), "living_room", pcm(1600, 500))

	if got := f.bus.published(); !slices.Equal(got, []string{"living_room:relay1:ON"}) {
		t.Errorf("published: got %v", got)
	}
	if !slices.Contains(stt.vocabulary, "main") || !slices.Contains(stt.vocabulary, "television") {
		t.Errorf("vocabulary missing label words: %v", stt.vocabulary)
	}
	if !logContains(f, `[VOSK] Heard in living_room: "turn on the main light"`) {
		t.Errorf("log missing transcript: %v", f.log.Entries())
	}
}

func TestVoicePipeline_UnusableTranscripts(t *testing.T) {
	tests := []struct {
		name string
		room string
		stt  *mockTranscriber
		call bool
		log  string
	}{
		{"empty transcript", "living_room", &mockTranscriber{text: "  "}, true, "[VOSK] Heard nothing in living_room."},
		{"punctuation only", "living_room", &mockTranscriber{text: " ... "}, true, "[VOSK] Heard nothing in living_room."},
		{"transcriber error", "living_room", &mockTranscriber{err: errors.New("engine offline")}, true, "[VOSK] Transcription failed in living_room: engine offline"},
		{"unknown room", "garage", &mockTranscriber{text: "turn on the main light"}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{application.DeviceDocument: livingRoomDoc})
			p := newPipeline(f, tt.stt)

			p.HandleUtterance(context.Background(), tt.room, pcm(1600, 500))

			if got := f.bus.published(); len(got) != 0 {
				t.Errorf("expected no publish, got %v", got)
			}
			if called := tt.stt.callCount() > 0; called != tt.call {
				t.Errorf("transcriber called: got %v, want %v", called, tt.call)
			}
			if tt.log != "" && !logContains(f, tt.log) {
				t.Errorf("log missing %q: %v", tt.log, f.log.Entries())
			}
		})
	}
}

func TestVoicePipeline_HandleText(t *testing.T) {
	f := newFixture(t, map[string]string{
		application.DeviceDocument: livingRoomDoc,
		application.ModeDocument:   partyModeDoc,
	})
	p := newPipeline(f, &application.NoopTranscriber{})
	ctx := context.Background()

	res := p.HandleText(ctx, "living_room", "Activate Party Mode")
	if !res.IsMode() {
		t.Fatalf("expected mode resolution, got %+v", res)
	}
	if !logContains(f, "[VOICE] Matched Mode: 'Party' (Negative: false)") {
		t.Errorf("log missing mode match: %v", f.log.Entries())
	}
	if got := f.status(t, "living_room", "relay2"); got != domain.StatusOn {
		t.Errorf("party mode did not switch fan on: %s", got)
	}

	p.HandleText(ctx, "living_room", "turn on the television")
	if !logContains(f, "[SKIPPED] Television is already ON") {
		t.Errorf("log missing skip: %v", f.log.Entries())
	}

	p.HandleText(ctx, "living_room", "Coffee Maker")
	if !logContains(f, "[IGNORED] No matching device for 'coffee maker'.") {
		t.Errorf("log missing ignore: %v", f.log.Entries())
	}
}

func TestVoicePipeline_WhisperStyleTranscript(t *testing.T) {
	f := newFixture(t, map[string]string{application.DeviceDocument: livingRoomDoc})
	p := newPipeline(f, &mockTranscriber{text: " Television, off."})

	p.HandleUtterance(context.Background(), "living_room", pcm(1600, 500))

	if got := f.bus.published(); !slices.Equal(got, []string{"living_room:relay3:OFF"}) {
		t.Errorf("published: got %v", got)
	}
	if !logContains(f, `[VOSK] Heard in living_room: "Television, off."`) {
		t.Errorf("log missing transcript: %v", f.log.Entries())
	}
}
