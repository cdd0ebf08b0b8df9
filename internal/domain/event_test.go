package domain_test

import (
	"encoding/json"
	"testing"

	"home-hub/internal/domain"
)

func TestEvent_MarshalJSON(t *testing.T) {
	tests := []struct {
		event domain.Event
		want  string
	}{
		{domain.StatusUpdate("den", "relay1", domain.StatusOn), `{"type":"status_update","room":"den","relay":"relay1","status":"ON"}`},
		{domain.MotionUpdate("den", "relay2", true), `{"type":"motion_update","room":"den","relay":"relay2","motion_control":true}`},
		{domain.VoiceFeedback("Okay, Fan turned on"), `{"type":"voice_feedback","text":"Okay, Fan turned on"}`},
		{domain.LogEntry("2024-06-07 20:00:00 - hi"), `{"type":"log","log":"2024-06-07 20:00:00 - hi"}`},
	}

	for _, tt := range tests {
		raw, err := json.Marshal(tt.event)
		if err != nil {
			t.Fatalf("marshal %s: %v", tt.event.Type, err)
		}
		if string(raw) != tt.want {
			t.Errorf("%s: got %s, want %s", tt.event.Type, raw, tt.want)
		}
	}
}
