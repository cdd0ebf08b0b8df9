package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type RelayTarget struct {
	Relay  string
	Status Status
}

type RoomTargets struct {
	Room   string
	Relays []RelayTarget
}

type Mode struct {
	Name      string
	StartTime string
	Days      []string
	AudioID   *int
	Actions   []RoomTargets
}

// HasAudio reports whether activating the mode should start an audio cue.
// An id of zero means no cue.
func (m Mode) HasAudio() bool {
	return m.AudioID != nil && *m.AudioID != 0
}

// ScheduledAt reports whether the mode's start time and weekday match t.
func (m Mode) ScheduledAt(t time.Time) bool {
	if m.StartTime == "" || m.StartTime != t.Format("15:04") {
		return false
	}
	return slices.Contains(m.Days, t.Format("Mon"))
}

func (m Mode) FirstRoom() (string, bool) {
	if len(m.Actions) == 0 {
		return "", false
	}
	return m.Actions[0].Room, true
}

type modeBody struct {
	StartTime *string         `json:"start_time"`
	Days      []string        `json:"days"`
	AudioID   *int            `json:"audio_id"`
	Actions   json.RawMessage `json:"actions"`
}

// ModeTable is the mode document: mode name to definition, in document order.
type ModeTable []Mode

func (t ModeTable) Find(name string) (Mode, bool) {
	for _, m := range t {
		if m.Name == name {
			return m, true
		}
	}
	return Mode{}, false
}

func (t ModeTable) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, m := range t {
		w.field(m.Name, m)
	}
	return w.bytes()
}

func (t *ModeTable) UnmarshalJSON(data []byte) error {
	*t = nil
	return decodeObject(data, func(name string, raw json.RawMessage) error {
		var m Mode
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("mode %s: %w", name, err)
		}
		m.Name = name
		*t = append(*t, m)
		return nil
	})
}

func (m Mode) MarshalJSON() ([]byte, error) {
	actions := newObjectWriter()
	for _, room := range m.Actions {
		relays := newObjectWriter()
		for _, target := range room.Relays {
			relays.field(target.Relay, target.Status)
		}
		encoded, err := relays.bytes()
		if err != nil {
			return nil, err
		}
		actions.field(room.Room, json.RawMessage(encoded))
	}
	encodedActions, err := actions.bytes()
	if err != nil {
		return nil, err
	}

	body := modeBody{
		Days:    m.Days,
		AudioID: m.AudioID,
		Actions: encodedActions,
	}
	if body.Days == nil {
		body.Days = []string{}
	}
	if m.StartTime != "" {
		start := m.StartTime
		body.StartTime = &start
	}
	return json.Marshal(body)
}

func (m *Mode) UnmarshalJSON(data []byte) error {
	var body modeBody
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	m.StartTime = ""
	if body.StartTime != nil {
		m.StartTime = *body.StartTime
	}
	m.Days = body.Days
	m.AudioID = body.AudioID
	m.Actions = nil

	return decodeObject(body.Actions, func(room string, raw json.RawMessage) error {
		targets := RoomTargets{Room: room}
		err := decodeObject(raw, func(relay string, value json.RawMessage) error {
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return fmt.Errorf("action %s/%s: %w", room, relay, err)
			}
			st, ok := ParseStatus(s)
			if !ok {
				return fmt.Errorf("action %s/%s: invalid status %q", room, relay, s)
			}
			targets.Relays = append(targets.Relays, RelayTarget{Relay: relay, Status: st})
			return nil
		})
		if err != nil {
			return err
		}
		m.Actions = append(m.Actions, targets)
		return nil
	})
}
