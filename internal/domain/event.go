package domain

import "encoding/json"

type EventType string

const (
	EventStatusUpdate  EventType = "status_update"
	EventMotionUpdate  EventType = "motion_update"
	EventVoiceFeedback EventType = "voice_feedback"
	EventLog           EventType = "log"
)

// Event is a notification for live subscribers. Only the fields relevant to
// Type are serialized.
type Event struct {
	Type          EventType
	Room          string
	Relay         string
	Status        Status
	MotionControl bool
	Text          string
	Log           string
}

func StatusUpdate(room, relay string, status Status) Event {
	return Event{Type: EventStatusUpdate, Room: room, Relay: relay, Status: status}
}

func MotionUpdate(room, relay string, motionControl bool) Event {
	return Event{Type: EventMotionUpdate, Room: room, Relay: relay, MotionControl: motionControl}
}

func VoiceFeedback(text string) Event {
	return Event{Type: EventVoiceFeedback, Text: text}
}

func LogEntry(line string) Event {
	return Event{Type: EventLog, Log: line}
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStatusUpdate:
		return json.Marshal(struct {
			Type   EventType `json:"type"`
			Room   string    `json:"room"`
			Relay  string    `json:"relay"`
			Status Status    `json:"status"`
		}{e.Type, e.Room, e.Relay, e.Status})
	case EventMotionUpdate:
		return json.Marshal(struct {
			Type          EventType `json:"type"`
			Room          string    `json:"room"`
			Relay         string    `json:"relay"`
			MotionControl bool      `json:"motion_control"`
		}{e.Type, e.Room, e.Relay, e.MotionControl})
	case EventVoiceFeedback:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Text string    `json:"text"`
		}{e.Type, e.Text})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Log  string    `json:"log"`
		}{EventLog, e.Log})
	}
}
