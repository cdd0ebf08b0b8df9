package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusOn  Status = "ON"
	StatusOff Status = "OFF"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOn:
		return StatusOn, true
	case StatusOff:
		return StatusOff, true
	default:
		return "", false
	}
}

func (s Status) Inverse() Status {
	if s == StatusOn {
		return StatusOff
	}
	return StatusOn
}

// RelayPrefix marks relay entries inside a room object of the device document.
const RelayPrefix = "relay"

type Relay struct {
	ID            string `json:"-"`
	Label         string `json:"label"`
	Status        Status `json:"status"`
	MotionControl bool   `json:"motion_control"`
}

type Room struct {
	ID       string
	WakeWord string
	Relays   []Relay
}

func (r *Room) Relay(id string) (*Relay, bool) {
	for i := range r.Relays {
		if r.Relays[i].ID == id {
			return &r.Relays[i], true
		}
	}
	return nil, false
}

// Home is the device-state document: rooms and their relays in document order.
type Home struct {
	Rooms []Room
}

func (h *Home) Room(id string) (*Room, bool) {
	for i := range h.Rooms {
		if h.Rooms[i].ID == id {
			return &h.Rooms[i], true
		}
	}
	return nil, false
}

func (h Home) Clone() Home {
	rooms := make([]Room, len(h.Rooms))
	for i, r := range h.Rooms {
		rooms[i] = Room{ID: r.ID, WakeWord: r.WakeWord, Relays: append([]Relay(nil), r.Relays...)}
	}
	return Home{Rooms: rooms}
}

func (h Home) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, room := range h.Rooms {
		w.field(room.ID, room)
	}
	return w.bytes()
}

func (h *Home) UnmarshalJSON(data []byte) error {
	h.Rooms = nil
	return decodeObject(data, func(id string, raw json.RawMessage) error {
		room := Room{ID: id}
		if err := json.Unmarshal(raw, &room); err != nil {
			return fmt.Errorf("room %s: %w", id, err)
		}
		room.ID = id
		h.Rooms = append(h.Rooms, room)
		return nil
	})
}

func (r Room) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if r.WakeWord != "" {
		w.field("wake_word", r.WakeWord)
	}
	for _, relay := range r.Relays {
		w.field(relay.ID, relay)
	}
	return w.bytes()
}

func (r *Room) UnmarshalJSON(data []byte) error {
	r.Relays = nil
	return decodeObject(data, func(key string, raw json.RawMessage) error {
		switch {
		case key == "wake_word":
			var wake string
			if err := json.Unmarshal(raw, &wake); err != nil {
				return fmt.Errorf("wake_word: %w", err)
			}
			r.WakeWord = wake
		case strings.HasPrefix(key, RelayPrefix):
			var relay Relay
			if err := json.Unmarshal(raw, &relay); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			relay.ID = key
			if st, ok := ParseStatus(string(relay.Status)); ok {
				relay.Status = st
			} else {
				relay.Status = StatusOff
			}
			r.Relays = append(r.Relays, relay)
		}
		return nil
	})
}

// DiscoveredDevice is a controller that announced itself on the bus but is
// not bound to a room yet.
type DiscoveredDevice struct {
	ID       string    `json:"device_id"`
	Type     string    `json:"type"`
	LastSeen time.Time `json:"last_seen"`
}
