package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"home-hub/internal/domain"
)

const DeviceRoomDocument = "device_room_map"

const defaultDeviceType = "esp32_relay"

// Discovery tracks relay controllers that announced themselves on the bus
// and are not yet bound to a room.
type Discovery struct {
	mu         sync.Mutex
	unassigned map[string]domain.DiscoveredDevice
	rooms      map[string]string
	docs       DocumentStore
	clock      Clock
}

func NewDiscovery(docs DocumentStore, clock Clock) *Discovery {
	return &Discovery{
		unassigned: make(map[string]domain.DiscoveredDevice),
		rooms:      make(map[string]string),
		docs:       docs,
		clock:      clock,
	}
}

// Load reads the room to device binding document. A missing document means
// no bindings.
func (d *Discovery) Load(ctx context.Context) error {
	raw, err := d.docs.Load(ctx, DeviceRoomDocument)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", DeviceRoomDocument, err)
	}

	rooms := make(map[string]string)
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return fmt.Errorf("decoding %s: %w", DeviceRoomDocument, err)
	}

	d.mu.Lock()
	d.rooms = rooms
	d.mu.Unlock()
	return nil
}

// Observe records an announcement. Devices already bound to a room are
// ignored and Observe reports false.
func (d *Discovery) Observe(id, deviceType string) bool {
	if id == "" {
		return false
	}
	if deviceType == "" {
		deviceType = defaultDeviceType
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, bound := range d.rooms {
		if bound == id {
			return false
		}
	}
	d.unassigned[id] = domain.DiscoveredDevice{ID: id, Type: deviceType, LastSeen: d.clock.Now()}
	return true
}

func (d *Discovery) Unassigned() []domain.DiscoveredDevice {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.DiscoveredDevice, 0, len(d.unassigned))
	for _, dev := range d.unassigned {
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Discovery) Assign(ctx context.Context, deviceID, room string) error {
	d.mu.Lock()
	d.rooms[room] = deviceID
	delete(d.unassigned, deviceID)
	raw, err := json.Marshal(d.rooms)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", DeviceRoomDocument, err)
	}

	if err := d.docs.Save(ctx, DeviceRoomDocument, raw); err != nil {
		return fmt.Errorf("saving %s: %w", DeviceRoomDocument, err)
	}
	return nil
}
