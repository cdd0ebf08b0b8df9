package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"home-hub/internal/domain"
)

// StateStore is the in-memory source of truth for room and relay state.
// Reads return copies; writes go through the Executor.
type StateStore struct {
	mu   sync.RWMutex
	home domain.Home
	docs DocumentStore
}

func NewStateStore(docs DocumentStore) *StateStore {
	return &StateStore{docs: docs}
}

// Load replaces the in-memory state with the persisted device document.
// A missing document yields an empty home.
func (s *StateStore) Load(ctx context.Context) error {
	raw, err := s.docs.Load(ctx, DeviceDocument)
	if errors.Is(err, ErrDocumentNotFound) {
		s.mu.Lock()
		s.home = domain.Home{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", DeviceDocument, err)
	}

	var home domain.Home
	if err := json.Unmarshal(raw, &home); err != nil {
		return fmt.Errorf("decoding %s: %w", DeviceDocument, err)
	}

	s.mu.Lock()
	s.home = home
	s.mu.Unlock()
	return nil
}

func (s *StateStore) Persist(ctx context.Context) error {
	s.mu.RLock()
	raw, err := json.Marshal(s.home)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", DeviceDocument, err)
	}

	if err := s.docs.Save(ctx, DeviceDocument, raw); err != nil {
		return fmt.Errorf("saving %s: %w", DeviceDocument, err)
	}
	return nil
}

func (s *StateStore) Snapshot() domain.Home {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.home.Clone()
}

func (s *StateStore) Relay(room, relay string) (domain.Relay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.home.Room(room)
	if !ok {
		return domain.Relay{}, false
	}
	rel, ok := r.Relay(relay)
	if !ok {
		return domain.Relay{}, false
	}
	return *rel, true
}

// SetStatus reports whether the relay exists.
func (s *StateStore) SetStatus(room, relay string, status domain.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relay(room, relay)
	if !ok {
		return false
	}
	rel.Status = status
	return true
}

func (s *StateStore) SetMotionControl(room, relay string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.relay(room, relay)
	if !ok {
		return false
	}
	rel.MotionControl = enabled
	return true
}

// Rooms returns room ids in document order.
func (s *StateStore) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.home.Rooms))
	for _, r := range s.home.Rooms {
		ids = append(ids, r.ID)
	}
	return ids
}

func (s *StateStore) HasRoom(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.home.Room(id)
	return ok
}

func (s *StateStore) relay(room, relay string) (*domain.Relay, bool) {
	r, ok := s.home.Room(room)
	if !ok {
		return nil, false
	}
	return r.Relay(relay)
}
