package fleet

import (
	"fmt"
	"sync"
)

// Store is the single owner of drone records. Every operation runs under one
// RWMutex so a listing never interleaves with a mutation.
type Store struct {
	mu      sync.RWMutex
	devices []Device
	index   map[string]int
}

// NewStore copies devices into a new store. The id set is fixed from here on.
func NewStore(devices []Device) *Store {
	s := &Store{
		devices: make([]Device, len(devices)),
		index:   make(map[string]int, len(devices)),
	}
	for i, d := range devices {
		d.Telemetry = d.Telemetry.Clamp()
		if d.Status == "" {
			d.Status = StatusActive
		}
		s.devices[i] = d
		s.index[d.ID] = i
	}
	return s
}

// Len returns the fleet size.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// Get returns a copy of one drone.
func (s *Store) Get(id string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.devices[i], nil
}

// ListMeta returns id, name and status for every drone in fleet order.
func (s *Store) ListMeta() []Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Meta, len(s.devices))
	for i, d := range s.devices {
		out[i] = d.Meta()
	}
	return out
}

// ListFull returns a consistent copy of every drone as of one instant.
func (s *Store) ListFull() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// ApplyCommand moves a drone's status according to action and returns the
// resulting status. Unknown ids fail with ErrNotFound before the action is
// looked at; unknown actions fail with ErrInvalidAction and change nothing.
func (s *Store) ApplyCommand(id string, action Action) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	st, ok := next(s.devices[i].Status, action)
	if !ok {
		return s.devices[i].Status, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	s.devices[i].Status = st
	return st, nil
}

// MutateTelemetry replaces the telemetry of every drone with fn's result in a
// single critical section. Results are clamped and battery never increases.
func (s *Store) MutateTelemetry(fn func(id string, t Telemetry) Telemetry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.devices {
		d := &s.devices[i]
		t := fn(d.ID, d.Telemetry).Clamp()
		if t.Battery > d.Battery {
			t.Battery = d.Battery
		}
		d.Telemetry = t
	}
}
