// Package snapshot serves point-in-time reads of the fleet.
package snapshot

import (
	"time"

	"dronefleet/internal/fleet"
)

// Store is the subset of the fleet store the reads need.
type Store interface {
	ListMeta() []fleet.Meta
	Get(id string) (fleet.Device, error)
}

// Feed is the camera frame of one drone.
type Feed struct {
	Image     []byte    `json:"imageBase64"`
	Timestamp time.Time `json:"timestamp"`
}

// Service answers metadata, vitals and feed reads.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService returns a Service reading from store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Metadata lists every drone's id, name and status in fleet order.
func (s *Service) Metadata() []fleet.Meta {
	return s.store.ListMeta()
}

// Vitals returns the current telemetry of one drone.
func (s *Service) Vitals(id string) (fleet.Telemetry, error) {
	d, err := s.store.Get(id)
	if err != nil {
		return fleet.Telemetry{}, err
	}
	return d.Telemetry, nil
}

// Feed returns the drone's image stamped with the read time.
func (s *Service) Feed(id string) (Feed, error) {
	d, err := s.store.Get(id)
	if err != nil {
		return Feed{}, err
	}
	return Feed{Image: d.Image, Timestamp: s.now().UTC()}, nil
}
