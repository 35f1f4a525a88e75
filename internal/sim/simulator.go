// Simulator wiring the fleet store to its background loops and readers
package sim

import (
	"context"
	"math/rand"
	"time"

	"dronefleet/internal/command"
	"dronefleet/internal/config"
	"dronefleet/internal/fleet"
	"dronefleet/internal/hub"
	"dronefleet/internal/snapshot"
	"dronefleet/internal/telemetry"
)

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.TelemetryRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.TelemetryRow) error
}

// contextBatchWriter is a batch writer that honours cancellation itself.
type contextBatchWriter interface {
	WriteBatchContext(context.Context, []telemetry.TelemetryRow) error
}

// LowBatteryThreshold is the battery level at or below which a drone counts
// as low in the health summary.
const LowBatteryThreshold = 20.0

// Simulator owns the fleet store and the components acting on it.
type Simulator struct {
	clusterID string
	store     *fleet.Store
	mutator   *telemetry.Mutator
	hub       *hub.Hub
	commands  *command.Processor
	snapshots *snapshot.Service
}

// NewSimulator generates the initial fleet from cfg and wires the mutator,
// broadcast hub, command processor and snapshot reader around it. image is
// shared by every drone.
func NewSimulator(cfg *config.Config, image []byte) *Simulator {
	seed := cfg.Fleet.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))
	devices := fleet.Generate(cfg.Fleet.Size, cfg.Fleet.NamePrefix, r, image)
	store := fleet.NewStore(devices)
	// Drift follows the fleet seed; the low bit keeps it clear of the
	// clock-seeded zero.
	driftSeed := r.Int63() | 1

	return &Simulator{
		clusterID: cfg.ClusterID,
		store:     store,
		mutator:   telemetry.NewMutator(store, cfg.Timing.MutationInterval, driftSeed),
		hub: hub.New(store, hub.Options{
			PublishInterval: cfg.Timing.PublishInterval,
			PingInterval:    cfg.Timing.PingInterval,
			WriteTimeout:    cfg.Timing.WriteTimeout,
			QueueDepth:      cfg.Broadcast.QueueDepth,
			SlowConsumer:    hub.Policy(cfg.Broadcast.SlowConsumer),
		}),
		commands:  command.NewProcessor(store),
		snapshots: snapshot.NewService(store),
	}
}

// ClusterID returns the cluster the simulator reports as.
func (s *Simulator) ClusterID() string { return s.clusterID }

// Store returns the fleet store.
func (s *Simulator) Store() *fleet.Store { return s.store }

// Hub returns the broadcast hub.
func (s *Simulator) Hub() *hub.Hub { return s.hub }

// Commands returns the command processor.
func (s *Simulator) Commands() *command.Processor { return s.commands }

// Snapshots returns the snapshot reader.
func (s *Simulator) Snapshots() *snapshot.Service { return s.snapshots }

// FleetHealth summarizes status counts across the fleet.
type FleetHealth struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Paused      int `json:"paused"`
	Returning   int `json:"returning"`
	LowBattery  int `json:"low_battery"`
	Subscribers int `json:"subscribers"`
}

// Health returns aggregated health information for the fleet.
func (s *Simulator) Health() FleetHealth {
	devices := s.store.ListFull()
	h := FleetHealth{Total: len(devices), Subscribers: s.hub.Len()}
	for _, d := range devices {
		switch d.Status {
		case fleet.StatusActive:
			h.Active++
		case fleet.StatusPaused:
			h.Paused++
		case fleet.StatusReturning:
			h.Returning++
		}
		if d.Battery <= LowBatteryThreshold {
			h.LowBattery++
		}
	}
	return h
}

// TelemetrySnapshot returns the latest state for all drones.
func (s *Simulator) TelemetrySnapshot() []telemetry.TelemetryRow {
	return Rows(s.clusterID, s.store.ListFull(), time.Now().UTC())
}

// Rows converts devices captured at ts into export rows.
func Rows(clusterID string, devices []fleet.Device, ts time.Time) []telemetry.TelemetryRow {
	rows := make([]telemetry.TelemetryRow, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, telemetry.TelemetryRow{
			ClusterID:   clusterID,
			DroneID:     d.ID,
			Name:        d.Name,
			Status:      string(d.Status),
			Temperature: d.Temperature,
			Battery:     d.Battery,
			Signal:      d.Signal,
			Timestamp:   ts,
		})
	}
	return rows
}
