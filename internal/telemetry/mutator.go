package telemetry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"dronefleet/internal/fleet"
	"dronefleet/internal/logging"
)

// Drift parameters applied on every mutation tick.
const (
	TemperatureJitter = 0.5
	SignalJitter      = 0.5
	BatteryDrain      = 0.1
)

// Store is the write surface the mutator needs from the fleet store.
type Store interface {
	MutateTelemetry(fn func(id string, t fleet.Telemetry) fleet.Telemetry)
}

// Mutator simulates sensor drift for the whole fleet on a fixed interval.
type Mutator struct {
	store    Store
	interval time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

// NewMutator creates a mutator. A zero seed seeds from the clock.
func NewMutator(store Store, interval time.Duration, seed int64) *Mutator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mutator{
		store:    store,
		interval: interval,
		rand:     rand.New(rand.NewSource(seed)),
	}
}

// Perturb returns t after one tick of drift. Temperature wanders by up to
// ±0.5 and keeps one decimal, battery drains by 0.1 and is rounded to a whole
// percent, signal wanders by up to ±0.5 inside [-90,-30] and is rounded.
func (m *Mutator) Perturb(t fleet.Telemetry) fleet.Telemetry {
	m.mu.Lock()
	dt := m.rand.Float64() - TemperatureJitter
	ds := m.rand.Float64() - SignalJitter
	m.mu.Unlock()

	t.Temperature = fleet.Round(t.Temperature+dt, 1)
	battery := t.Battery - BatteryDrain
	if battery < fleet.BatteryMin {
		battery = fleet.BatteryMin
	}
	t.Battery = fleet.Round(battery, 0)
	signal := t.Signal + ds
	if signal < fleet.SignalMin {
		signal = fleet.SignalMin
	} else if signal > fleet.SignalMax {
		signal = fleet.SignalMax
	}
	t.Signal = fleet.Round(signal, 0)
	return t
}

// Tick perturbs every drone in one atomic store update.
func (m *Mutator) Tick() {
	m.store.MutateTelemetry(func(_ string, t fleet.Telemetry) fleet.Telemetry {
		return m.Perturb(t)
	})
}

// Run ticks until ctx is done.
func (m *Mutator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting telemetry mutator", "interval", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Tick()
		case <-ctx.Done():
			log.Info("stopping telemetry mutator")
			return
		}
	}
}
