// Package fleet owns the canonical in-memory set of drone records.
package fleet

import "math"

// Status is the operator-controlled state of a drone.
type Status string

// Drone status values.
const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusReturning Status = "returning"
)

// Action is an operator command understood by the store.
type Action string

// Recognised command actions.
const (
	ActionPause  Action = "pause"
	ActionReturn Action = "return"
)

// Telemetry bounds.
const (
	BatteryMin = 0.0
	BatteryMax = 100.0
	SignalMin  = -90.0
	SignalMax  = -30.0
)

// Telemetry is the sensor part of a drone record.
type Telemetry struct {
	Temperature float64 `json:"temperature"`
	Battery     float64 `json:"battery"`
	Signal      float64 `json:"signal"`
}

// Device is one simulated drone. Values handed out by the Store are copies;
// Image is shared between copies and must be treated as read-only.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Telemetry
	Image []byte `json:"image"`
}

// Meta is the lightweight directory view of a drone.
type Meta struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Meta returns the directory view of d.
func (d Device) Meta() Meta {
	return Meta{ID: d.ID, Name: d.Name, Status: d.Status}
}

// Clamp forces t into the telemetry bounds.
func (t Telemetry) Clamp() Telemetry {
	t.Battery = clamp(t.Battery, BatteryMin, BatteryMax)
	t.Signal = clamp(t.Signal, SignalMin, SignalMax)
	return t
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// next returns the status reached by applying a to s. There is no path back
// to active; returning is terminal.
func next(s Status, a Action) (Status, bool) {
	switch a {
	case ActionPause:
		if s == StatusActive {
			return StatusPaused, true
		}
		return s, true
	case ActionReturn:
		return StatusReturning, true
	}
	return s, false
}
