package hub

import (
	"encoding/json"
	"time"

	"dronefleet/internal/fleet"
)

// MessageType tags a snapshot envelope.
type MessageType string

// Envelope types.
const (
	TypeInit   MessageType = "init"
	TypeUpdate MessageType = "update"
)

// Envelope is the wire shape of every snapshot message.
type Envelope struct {
	Type      MessageType    `json:"type"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Drones    []fleet.Device `json:"drones"`
}

// Frame is one serialised snapshot. Payload is shared by every subscriber of
// the same tick and must not be modified.
type Frame struct {
	Type       MessageType
	CapturedAt time.Time
	Drones     []fleet.Device
	Payload    []byte
}

func newFrame(t MessageType, at time.Time, drones []fleet.Device) (Frame, error) {
	env := Envelope{Type: t, Drones: drones}
	if t == TypeUpdate {
		ts := at
		env.Timestamp = &ts
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, CapturedAt: at, Drones: drones, Payload: payload}, nil
}
