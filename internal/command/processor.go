// Package command validates and applies operator commands to the fleet.
package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dronefleet/internal/fleet"
	"dronefleet/internal/logging"
)

// HistorySize bounds the in-memory command log.
const HistorySize = 100

// Store is the part of the fleet store commands are applied to.
type Store interface {
	ApplyCommand(id string, action fleet.Action) (fleet.Status, error)
}

// Record is one processed command, successful or not.
type Record struct {
	RequestID string       `json:"request_id"`
	DeviceID  string       `json:"device_id"`
	Action    string       `json:"action"`
	Status    fleet.Status `json:"status,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Processor applies commands and keeps a short log of them.
type Processor struct {
	store Store
	now   func() time.Time

	mu      sync.Mutex
	history []Record
}

// NewProcessor returns a processor writing to store.
func NewProcessor(store Store) *Processor {
	return &Processor{store: store, now: time.Now}
}

// Apply runs action against drone id. It returns the record describing the
// outcome and the store error, if any (fleet.ErrNotFound or
// fleet.ErrInvalidAction). No notification is sent; subscribers see the new
// status on the next publish tick.
func (p *Processor) Apply(ctx context.Context, id, action string) (Record, error) {
	rec := Record{
		RequestID: uuid.New().String(),
		DeviceID:  id,
		Action:    action,
		Timestamp: p.now().UTC(),
	}
	st, err := p.store.ApplyCommand(id, fleet.Action(action))
	log := logging.FromContext(ctx).With("request_id", rec.RequestID, "drone_id", id, "action", action)
	if err != nil {
		rec.Error = err.Error()
		log.Warn("command rejected", "err", err)
	} else {
		rec.Status = st
		log.Info("command applied", "status", st)
	}
	p.record(rec)
	return rec, err
}

func (p *Processor) record(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, rec)
	if len(p.history) > HistorySize {
		p.history = p.history[len(p.history)-HistorySize:]
	}
}

// History returns a copy of the recent commands, oldest first.
func (p *Processor) History() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, len(p.history))
	copy(out, p.history)
	return out
}
