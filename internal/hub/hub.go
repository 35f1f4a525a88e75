package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dronefleet/internal/fleet"
	"dronefleet/internal/logging"
)

var (
	// ErrClosed is returned once the hub has been shut down.
	ErrClosed = errors.New("hub closed")
	// ErrSlowConsumer is the removal reason under the Disconnect policy.
	ErrSlowConsumer = errors.New("slow consumer")
)

// Source is the read-only view of the fleet the hub snapshots.
type Source interface {
	ListFull() []fleet.Device
}

// Conn is a subscriber transport. Send and Ping are only ever called from the
// subscriber's own writer goroutine; Close may be called from any goroutine
// and must unblock a pending Send.
type Conn interface {
	Send(ctx context.Context, f Frame) error
	Ping(ctx context.Context) error
	Close() error
}

// Policy decides what happens when a subscriber's queue is full.
type Policy string

// Slow consumer policies.
const (
	DropOldest Policy = "drop_oldest"
	Disconnect Policy = "disconnect"
)

// Options configures timing and backpressure.
type Options struct {
	PublishInterval time.Duration
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	QueueDepth      int
	SlowConsumer    Policy
}

// DefaultOptions returns the reference timings: publish every 3s, probe
// every 10s.
func DefaultOptions() Options {
	return Options{
		PublishInterval: 3 * time.Second,
		PingInterval:    10 * time.Second,
		WriteTimeout:    5 * time.Second,
		QueueDepth:      8,
		SlowConsumer:    DropOldest,
	}
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Removed     uint64 `json:"removed"`
}

// Hub keeps every subscriber in step with the fleet store.
//
// Lock order: h.mu, then the store's lock (taken inside Source.ListFull),
// then Subscriber.mu. Sends never happen under h.mu.
type Hub struct {
	src  Source
	opts Options
	now  func() time.Time

	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
	removed   atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a hub reading from src. Zero option fields take defaults.
func New(src Source, opts Options) *Hub {
	def := DefaultOptions()
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = def.PublishInterval
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = def.QueueDepth
	}
	if opts.SlowConsumer == "" {
		opts.SlowConsumer = def.SlowConsumer
	}
	return &Hub{
		src:  src,
		opts: opts,
		now:  time.Now,
		subs: make(map[uint64]*Subscriber),
		done: make(chan struct{}),
	}
}

// Subscribe registers c and sends an init snapshot as its first frame. The
// init is captured under the registry lock so no update is captured earlier
// than it, and it is held outside the bounded queue so backpressure never
// drops it.
func (h *Hub) Subscribe(ctx context.Context, c Conn) (*Subscriber, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	frame, err := newFrame(TypeInit, h.now().UTC(), h.src.ListFull())
	if err != nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("encode init snapshot: %w", err)
	}
	h.nextID++
	s := newSubscriber(h, h.nextID, c, frame, logging.FromContext(ctx))
	h.subs[s.id] = s
	h.wg.Add(1)
	n := len(h.subs)
	h.mu.Unlock()

	go s.run()
	s.log.Info("subscriber joined", "subscribers", n)
	return s, nil
}

// Unsubscribe removes s and closes its transport. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.remove(s, nil)
}

// Publish captures one snapshot and queues the same frame for every
// registered subscriber. It never waits on a subscriber.
func (h *Hub) Publish(ctx context.Context) error {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	drones := h.src.ListFull()
	at := h.now().UTC()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	frame, err := newFrame(TypeUpdate, at, drones)
	if err != nil {
		return fmt.Errorf("encode update snapshot: %w", err)
	}
	for _, s := range subs {
		if !s.offer(frame) {
			h.remove(s, ErrSlowConsumer)
		}
	}
	h.published.Add(1)
	logging.FromContext(ctx).Debug("published snapshot", "drones", len(drones), "subscribers", len(subs))
	return nil
}

// Run publishes on every tick until ctx is done, then closes the hub.
func (h *Hub) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("starting broadcast hub", "publish_interval", h.opts.PublishInterval, "ping_interval", h.opts.PingInterval)
	ticker := time.NewTicker(h.opts.PublishInterval)
	defer ticker.Stop()
	defer h.Close()

	for {
		select {
		case <-ticker.C:
			if err := h.Publish(ctx); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				log.Error("publish failed", "err", err)
			}
		case <-ctx.Done():
			log.Info("stopping broadcast hub")
			return
		case <-h.done:
			return
		}
	}
}

// Close removes every subscriber and waits for their writer goroutines.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		subs := h.subs
		h.subs = make(map[uint64]*Subscriber)
		h.mu.Unlock()

		close(h.done)
		for _, s := range subs {
			s.close(ErrClosed)
		}

		waited := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-time.After(h.opts.WriteTimeout + time.Second):
		}
	})
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
		Removed:     h.removed.Load(),
	}
}

func (h *Hub) remove(s *Subscriber, reason error) {
	h.mu.Lock()
	_, ok := h.subs[s.id]
	delete(h.subs, s.id)
	n := len(h.subs)
	h.mu.Unlock()

	s.close(reason)
	if !ok {
		return
	}
	h.removed.Add(1)
	if reason != nil {
		s.log.Warn("subscriber removed", "reason", reason, "subscribers", n)
	} else {
		s.log.Info("subscriber left", "subscribers", n)
	}
}
