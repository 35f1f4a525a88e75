package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"dronefleet/internal/fleet"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	frames chan Frame
	block  chan struct{}

	mu       sync.Mutex
	closed   bool
	failPing bool
	pings    int
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan Frame, 64)}
}

func (c *fakeConn) Send(ctx context.Context, f Frame) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errConnClosed
	}
	select {
	case c.frames <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	if c.closed || c.failPing {
		return errConnClosed
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) next(t *testing.T) Frame {
	t.Helper()
	select {
	case f := <-c.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
	return Frame{}
}

func newTestStore(n int) *fleet.Store {
	return fleet.NewStore(fleet.Generate(n, "Drone-", rand.New(rand.NewSource(1)), []byte{1, 2, 3}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestSubscribeSendsInitSnapshot(t *testing.T) {
	store := newTestStore(3)
	h := New(store, Options{})
	defer h.Close()

	a, b := newFakeConn(), newFakeConn()
	if _, err := h.Subscribe(context.Background(), a); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, err := h.Subscribe(context.Background(), b); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	want := store.ListMeta()
	for _, c := range []*fakeConn{a, b} {
		f := c.next(t)
		if f.Type != TypeInit {
			t.Fatalf("first frame %s, want init", f.Type)
		}
		var env Envelope
		if err := json.Unmarshal(f.Payload, &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Type != TypeInit || env.Timestamp != nil {
			t.Fatalf("unexpected init envelope header: %+v", env)
		}
		if len(env.Drones) != 3 {
			t.Fatalf("init lists %d drones, want 3", len(env.Drones))
		}
		for i, d := range env.Drones {
			if d.ID != want[i].ID {
				t.Fatalf("drone %d id %s, want %s", i, d.ID, want[i].ID)
			}
		}
	}
	if h.Len() != 2 {
		t.Fatalf("registry has %d subscribers, want 2", h.Len())
	}
}

func TestPublishSendsIdenticalPayload(t *testing.T) {
	store := newTestStore(3)
	h := New(store, Options{})
	defer h.Close()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	a, b := newFakeConn(), newFakeConn()
	h.Subscribe(context.Background(), a)
	h.Subscribe(context.Background(), b)
	a.next(t)
	b.next(t)

	if _, err := store.ApplyCommand(store.ListMeta()[0].ID, fleet.ActionPause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := h.Publish(context.Background()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	fa, fb := a.next(t), b.next(t)
	if fa.Type != TypeUpdate || fb.Type != TypeUpdate {
		t.Fatalf("expected update frames, got %s and %s", fa.Type, fb.Type)
	}
	if !bytes.Equal(fa.Payload, fb.Payload) {
		t.Fatalf("subscribers received different payloads")
	}
	var env Envelope
	if err := json.Unmarshal(fa.Payload, &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Timestamp == nil || !env.Timestamp.Equal(fixed) {
		t.Fatalf("update timestamp %v, want %v", env.Timestamp, fixed)
	}
	if env.Drones[0].Status != fleet.StatusPaused {
		t.Fatalf("update does not reflect command: %s", env.Drones[0].Status)
	}
}

func TestClosedSubscriberDoesNotBreakPublish(t *testing.T) {
	store := newTestStore(3)
	h := New(store, Options{})
	defer h.Close()

	gone, stay := newFakeConn(), newFakeConn()
	sGone, _ := h.Subscribe(context.Background(), gone)
	h.Subscribe(context.Background(), stay)
	gone.next(t)
	stay.next(t)

	gone.Close()
	if err := h.Publish(context.Background()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if f := stay.next(t); f.Type != TypeUpdate {
		t.Fatalf("remaining subscriber got %s", f.Type)
	}
	<-sGone.Done()
	if !errors.Is(sGone.Err(), errConnClosed) {
		t.Fatalf("removal reason %v, want transport error", sGone.Err())
	}
	waitFor(t, func() bool { return h.Len() == 1 })

	if err := h.Publish(context.Background()); err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if f := stay.next(t); f.Type != TypeUpdate {
		t.Fatalf("remaining subscriber got %s", f.Type)
	}
}

func TestFailedPingRemovesSubscriber(t *testing.T) {
	h := New(newTestStore(1), Options{PingInterval: 5 * time.Millisecond})
	defer h.Close()
	c := newFakeConn()
	c.failPing = true
	s, _ := h.Subscribe(context.Background(), c)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber not removed after failed ping")
	}
	if h.Len() != 0 {
		t.Fatalf("registry still holds %d subscribers", h.Len())
	}
}

func TestPingsHealthySubscriber(t *testing.T) {
	h := New(newTestStore(1), Options{PingInterval: 5 * time.Millisecond})
	defer h.Close()
	c := newFakeConn()
	h.Subscribe(context.Background(), c)
	waitFor(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.pings >= 2
	})
	if h.Len() != 1 {
		t.Fatalf("healthy subscriber removed")
	}
}

func TestDropOldestKeepsNewestSnapshot(t *testing.T) {
	store := newTestStore(1)
	h := New(store, Options{QueueDepth: 2, SlowConsumer: DropOldest})
	defer h.Close()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	h.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	c := newFakeConn()
	c.block = make(chan struct{})
	h.Subscribe(context.Background(), c)

	for i := 0; i < 6; i++ {
		if err := h.Publish(context.Background()); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	newest := base.Add(time.Duration(tick) * time.Second)
	if h.Stats().Dropped == 0 {
		t.Fatalf("expected dropped frames with a blocked subscriber")
	}
	if h.Len() != 1 {
		t.Fatalf("drop_oldest must not disconnect")
	}

	close(c.block)
	for {
		f := c.next(t)
		if f.CapturedAt.Equal(newest) {
			if f.Type != TypeUpdate {
				t.Fatalf("newest frame has type %s", f.Type)
			}
			return
		}
	}
}

func TestInitSurvivesImmediatePublish(t *testing.T) {
	for _, policy := range []Policy{DropOldest, Disconnect} {
		t.Run(string(policy), func(t *testing.T) {
			h := New(newTestStore(2), Options{QueueDepth: 1, SlowConsumer: policy})
			defer h.Close()
			for i := 0; i < 50; i++ {
				c := newFakeConn()
				s, err := h.Subscribe(context.Background(), c)
				if err != nil {
					t.Fatalf("subscribe: %v", err)
				}
				if err := h.Publish(context.Background()); err != nil {
					t.Fatalf("publish: %v", err)
				}
				if f := c.next(t); f.Type != TypeInit {
					t.Fatalf("subscriber %d: first frame %s, want init", i, f.Type)
				}
				if f := c.next(t); f.Type != TypeUpdate {
					t.Fatalf("subscriber %d: second frame %s, want update", i, f.Type)
				}
				select {
				case <-s.Done():
					t.Fatalf("subscriber %d removed: %v", i, s.Err())
				default:
				}
				h.Unsubscribe(s)
			}
		})
	}
}

func TestDisconnectPolicyRemovesSlowConsumer(t *testing.T) {
	h := New(newTestStore(1), Options{QueueDepth: 1, SlowConsumer: Disconnect})
	defer h.Close()
	c := newFakeConn()
	c.block = make(chan struct{})
	defer close(c.block)
	s, _ := h.Subscribe(context.Background(), c)

	for i := 0; i < 4; i++ {
		h.Publish(context.Background())
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("slow consumer was not disconnected")
	}
	if !errors.Is(s.Err(), ErrSlowConsumer) {
		t.Fatalf("removal reason %v, want ErrSlowConsumer", s.Err())
	}
}

func TestUnsubscribeClosesConn(t *testing.T) {
	h := New(newTestStore(2), Options{})
	defer h.Close()
	c := newFakeConn()
	s, _ := h.Subscribe(context.Background(), c)
	h.Unsubscribe(s)
	h.Unsubscribe(s)
	if s.Err() != nil {
		t.Fatalf("normal unsubscribe should have nil reason, got %v", s.Err())
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed || h.Len() != 0 {
		t.Fatalf("conn closed=%v, registry=%d", closed, h.Len())
	}
	if h.Stats().Removed != 1 {
		t.Fatalf("removed counter %d, want 1", h.Stats().Removed)
	}
}

func TestCloseStopsEverything(t *testing.T) {
	h := New(newTestStore(2), Options{PublishInterval: time.Millisecond})
	c := newFakeConn()
	s, _ := h.Subscribe(context.Background(), c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return h.Stats().Published > 0 })
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	<-s.Done()
	if !errors.Is(s.Err(), ErrClosed) {
		t.Fatalf("subscriber reason %v, want ErrClosed", s.Err())
	}
	if _, err := h.Subscribe(context.Background(), newFakeConn()); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe after close: %v", err)
	}
	if err := h.Publish(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	h := New(newTestStore(1), Options{})
	if h.opts != DefaultOptions() {
		t.Fatalf("defaults not applied: %+v", h.opts)
	}
}
