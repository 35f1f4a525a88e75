package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Subscriber is one registered connection.
type Subscriber struct {
	id   uint64
	hub  *Hub
	conn Conn
	log  *slog.Logger

	// initFrame is written before anything in queue and never competes
	// with updates for queue space.
	initFrame Frame

	mu        sync.Mutex
	queue     chan Frame
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func newSubscriber(h *Hub, id uint64, c Conn, initFrame Frame, log *slog.Logger) *Subscriber {
	return &Subscriber{
		id:        id,
		hub:       h,
		conn:      c,
		log:       log.With("subscriber", id),
		initFrame: initFrame,
		queue:     make(chan Frame, h.opts.QueueDepth),
		done:      make(chan struct{}),
	}
}

// Done is closed once s has been removed from the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Err returns why s was removed: nil for a normal unsubscribe, the transport
// error, ErrSlowConsumer or ErrClosed.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// offer queues f without blocking. Under DropOldest the oldest queued frame
// makes room; under Disconnect a full queue returns false.
func (s *Subscriber) offer(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return true
	default:
	}
	for {
		select {
		case s.queue <- f:
			return true
		default:
		}
		if s.hub.opts.SlowConsumer == Disconnect {
			return false
		}
		select {
		case <-s.queue:
			s.hub.dropped.Add(1)
			s.log.Warn("dropped oldest queued snapshot")
		default:
		}
	}
}

func (s *Subscriber) run() {
	defer s.hub.wg.Done()
	ping := time.NewTicker(s.hub.opts.PingInterval)
	defer ping.Stop()

	if err := s.send(s.initFrame); err != nil {
		s.hub.remove(s, err)
		return
	}
	for {
		select {
		case <-s.done:
			return
		case f := <-s.queue:
			if err := s.send(f); err != nil {
				s.hub.remove(s, err)
				return
			}
		case <-ping.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.hub.opts.WriteTimeout)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.hub.remove(s, err)
				return
			}
		}
	}
}

func (s *Subscriber) send(f Frame) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.hub.opts.WriteTimeout)
	defer cancel()
	return s.conn.Send(ctx, f)
}

func (s *Subscriber) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = reason
		close(s.done)
		s.mu.Unlock()
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close transport", "err", err)
		}
	})
}
