package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"dronefleet/internal/hub"
	"dronefleet/internal/logging"
)

var errStreamClosed = errors.New("event stream closed")

// sseConn writes hub frames as Server-Sent Events. The response writer may
// only be touched while the handler is running, so writes happen under mu
// and the handler takes mu before returning.
type sseConn struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool

	done chan struct{}
	once sync.Once
}

func newSSEConn(w http.ResponseWriter) *sseConn {
	return &sseConn{w: w, rc: http.NewResponseController(w), done: make(chan struct{})}
}

func (c *sseConn) write(ctx context.Context, format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errStreamClosed
	}
	if err := c.rc.SetWriteDeadline(deadline(ctx)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprintf(c.w, format, args...); err != nil {
		return err
	}
	return c.rc.Flush()
}

func (c *sseConn) Send(ctx context.Context, f hub.Frame) error {
	return c.write(ctx, "event: %s\ndata: %s\n\n", f.Type, f.Payload)
}

func (c *sseConn) Ping(ctx context.Context) error {
	return c.write(ctx, ": ping\n\n")
}

// Close wakes the handler; it does not wait for an in-flight write, which is
// bounded by the write deadline.
func (c *sseConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// finish marks the stream closed once any in-flight write has returned.
func (c *sseConn) finish() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context()).With("transport", "sse", "remote", r.RemoteAddr)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	conn := newSSEConn(w)
	if err := conn.rc.Flush(); err != nil {
		log.Warn("event stream not supported", "err", err)
		return
	}
	sub, err := s.sim.Hub().Subscribe(logging.NewContext(r.Context(), log), conn)
	if err != nil {
		return
	}
	defer conn.finish()

	select {
	case <-r.Context().Done():
		s.sim.Hub().Unsubscribe(sub)
	case <-conn.done:
	}
}
