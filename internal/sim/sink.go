package sim

import (
	"context"
	"fmt"

	"dronefleet/internal/hub"
	"dronefleet/internal/logging"
	"dronefleet/internal/telemetry"
)

// writerConn adapts a TelemetryWriter to a hub subscriber so writers see the
// same frames as network clients. A Send stops waiting on the writer when its
// ctx ends or the conn is closed; a plain writer may finish the abandoned
// write in the background.
type writerConn struct {
	clusterID string
	writer    TelemetryWriter
	closed    context.Context
	cancel    context.CancelFunc
}

func newWriterConn(clusterID string, w TelemetryWriter) *writerConn {
	closed, cancel := context.WithCancel(context.Background())
	return &writerConn{clusterID: clusterID, writer: w, closed: closed, cancel: cancel}
}

func (c *writerConn) Send(ctx context.Context, f hub.Frame) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.closed, cancel)
	defer stop()

	rows := Rows(c.clusterID, f.Drones, f.CapturedAt)
	if cw, ok := c.writer.(contextBatchWriter); ok {
		return cw.WriteBatchContext(ctx, rows)
	}
	errc := make(chan error, 1)
	go func() { errc <- writeRows(c.writer, rows) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("write telemetry: %w", ctx.Err())
	}
}

func (c *writerConn) Ping(context.Context) error { return nil }

func (c *writerConn) Close() error {
	c.cancel()
	return nil
}

// AttachWriter subscribes w to the hub. Every init and update frame is
// written as one batch of rows. A write error detaches the writer.
func (s *Simulator) AttachWriter(ctx context.Context, name string, w TelemetryWriter) (*hub.Subscriber, error) {
	ctx = logging.NewContext(ctx, logging.FromContext(ctx).With("sink", name))
	return s.hub.Subscribe(ctx, newWriterConn(s.clusterID, w))
}

// Batch support if writer implements WriteBatch
func writeRows(w TelemetryWriter, rows []telemetry.TelemetryRow) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
