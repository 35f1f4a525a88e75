package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"dronefleet/internal/telemetry"
)

// ReplayLog replays telemetry rows from r to writer. A speed >0 scales the
// recorded gaps between snapshots; speed <= 0 inserts no delay. Rows with the
// same timestamp are written as one batch.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var (
		batch []telemetry.TelemetryRow
		prev  time.Time
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := writeRows(writer, batch)
		batch = nil
		return err
	}
	for {
		var row telemetry.TelemetryRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return flush()
			}
			return err
		}
		if len(batch) > 0 && !row.Timestamp.Equal(prev) {
			if err := flush(); err != nil {
				return err
			}
			if speed > 0 {
				diff := time.Duration(float64(row.Timestamp.Sub(prev)) / speed)
				if diff > 0 {
					select {
					case <-time.After(diff):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		}
		batch = append(batch, row)
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its telemetry rows.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}
