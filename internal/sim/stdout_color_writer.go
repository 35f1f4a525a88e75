// ColorStdoutWriter prints human-friendly, colorized telemetry to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"dronefleet/internal/fleet"
	"dronefleet/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints telemetry rows using ANSI colors.
type ColorStdoutWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter() *ColorStdoutWriter {
	return &ColorStdoutWriter{out: os.Stdout}
}

// statusColor maps a drone status to the color used for it.
func statusColor(status string) string {
	switch fleet.Status(status) {
	case fleet.StatusPaused:
		return colorYellow
	case fleet.StatusReturning:
		return colorMagenta
	default:
		return colorGreen
	}
}

func batteryColor(b float64) string {
	if b <= LowBatteryThreshold {
		return colorRed
	}
	return colorCyan
}

// Write outputs a single telemetry row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.TelemetryRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.write(row)
}

func (w *ColorStdoutWriter) write(row telemetry.TelemetryRow) error {
	_, err := fmt.Fprintf(w.out, "%s[%s]%s %scluster=%s%s drone=%s %sname=%s%s %stemp=%.1f%s %sbatt=%.0f%s %ssignal=%.0f%s %sstatus=%s%s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, row.ClusterID, colorReset,
		row.DroneID,
		colorCyan, row.Name, colorReset,
		colorYellow, row.Temperature, colorReset,
		batteryColor(row.Battery), row.Battery, colorReset,
		colorMagenta, row.Signal, colorReset,
		statusColor(row.Status), row.Status, colorReset)
	return err
}

// WriteBatch outputs multiple telemetry rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range rows {
		if err := w.write(r); err != nil {
			return err
		}
	}
	return nil
}
