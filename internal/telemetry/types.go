// Telemetry export rows with greptime tags
package telemetry

import "time"

// TelemetryRow is one drone's state at one snapshot, as written to sinks.
type TelemetryRow struct {
	ClusterID   string    `json:"cluster_id"`  // TAG
	DroneID     string    `json:"drone_id"`    // TAG
	Name        string    `json:"name"`        // FIELD
	Status      string    `json:"status"`      // FIELD
	Temperature float64   `json:"temperature"` // FIELD
	Battery     float64   `json:"battery"`     // FIELD
	Signal      float64   `json:"signal"`      // FIELD
	Timestamp   time.Time `json:"ts"`          // TIME INDEX
}

// TelemetryTableName is the GreptimeDB table used when the sink config names
// none.
const TelemetryTableName = "drone_telemetry"
