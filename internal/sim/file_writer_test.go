package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dronefleet/internal/telemetry"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	fw, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	ts := time.Unix(0, 0).UTC()
	rows := []telemetry.TelemetryRow{
		{ClusterID: "c1", DroneID: "d1", Name: "Drone-1", Status: "active", Temperature: 41.2, Battery: 90, Signal: -55, Timestamp: ts},
		{ClusterID: "c1", DroneID: "d2", Name: "Drone-2", Status: "paused", Temperature: 43.9, Battery: 82, Signal: -51, Timestamp: ts},
	}
	if err := fw.Write(rows[0]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fw.WriteBatch(rows[1:]); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var got []telemetry.TelemetryRow
	for sc.Scan() {
		var row telemetry.TelemetryRow
		if err := json.Unmarshal(sc.Bytes(), &row); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		got = append(got, row)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	for i := range rows {
		if got[i].DroneID != rows[i].DroneID || got[i].Status != rows[i].Status ||
			got[i].Temperature != rows[i].Temperature || !got[i].Timestamp.Equal(rows[i].Timestamp) {
			t.Fatalf("row %d: got %#v, want %#v", i, got[i], rows[i])
		}
	}
}

func TestFileWriterBadPath(t *testing.T) {
	if _, err := NewFileWriter(filepath.Join(t.TempDir(), "missing", "x.jsonl")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
