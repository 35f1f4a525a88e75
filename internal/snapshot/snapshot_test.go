package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"dronefleet/internal/fleet"
)

func newService(t *testing.T) (*Service, *fleet.Store) {
	t.Helper()
	store := fleet.NewStore(fleet.Generate(3, "Drone-", rand.New(rand.NewSource(7)), []byte("png")))
	return NewService(store), store
}

func TestMetadataMatchesFleetOrder(t *testing.T) {
	svc, store := newService(t)
	meta := svc.Metadata()
	full := store.ListFull()
	if len(meta) != 3 {
		t.Fatalf("got %d entries, want 3", len(meta))
	}
	for i := range meta {
		if meta[i].ID != full[i].ID || meta[i].Name != full[i].Name || meta[i].Status != full[i].Status {
			t.Fatalf("entry %d mismatch: %+v vs %+v", i, meta[i], full[i].Meta())
		}
	}
}

func TestMetadataOmitsTelemetry(t *testing.T) {
	svc, _ := newService(t)
	b, err := json.Marshal(svc.Metadata())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"battery", "temperature", "signal", "image"} {
		if strings.Contains(string(b), key) {
			t.Fatalf("metadata leaks %q: %s", key, b)
		}
	}
}

func TestVitals(t *testing.T) {
	svc, store := newService(t)
	d := store.ListFull()[1]
	v, err := svc.Vitals(d.ID)
	if err != nil {
		t.Fatalf("vitals: %v", err)
	}
	if v != d.Telemetry {
		t.Fatalf("vitals %+v, want %+v", v, d.Telemetry)
	}
	if _, err := svc.Vitals("no-such-drone"); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}

func TestFeed(t *testing.T) {
	svc, store := newService(t)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	id := store.ListMeta()[0].ID

	f, err := svc.Feed(id)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if string(f.Image) != "png" || !f.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected feed: %+v", f)
	}
	b, _ := json.Marshal(f)
	var wire struct {
		ImageBase64 string `json:"imageBase64"`
		Timestamp   string `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire.ImageBase64 != base64.StdEncoding.EncodeToString([]byte("png")) {
		t.Fatalf("image encoded as %q", wire.ImageBase64)
	}
	if _, err := svc.Feed("missing"); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
}
