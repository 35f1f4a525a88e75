package fleet

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

func newTestStore(t *testing.T, n int) *Store {
	t.Helper()
	return NewStore(Generate(n, "Drone-", rand.New(rand.NewSource(1)), []byte("img")))
}

func TestGenerateInitialTelemetry(t *testing.T) {
	devices := Generate(50, "Drone-", rand.New(rand.NewSource(7)), nil)
	if len(devices) != 50 {
		t.Fatalf("expected 50 drones, got %d", len(devices))
	}
	seen := map[string]bool{}
	for i, d := range devices {
		if seen[d.ID] {
			t.Fatalf("duplicate id %s", d.ID)
		}
		seen[d.ID] = true
		if d.Status != StatusActive {
			t.Errorf("drone %d status %s, want active", i, d.Status)
		}
		if d.Temperature < 40 || d.Temperature > 45 {
			t.Errorf("temperature %f outside initial band", d.Temperature)
		}
		if d.Battery < 80 || d.Battery > 100 {
			t.Errorf("battery %f outside initial band", d.Battery)
		}
		if d.Signal < -60 || d.Signal > -50 {
			t.Errorf("signal %f outside initial band", d.Signal)
		}
	}
	if devices[0].Name != "Drone-1" || devices[49].Name != "Drone-50" {
		t.Errorf("unexpected names %q %q", devices[0].Name, devices[49].Name)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t, 3)
	if _, err := s.Get("nonexistent-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFullReturnsCopies(t *testing.T) {
	s := newTestStore(t, 3)
	list := s.ListFull()
	list[0].Status = StatusReturning
	list[0].Battery = 1
	d, err := s.Get(list[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != StatusActive || d.Battery == 1 {
		t.Fatalf("store was mutated through a listing copy: %+v", d)
	}
}

func TestApplyCommandTransitions(t *testing.T) {
	cases := []struct {
		name    string
		actions []Action
		want    Status
	}{
		{"pause", []Action{ActionPause}, StatusPaused},
		{"return", []Action{ActionReturn}, StatusReturning},
		{"pause then return", []Action{ActionPause, ActionReturn}, StatusReturning},
		{"return then pause", []Action{ActionReturn, ActionPause}, StatusReturning},
		{"pause twice", []Action{ActionPause, ActionPause}, StatusPaused},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, 1)
			id := s.ListMeta()[0].ID
			var got Status
			for _, a := range tc.actions {
				st, err := s.ApplyCommand(id, a)
				if err != nil {
					t.Fatalf("apply %s: %v", a, err)
				}
				got = st
			}
			if got != tc.want {
				t.Fatalf("status %s, want %s", got, tc.want)
			}
			if m := s.ListMeta()[0]; m.Status != tc.want {
				t.Fatalf("stored status %s, want %s", m.Status, tc.want)
			}
		})
	}
}

func TestApplyCommandErrorsLeaveStateUnchanged(t *testing.T) {
	s := newTestStore(t, 3)
	before := s.ListFull()

	if _, err := s.ApplyCommand("unknown", ActionPause); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.ApplyCommand(before[1].ID, "land"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	// unknown id wins over an invalid action
	if _, err := s.ApplyCommand("unknown", "explode"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id with bad action, got %v", err)
	}

	after := s.ListFull()
	for i := range before {
		if before[i].Status != after[i].Status || before[i].Telemetry != after[i].Telemetry {
			t.Fatalf("drone %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestMutateTelemetryClampsAndNeverRecharges(t *testing.T) {
	s := newTestStore(t, 3)
	s.MutateTelemetry(func(_ string, t Telemetry) Telemetry {
		t.Battery = 500
		t.Signal = 10
		return t
	})
	for _, d := range s.ListFull() {
		if d.Battery > 100 {
			t.Errorf("battery recharged to %f", d.Battery)
		}
		if d.Signal != SignalMax {
			t.Errorf("signal %f not clamped to %f", d.Signal, SignalMax)
		}
	}
	s.MutateTelemetry(func(_ string, t Telemetry) Telemetry {
		t.Battery = -20
		t.Signal = -200
		return t
	})
	for _, d := range s.ListFull() {
		if d.Battery != BatteryMin || d.Signal != SignalMin {
			t.Errorf("expected clamped minimums, got %+v", d.Telemetry)
		}
	}
}

func TestListFullIsAtomicWithMutation(t *testing.T) {
	s := newTestStore(t, 20)
	s.MutateTelemetry(func(_ string, t Telemetry) Telemetry {
		t.Temperature = 0
		return t
	})
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		gen := 0.0
		for {
			select {
			case <-stop:
				return
			default:
			}
			gen++
			g := gen
			s.MutateTelemetry(func(_ string, t Telemetry) Telemetry {
				t.Temperature = g
				return t
			})
		}
	}()
	for i := 0; i < 500; i++ {
		list := s.ListFull()
		for _, d := range list[1:] {
			if d.Temperature != list[0].Temperature {
				close(stop)
				wg.Wait()
				t.Fatalf("observed a partially mutated fleet: %f vs %f", d.Temperature, list[0].Temperature)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestPlaceholderImageIsPNG(t *testing.T) {
	img, err := PlaceholderImage(8, 6)
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	if len(img) < 8 || string(img[1:4]) != "PNG" {
		t.Fatalf("expected PNG signature, got %x", img[:8])
	}
}
