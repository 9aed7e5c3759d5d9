package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

// fixedZones serves a canned zone table.
type fixedZones []venue.ZoneStats

func (f fixedZones) ZoneStats() []venue.ZoneStats { return f }

// crushInCentralField returns the reference venue with zone 2 dense and fast
// and every other zone nearly empty.
func crushInCentralField() fixedZones {
	zones := venue.Baseline(venue.Reference())
	for i := range zones {
		z := &zones[i]
		if z.ID == 2 {
			z.Density, z.AverageSpeed = 0.9, 0.01
		} else {
			z.Density, z.AverageSpeed = 0.01, 0.003
		}
		z.PeopleCount = int(z.Density * z.Area())
	}
	return zones
}

type recordingSink struct {
	mu    sync.Mutex
	calls [][]risk.Alert
}

func (r *recordingSink) Record(_ context.Context, alerts []risk.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, alerts)
	return nil
}

func newTestMonitor(zones ZoneSource, scorer risk.Scorer) *Monitor {
	svc := risk.NewService(scorer, venue.Reference(), nil)
	return NewMonitor(zones, svc, nil)
}

func TestMonitorCheckRaisesHighAlert(t *testing.T) {
	mon := newTestMonitor(crushInCentralField(), risk.NewHeuristic(7, 0))
	sink := &recordingSink{}
	mon.AddSink("recorder", sink)

	alerts := mon.Check(context.Background())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.ZoneID != 2 || a.Severity != risk.SeverityHigh {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.SafeZoneID == nil || *a.SafeZoneID == 2 {
		t.Fatalf("expected a safe zone other than the source: %+v", a)
	}
	if len(mon.Alerts()) != 1 {
		t.Fatalf("window has %d alerts", len(mon.Alerts()))
	}
	if _, ok := mon.LastCheck(); !ok {
		t.Fatalf("last check not recorded")
	}
	if len(sink.calls) != 1 || len(sink.calls[0]) != 1 {
		t.Fatalf("sink calls = %v", sink.calls)
	}
}

func TestMonitorRetentionWindow(t *testing.T) {
	mon := newTestMonitor(crushInCentralField(), risk.NewHeuristic(7, 0))
	t0 := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	now := t0
	mon.now = func() time.Time { return now }

	mon.Check(context.Background())
	now = t0.Add(30 * time.Second)
	mon.Check(context.Background())
	if n := len(mon.Alerts()); n != 2 {
		t.Fatalf("expected 2 retained alerts at +30s, got %d", n)
	}

	now = t0.Add(61 * time.Second)
	mon.Check(context.Background())
	window := mon.Alerts()
	if len(window) != 2 {
		t.Fatalf("expected 2 retained alerts at +61s, got %d", len(window))
	}
	for _, a := range window {
		if a.Age(now) >= DefaultRetention {
			t.Fatalf("alert from %v survived past retention", a.CreatedAt)
		}
	}
}

func TestMonitorDeactivateClearsAlerts(t *testing.T) {
	mon := newTestMonitor(crushInCentralField(), risk.NewHeuristic(7, 0))
	mon.Check(context.Background())
	mon.Deactivate()
	if len(mon.Alerts()) != 0 {
		t.Fatalf("alerts survived deactivation")
	}
}

func TestMonitorDiscardsCycleAfterDeactivate(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	scorer := risk.ScorerFunc(func(ctx context.Context, req risk.Request) (risk.Response, error) {
		once.Do(func() { close(entered) })
		<-release
		return risk.Response{IsStampede: true}, nil
	})
	mon := newTestMonitor(crushInCentralField(), scorer)

	done := make(chan []risk.Alert)
	go func() { done <- mon.Check(context.Background()) }()

	<-entered
	mon.Deactivate()
	close(release)

	if got := <-done; got != nil {
		t.Fatalf("stale cycle returned %d alerts", len(got))
	}
	if len(mon.Alerts()) != 0 {
		t.Fatalf("stale cycle merged alerts")
	}
	if _, ok := mon.LastCheck(); ok {
		t.Fatalf("stale cycle recorded a check time")
	}
}

func TestMonitorSetIntervalClamps(t *testing.T) {
	mon := newTestMonitor(crushInCentralField(), risk.NewHeuristic(7, 0))
	cases := []struct{ in, want int }{
		{0, 1},
		{-5, 1},
		{1, 1},
		{30, 30},
		{60, 60},
		{100, 60},
	}
	for _, tc := range cases {
		if got := mon.SetInterval(tc.in); got != tc.want {
			t.Fatalf("SetInterval(%d) = %d, want %d", tc.in, got, tc.want)
		}
		if mon.Interval() != tc.want {
			t.Fatalf("Interval() = %d after SetInterval(%d)", mon.Interval(), tc.in)
		}
	}
}

func TestMonitorFiresWhileActive(t *testing.T) {
	mon := newTestMonitor(crushInCentralField(), risk.NewHeuristic(7, 0))
	mon.Unit = 10 * time.Millisecond
	mon.SetInterval(1)

	batches, unsubscribe := mon.Subscribe()
	defer unsubscribe()

	mon.Activate()
	defer mon.Deactivate()

	select {
	case batch := <-batches:
		if len(batch) != 1 || batch[0].ZoneID != 2 {
			t.Fatalf("unexpected batch %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no firing within 2s")
	}

	// Rescheduling keeps the monitor active.
	mon.SetInterval(2)
	if !mon.Active() {
		t.Fatalf("monitor went idle after interval change")
	}
}
