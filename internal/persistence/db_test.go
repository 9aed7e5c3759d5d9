package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/crowdwatch/internal/risk"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAlerts(at time.Time) []risk.Alert {
	safe := 5
	return []risk.Alert{
		{
			ID: "a-1", ZoneID: 2, ZoneName: "Central Field", Severity: risk.SeverityHigh,
			Score: 0.93, CreatedAt: at, SafeZoneID: &safe, SafeZoneName: "South Stand",
			RedirectMessage: "Move south to South Stand (97% capacity available)",
		},
		{
			ID: "a-2", ZoneID: 1, ZoneName: "North State", Severity: risk.SeverityMedium,
			Score: 0.5, CreatedAt: at.Add(time.Second),
			RedirectMessage: "Evacuate North State immediately!",
		},
	}
}

func TestSaveAndRecentAlerts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 19, 30, 0, 0, time.UTC)

	if err := db.Record(ctx, sampleAlerts(at)); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Duplicate ids are ignored.
	if err := db.SaveAlerts(ctx, sampleAlerts(at)); err != nil {
		t.Fatalf("resave: %v", err)
	}

	got, err := db.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	if got[0].ID != "a-2" || got[0].SafeZoneID != nil {
		t.Fatalf("newest alert = %+v", got[0])
	}
	first := got[1]
	if first.SafeZoneID == nil || *first.SafeZoneID != 5 || !first.CreatedAt.Equal(at) || first.Severity != risk.SeverityHigh {
		t.Fatalf("round-tripped alert = %+v", first)
	}

	limited, err := db.RecentAlerts(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit: %d alerts, err %v", len(limited), err)
	}

	counts, err := db.AlertCounts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[1] != 1 || counts[2] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 19, 30, 0, 0, time.UTC)

	for i, desc := range []string{"simulation started", "stampede injected"} {
		if err := db.SaveEvent(ctx, Event{At: at.Add(time.Duration(i) * time.Second), Category: "control", Description: desc}); err != nil {
			t.Fatalf("save event: %v", err)
		}
	}
	events, err := db.RecentEvents(ctx, 5)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 2 || events[0].Description != "stampede injected" {
		t.Fatalf("events = %+v", events)
	}

	if err := db.SaveRunInfo(42, 1000, at); err != nil {
		t.Fatalf("run info: %v", err)
	}
	if v, err := db.GetMeta("seed"); err != nil || v != "42" {
		t.Fatalf("seed meta = %q, %v", v, err)
	}
}
