package risk

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talgya/crowdwatch/internal/venue"
)

func referenceStats(reg *venue.Registry) []venue.ZoneStats {
	out := venue.Baseline(reg)
	for i := range out {
		out[i].PeopleCount = 100
		out[i].Density = 100 / out[i].Area()
		out[i].AverageSpeed = 0.003
	}
	return out
}

func newTestService(scorer Scorer) *Service {
	s := NewService(scorer, venue.Reference(), nil)
	var n atomic.Int64
	s.NewID = func() string {
		return fmt.Sprintf("alert-%d", n.Add(1))
	}
	return s
}

func TestPredictSkipsFailedZones(t *testing.T) {
	scorer := ScorerFunc(func(_ context.Context, req Request) (Response, error) {
		if req.ZoneID == 3 {
			return Response{}, errors.New("backend unavailable")
		}
		p := 0.95
		return Response{IsStampede: true, Prediction: &p}, nil
	})
	svc := newTestService(scorer)
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	alerts := svc.Predict(context.Background(), referenceStats(svc.Registry), at)
	if len(alerts) != 5 {
		t.Fatalf("expected 5 alerts (zone 3 failed), got %d", len(alerts))
	}
	ids := map[string]bool{}
	for i, a := range alerts {
		if ids[a.ID] {
			t.Fatalf("duplicate alert id %q", a.ID)
		}
		ids[a.ID] = true
		if a.ZoneID == 3 {
			t.Fatalf("failed zone produced an alert")
		}
		if i > 0 && alerts[i-1].ZoneID >= a.ZoneID {
			t.Fatalf("alerts not in zone order: %v", alerts)
		}
		if !a.CreatedAt.Equal(at) || a.Severity != SeverityHigh {
			t.Fatalf("unexpected alert %+v", a)
		}
	}
}

func TestPredictDefaultsMissingScore(t *testing.T) {
	scorer := ScorerFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{IsStampede: req.ZoneID == 2}, nil
	})
	svc := newTestService(scorer)
	alerts := svc.Predict(context.Background(), referenceStats(svc.Registry), time.Now())
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Score != DefaultScore || a.Severity != SeverityHigh || a.ZoneName != "Central Field" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if a.SafeZoneID == nil || a.RedirectMessage == "" {
		t.Fatalf("expected a redirect suggestion: %+v", a)
	}
}

func TestPredictEvacuatesWithoutSafeZone(t *testing.T) {
	scorer := ScorerFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{IsStampede: req.ZoneID == 1}, nil
	})
	svc := newTestService(scorer)
	zones := referenceStats(svc.Registry)
	for i := range zones {
		zones[i].Danger = true
	}
	alerts := svc.Predict(context.Background(), zones, time.Now())
	if len(alerts) != 1 || alerts[0].SafeZoneID != nil {
		t.Fatalf("expected one alert without safe zone: %+v", alerts)
	}
	if alerts[0].RedirectMessage != "Evacuate North State immediately!" {
		t.Fatalf("unexpected message %q", alerts[0].RedirectMessage)
	}
}

func TestBuildRequestUsesAdjacency(t *testing.T) {
	svc := newTestService(nil)
	zones := referenceStats(svc.Registry)
	req := svc.BuildRequest(zones[0])
	if req.ZoneID != 1 || !req.IsEntryExit || len(req.AdjacentZoneIDs) != 3 {
		t.Fatalf("unexpected request %+v", req)
	}
	req.AdjacentZoneIDs[0] = 99
	if svc.Registry.Adjacent(1)[0] == 99 {
		t.Fatalf("request aliases the registry adjacency table")
	}
}

func TestHeuristicScores(t *testing.T) {
	h := NewHeuristic(1, 0)
	for i := 0; i < 200; i++ {
		resp, err := h.Score(context.Background(), Request{Density: 0.9, AverageSpeed: 0.01})
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if !resp.IsStampede || *resp.Prediction < 0.8 || *resp.Prediction > 1 {
			t.Fatalf("dangerous zone scored %+v", resp)
		}
		resp, _ = h.Score(context.Background(), Request{Density: 0.9, AverageSpeed: 0.005})
		if resp.IsStampede || *resp.Prediction < 0.1 || *resp.Prediction > 0.4 {
			t.Fatalf("slow zone scored %+v", resp)
		}
	}
}

func TestHeuristicLatencyHonorsContext(t *testing.T) {
	h := NewHeuristic(1, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Score(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
