package risk

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/crowdwatch/internal/metrics"
	"github.com/talgya/crowdwatch/internal/venue"
)

// Service evaluates every zone of a cycle and emits alerts.
type Service struct {
	Scorer   Scorer
	Registry *venue.Registry
	Metrics  *metrics.Metrics

	// NewID generates alert ids; defaults to uuid.NewString. Zones are
	// scored concurrently, so it must be safe for concurrent use and never
	// repeat an id.
	NewID func() string
}

// NewService creates a risk service over the given scorer and venue.
func NewService(scorer Scorer, reg *venue.Registry, m *metrics.Metrics) *Service {
	return &Service{
		Scorer:   scorer,
		Registry: reg,
		Metrics:  m,
		NewID:    uuid.NewString,
	}
}

// BuildRequest assembles the feature record for one zone.
func (s *Service) BuildRequest(z venue.ZoneStats) Request {
	adj := s.Registry.Adjacent(z.ID)
	ids := make([]int, len(adj))
	copy(ids, adj)
	return Request{
		ZoneID:          z.ID,
		Density:         z.Density,
		AverageSpeed:    z.AverageSpeed,
		PeopleCount:     z.PeopleCount,
		IsEntryExit:     z.EntryExit,
		AdjacentZoneIDs: ids,
	}
}

// Predict scores all zones concurrently and returns the alerts in zone order.
// A zone whose scoring fails is logged and skipped; the others still count.
// Failures caused by ctx being done are not logged.
// Every alert of the batch is stamped with at.
func (s *Service) Predict(ctx context.Context, zones []venue.ZoneStats, at time.Time) []Alert {
	results := make([]*Alert, len(zones))

	var g errgroup.Group
	for i, z := range zones {
		g.Go(func() error {
			a, err := s.evaluate(ctx, z, zones, at)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Warn("zone scoring failed", "zone", z.ID, "error", err)
				s.Metrics.ScoringFailure(strconv.Itoa(z.ID))
				return nil
			}
			results[i] = a
			return nil
		})
	}
	_ = g.Wait()

	alerts := make([]Alert, 0, len(zones))
	for _, a := range results {
		if a != nil {
			alerts = append(alerts, *a)
		}
	}
	return alerts
}

func (s *Service) evaluate(ctx context.Context, z venue.ZoneStats, all []venue.ZoneStats, at time.Time) (*Alert, error) {
	start := time.Now()
	resp, err := s.Scorer.Score(ctx, s.BuildRequest(z))
	s.Metrics.ObserveScoring(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("score zone %d: %w", z.ID, err)
	}
	if !resp.IsStampede {
		return nil, nil
	}

	score := DefaultScore
	if resp.Prediction != nil {
		score = clamp01(*resp.Prediction)
	}
	if len(resp.SafeZones) > 0 {
		slog.Debug("backend safe zone hint", "zone", z.ID, "hint", resp.SafeZones)
	}

	alert := &Alert{
		ID:        s.NewID(),
		ZoneID:    z.ID,
		ZoneName:  z.Name,
		Severity:  SeverityFor(score),
		Score:     score,
		CreatedAt: at,
	}
	if safe, ok := FindSafeZone(z.ID, all); ok {
		id := safe.ID
		alert.SafeZoneID = &id
		alert.SafeZoneName = safe.Name
		alert.RedirectMessage = RedirectMessage(z.Zone, &safe)
	} else {
		alert.RedirectMessage = RedirectMessage(z.Zone, nil)
	}

	s.Metrics.Alert(string(alert.Severity))
	return alert, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
