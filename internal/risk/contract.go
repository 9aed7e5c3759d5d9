// Package risk scores zone statistics for stampede risk and turns positive
// verdicts into severity-ranked alerts with a redirection suggestion.
// The scoring backend is pluggable behind the Scorer contract.
package risk

import "context"

// Request is the per-zone feature record sent to a scoring backend.
type Request struct {
	ZoneID          int     `json:"zone_id"`
	Density         float64 `json:"density"`
	AverageSpeed    float64 `json:"average_speed"`
	PeopleCount     int     `json:"people_count"`
	IsEntryExit     bool    `json:"is_entry_exit"`
	AdjacentZoneIDs []int   `json:"adjacent_zone_ids"`
}

// Response is a scoring backend's verdict for one zone. Prediction, when
// present, is a risk score in [0, 1]. SafeZones is an optional hint.
type Response struct {
	IsStampede bool     `json:"is_stampede"`
	Prediction *float64 `json:"prediction,omitempty"`
	SafeZones  []int    `json:"safe_zones,omitempty"`
}

// Scorer evaluates one zone. Implementations must be safe for concurrent use;
// the service calls Score for every zone of a cycle in parallel.
type Scorer interface {
	Score(ctx context.Context, req Request) (Response, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, req Request) (Response, error)

func (f ScorerFunc) Score(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
