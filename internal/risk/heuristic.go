package risk

import (
	"context"
	"time"

	"github.com/talgya/crowdwatch/internal/entropy"
)

// Heuristic thresholds.
const (
	DangerDensity = 0.6
	DangerSpeed   = 0.005
)

// DefaultLatency models the round trip of a remote model call.
const DefaultLatency = 200 * time.Millisecond

// Heuristic is the in-process reference scorer: a zone is dangerous when it
// is both dense and fast-moving. Scores are sampled so repeated calls look
// like model output.
type Heuristic struct {
	Latency time.Duration
	Rand    entropy.Source // must be safe for concurrent use
}

// NewHeuristic returns a heuristic scorer with its own locked random source.
func NewHeuristic(seed int64, latency time.Duration) *Heuristic {
	return &Heuristic{
		Latency: latency,
		Rand:    entropy.NewLocked(seed),
	}
}

func (h *Heuristic) Score(ctx context.Context, req Request) (Response, error) {
	if h.Latency > 0 {
		timer := time.NewTimer(h.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}

	danger := req.Density > DangerDensity && req.AverageSpeed > DangerSpeed

	var score float64
	var hint []int
	if danger {
		score = entropy.Uniform(h.Rand, 0.8, 1.0)
		hint = []int{5, 6}
	} else {
		score = entropy.Uniform(h.Rand, 0.1, 0.4)
	}
	return Response{IsStampede: danger, Prediction: &score, SafeZones: hint}, nil
}
