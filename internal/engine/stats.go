package engine

import (
	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/venue"
)

// DangerShare is the fraction of a zone's occupants that must be panicking or
// caught in a stampede for the zone to be flagged as danger.
const DangerShare = 0.3

// AggregateZones recomputes per-zone statistics from a population, in registry
// order. Agents referring to an unknown zone are not counted.
func AggregateZones(pop []agents.Agent, reg *venue.Registry) []venue.ZoneStats {
	n := reg.Len()
	counts := make([]int, n)
	speeds := make([]float64, n)
	involved := make([]int, n)

	for i := range pop {
		a := &pop[i]
		idx := reg.Index(a.ZoneID)
		if idx < 0 {
			continue
		}
		counts[idx]++
		speeds[idx] += a.Speed
		if a.InStampede || a.Panicking {
			involved[idx]++
		}
	}

	out := venue.Baseline(reg)
	for i := range out {
		c := counts[i]
		out[i].PeopleCount = c
		out[i].Density = float64(c) / out[i].Area()
		out[i].AverageSpeed = speeds[i] / float64(max(c, 1))
		out[i].Danger = float64(involved[i]) > DangerShare*float64(c)
	}
	return out
}

// dangerCount returns how many zones carry the danger flag.
func dangerCount(zones []venue.ZoneStats) int {
	n := 0
	for _, z := range zones {
		if z.Danger {
			n++
		}
	}
	return n
}
