package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/talgya/crowdwatch/internal/venue"
)

// SafetyThreshold is the occupancy ratio under which a zone may receive
// redirected people.
const SafetyThreshold = 0.3

// FindSafeZone picks the least dense zone that is not the source, not flagged
// as danger, and under SafetyThreshold. Ties go to the lowest zone id.
func FindSafeZone(sourceID int, zones []venue.ZoneStats) (venue.ZoneStats, bool) {
	candidates := lo.Filter(zones, func(z venue.ZoneStats, _ int) bool {
		return z.ID != sourceID && !z.Danger && z.OccupancyRatio() < SafetyThreshold
	})
	if len(candidates) == 0 {
		return venue.ZoneStats{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return lo.MinBy(candidates, func(a, b venue.ZoneStats) bool {
		return a.Density < b.Density
	}), true
}

// Direction returns the compass direction from one zone's center to
// another's. Horizontal wins only when strictly larger than vertical.
func Direction(from, to venue.Zone) string {
	fx, fy := from.Center()
	tx, ty := to.Center()
	dx := tx - fx
	dy := ty - fy

	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return "east"
		}
		return "west"
	}
	if dy > 0 {
		return "south"
	}
	return "north"
}

// RedirectMessage builds the operator-facing instruction for an alert.
func RedirectMessage(danger venue.Zone, safe *venue.ZoneStats) string {
	if safe == nil {
		return fmt.Sprintf("Evacuate %s immediately!", danger.Name)
	}
	capacity := math.Round((1 - safe.Density) * 100)
	return fmt.Sprintf("Move %s to %s (%.0f%% capacity available)", Direction(danger, safe.Zone), safe.Name, capacity)
}
