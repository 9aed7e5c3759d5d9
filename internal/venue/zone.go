// Package venue provides the static zone geometry of a venue: rectangles,
// entry/exit designation, and the adjacency table used for risk features.
package venue

import "fmt"

// Rect is an axis-aligned zone rectangle in venue coordinates.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Area returns width × height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Zone is a fixed region of the venue. Zones never change after startup.
type Zone struct {
	ID        int    `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Rect      `yaml:",inline"`
	EntryExit bool `json:"is_entry_exit" yaml:"entry_exit"`
}

func (z Zone) String() string {
	return fmt.Sprintf("Zone(%d %q)", z.ID, z.Name)
}

// ZoneStats is a zone plus the fields recomputed every aggregation cycle.
type ZoneStats struct {
	Zone
	PeopleCount  int     `json:"people_count"`
	Density      float64 `json:"density"`
	AverageSpeed float64 `json:"average_speed"`
	Danger       bool    `json:"is_stampede_zone"`
}

// OccupancyRatio is the occupant count over the zone area. It equals Density
// whenever the stats were produced by the aggregator.
func (s ZoneStats) OccupancyRatio() float64 {
	area := s.Area()
	if area <= 0 {
		return 0
	}
	return float64(s.PeopleCount) / area
}

// Baseline returns zero-valued stats for every zone, in registry order.
func Baseline(r *Registry) []ZoneStats {
	out := make([]ZoneStats, 0, r.Len())
	for _, z := range r.Zones() {
		out = append(out, ZoneStats{Zone: z})
	}
	return out
}
