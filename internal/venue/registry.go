package venue

import (
	"fmt"
	"sort"
)

// Registry holds the venue's zones in ascending id order plus the static
// adjacency table. It is read-only after construction and safe to share.
type Registry struct {
	zones     []Zone
	index     map[int]int
	adjacency map[int][]int
	entryExit int
}

// NewRegistry validates the zones and adjacency table and builds a registry.
// Exactly one zone must be flagged entry/exit; adjacency entries must refer
// to known zones.
func NewRegistry(zones []Zone, adjacency map[int][]int) (*Registry, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("venue has no zones")
	}

	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	r := &Registry{
		zones:     sorted,
		index:     make(map[int]int, len(sorted)),
		adjacency: make(map[int][]int, len(adjacency)),
		entryExit: -1,
	}
	for i, z := range sorted {
		if _, dup := r.index[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %d", z.ID)
		}
		if z.Width <= 0 || z.Height <= 0 {
			return nil, fmt.Errorf("zone %d has empty area", z.ID)
		}
		r.index[z.ID] = i
		if z.EntryExit {
			if r.entryExit >= 0 {
				return nil, fmt.Errorf("zones %d and %d are both entry/exit", sorted[r.entryExit].ID, z.ID)
			}
			r.entryExit = i
		}
	}
	if r.entryExit < 0 {
		return nil, fmt.Errorf("venue has no entry/exit zone")
	}

	for id, adj := range adjacency {
		if _, ok := r.index[id]; !ok {
			return nil, fmt.Errorf("adjacency for unknown zone %d", id)
		}
		ids := make([]int, 0, len(adj))
		for _, other := range adj {
			if _, ok := r.index[other]; !ok {
				return nil, fmt.Errorf("zone %d adjacent to unknown zone %d", id, other)
			}
			ids = append(ids, other)
		}
		r.adjacency[id] = ids
	}
	return r, nil
}

// Zones returns the zones in registry order. The slice must not be modified.
func (r *Registry) Zones() []Zone {
	return r.zones
}

// Len returns the number of zones.
func (r *Registry) Len() int {
	return len(r.zones)
}

// Get returns the zone with the given id.
func (r *Registry) Get(id int) (Zone, bool) {
	i, ok := r.index[id]
	if !ok {
		return Zone{}, false
	}
	return r.zones[i], true
}

// Index returns the registry position of a zone id, or -1.
func (r *Registry) Index(id int) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

// EntryExit returns the venue's entry/exit zone.
func (r *Registry) EntryExit() Zone {
	return r.zones[r.entryExit]
}

// Default returns the zone substituted for unresolvable references.
func (r *Registry) Default() Zone {
	return r.zones[0]
}

// Adjacent returns the ids of zones adjacent to id (nil if none).
func (r *Registry) Adjacent(id int) []int {
	return r.adjacency[id]
}

// NonEntryExit returns every zone not flagged entry/exit, in registry order.
func (r *Registry) NonEntryExit() []Zone {
	out := make([]Zone, 0, len(r.zones)-1)
	for _, z := range r.zones {
		if !z.EntryExit {
			out = append(out, z)
		}
	}
	return out
}
