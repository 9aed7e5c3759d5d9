// Agent spawning: creates the initial crowd spread uniformly over the venue.
package agents

import (
	"math"

	"github.com/talgya/crowdwatch/internal/entropy"
	"github.com/talgya/crowdwatch/internal/venue"
)

const (
	minSpeed   = 0.002
	speedRange = 0.003
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    entropy.Source
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    entropy.Derive(seed, 300),
		nextID: 1,
	}
}

// SpawnPopulation creates count agents, each placed in a uniformly chosen zone
// at a uniform local position.
func (s *Spawner) SpawnPopulation(count int, reg *venue.Registry) []Agent {
	zones := reg.Zones()
	out := make([]Agent, 0, count)
	for i := 0; i < count; i++ {
		zone := zones[s.rng.Intn(len(zones))]
		out = append(out, s.spawnOne(zone.ID))
	}
	return out
}

func (s *Spawner) spawnOne(zoneID int) Agent {
	id := s.nextID
	s.nextID++
	return Agent{
		ID:      id,
		X:       s.rng.Float64(),
		Y:       s.rng.Float64(),
		ZoneID:  zoneID,
		Speed:   minSpeed + s.rng.Float64()*speedRange,
		Heading: s.rng.Float64() * 2 * math.Pi,
	}
}
