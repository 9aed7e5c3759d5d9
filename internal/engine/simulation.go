// Simulation holds the crowd state and advances it one frame at a time.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/entropy"
	"github.com/talgya/crowdwatch/internal/venue"
)

// Snapshot is an immutable view of the simulation published after every
// tick. Readers must not modify its slices.
type Snapshot struct {
	Tick      uint64            `json:"tick"`
	Agents    []agents.Agent    `json:"-"`
	Zones     []venue.ZoneStats `json:"zones"`
	Condition *agents.Condition `json:"condition,omitempty"`
	At        time.Time         `json:"at"`
}

// Simulation owns the population and the active stampede condition.
type Simulation struct {
	Registry   *venue.Registry
	Population int
	Seed       int64

	// tickMu serializes Step, Populate and Reset.
	tickMu  sync.Mutex
	rng     entropy.Source
	spawner *agents.Spawner

	// ctlRng drives random stampede triggers.
	ctlRng *entropy.Locked

	condition atomic.Pointer[agents.Condition]

	// publishMu serializes snapshot stores so that a controller write to the
	// zone table never reverts a newer population.
	publishMu sync.Mutex
	snap      atomic.Pointer[Snapshot]
}

// NewSimulation creates an empty simulation over the given venue. Agents are
// spawned by Populate.
func NewSimulation(reg *venue.Registry, population int, seed int64) *Simulation {
	s := &Simulation{
		Registry:   reg,
		Population: population,
		Seed:       seed,
		ctlRng:     entropy.NewLocked(seed ^ 0x5eed),
	}
	s.resetLocked()
	return s
}

// Snapshot returns the latest published state.
func (s *Simulation) Snapshot() *Snapshot {
	return s.snap.Load()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.snap.Load().Tick
}

// Condition returns the active stampede condition, or nil.
func (s *Simulation) Condition() *agents.Condition {
	return s.condition.Load()
}

// ZoneStats recomputes zone statistics from the latest population.
func (s *Simulation) ZoneStats() []venue.ZoneStats {
	return AggregateZones(s.snap.Load().Agents, s.Registry)
}

// Populate spawns the configured population if the venue is empty. A
// population that survived a stop is kept.
func (s *Simulation) Populate() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	cur := s.snap.Load()
	if len(cur.Agents) > 0 {
		return
	}
	pop := s.spawner.SpawnPopulation(s.Population, s.Registry)
	s.publish(&Snapshot{
		Tick:      cur.Tick,
		Agents:    pop,
		Zones:     AggregateZones(pop, s.Registry),
		Condition: s.condition.Load(),
		At:        time.Now(),
	})
	slog.Info("population spawned", "agents", len(pop), "zones", s.Registry.Len())
}

// Step advances every agent by one tick, recomputes the zone table, and
// publishes the result.
func (s *Simulation) Step() *Snapshot {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	cur := s.snap.Load()
	cond := s.condition.Load()

	if stray := s.strayAgents(cur.Agents); stray > 0 {
		slog.Debug("re-homing agents with unknown zone", "tick", cur.Tick+1, "count", stray)
	}

	frame := agents.Frame{Registry: s.Registry, Condition: cond}
	next := agents.StepAll(cur.Agents, frame, s.rng.Int63())

	snap := &Snapshot{
		Tick:      cur.Tick + 1,
		Agents:    next,
		Zones:     AggregateZones(next, s.Registry),
		Condition: cond,
		At:        time.Now(),
	}
	s.publish(snap)
	return snap
}

// Reset clears the condition, removes every agent, zeroes the zone table and
// rewinds the random streams to the seed.
func (s *Simulation) Reset() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.resetLocked()
	slog.Info("simulation reset", "seed", s.Seed)
}

func (s *Simulation) resetLocked() {
	s.rng = entropy.New(s.Seed)
	s.spawner = agents.NewSpawner(s.Seed)
	s.condition.Store(nil)
	s.publish(&Snapshot{
		Zones: venue.Baseline(s.Registry),
		At:    time.Now(),
	})
}

func (s *Simulation) publish(snap *Snapshot) {
	s.publishMu.Lock()
	s.snap.Store(snap)
	s.publishMu.Unlock()
}

// updateZones republishes the latest snapshot with a modified zone table.
func (s *Simulation) updateZones(cond *agents.Condition, fn func(z *venue.ZoneStats)) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	cur := s.snap.Load()
	zones := make([]venue.ZoneStats, len(cur.Zones))
	copy(zones, cur.Zones)
	for i := range zones {
		fn(&zones[i])
	}
	next := *cur
	next.Zones = zones
	next.Condition = cond
	next.At = time.Now()
	s.snap.Store(&next)
}

func (s *Simulation) strayAgents(pop []agents.Agent) int {
	n := 0
	for i := range pop {
		if s.Registry.Index(pop[i].ZoneID) < 0 {
			n++
		}
	}
	return n
}
