package engine

import (
	"testing"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/venue"
)

func TestPopulateAndStep(t *testing.T) {
	sim := newTestSim(t, 500)
	snap := sim.Snapshot()
	if len(snap.Agents) != 500 || snap.Tick != 0 {
		t.Fatalf("populated snapshot: %d agents tick %d", len(snap.Agents), snap.Tick)
	}

	// Populating again keeps the existing crowd.
	sim.Populate()
	if sim.Snapshot() != snap {
		t.Fatalf("second Populate replaced the population")
	}

	for i := 0; i < 10; i++ {
		sim.Step()
	}
	snap = sim.Snapshot()
	if snap.Tick != 10 || len(snap.Agents) != 500 {
		t.Fatalf("after 10 steps: tick %d agents %d", snap.Tick, len(snap.Agents))
	}
	total := 0
	for _, z := range snap.Zones {
		total += z.PeopleCount
	}
	if total != 500 {
		t.Fatalf("zone counts sum to %d", total)
	}
}

func TestStepIsDeterministic(t *testing.T) {
	a := newTestSim(t, 2000)
	b := newTestSim(t, 2000)
	for i := 0; i < 20; i++ {
		a.Step()
		b.Step()
	}
	pa, pb := a.Snapshot().Agents, b.Snapshot().Agents
	for i := range pa {
		if pa[i] != pb[i] {
			t.Fatalf("agent %d diverged: %+v vs %+v", i, pa[i], pb[i])
		}
	}
}

func TestZoneIncidentScenario(t *testing.T) {
	sim := newTestSim(t, 1000)
	if _, err := sim.InjectStampede(agents.Condition{Kind: agents.ZoneIncident, TargetZoneID: 2}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	for i := 0; i < 5; i++ {
		sim.Step()
	}
	snap := sim.Snapshot()
	for _, a := range snap.Agents {
		if (a.ZoneID == 2) != a.Panicking {
			t.Fatalf("agent %s in zone %d panicking=%v", a.ID, a.ZoneID, a.Panicking)
		}
		if a.X < 0 || a.X > 1 || a.Y < 0 || a.Y > 1 {
			t.Fatalf("agent %s out of bounds", a.ID)
		}
	}
	for _, z := range snap.Zones {
		if z.Danger != (z.ID == 2 && z.PeopleCount > 0) {
			t.Fatalf("zone %d danger = %v", z.ID, z.Danger)
		}
	}
}

func TestStepRehomesUnknownZones(t *testing.T) {
	sim := NewSimulation(venue.Reference(), 0, 1)
	sim.publish(&Snapshot{
		Agents: []agents.Agent{{ID: 1, X: 0.5, Y: 0.5, ZoneID: 77, Speed: 0.003}},
		Zones:  venue.Baseline(sim.Registry),
	})
	snap := sim.Step()
	if snap.Agents[0].ZoneID != sim.Registry.Default().ID {
		t.Fatalf("agent not re-homed: zone %d", snap.Agents[0].ZoneID)
	}
	if snap.Zones[0].PeopleCount != 1 {
		t.Fatalf("re-homed agent not counted")
	}
}

func TestReset(t *testing.T) {
	sim := newTestSim(t, 100)
	sim.Step()
	if _, err := sim.TriggerStampede(); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	sim.Reset()

	snap := sim.Snapshot()
	if snap.Tick != 0 || len(snap.Agents) != 0 || sim.Condition() != nil {
		t.Fatalf("reset left state: tick %d agents %d cond %v", snap.Tick, len(snap.Agents), sim.Condition())
	}
	for _, z := range snap.Zones {
		if z.PeopleCount != 0 || z.Danger {
			t.Fatalf("zone %d not zeroed", z.ID)
		}
	}
}
