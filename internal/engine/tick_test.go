package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	sim := NewSimulation(venue.Reference(), 200, 3)
	mon := NewMonitor(sim, risk.NewService(risk.NewHeuristic(3, 0), sim.Registry, nil), nil)
	e := NewEngine(sim, mon, 200, nil)
	t.Cleanup(e.Stop)
	return e
}

func waitForTick(t *testing.T, e *Engine, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for e.Sim.CurrentTick() < want {
		if time.Now().After(deadline) {
			t.Fatalf("tick stuck at %d", e.Sim.CurrentTick())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestToggleMonitorRequiresRunning(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ToggleMonitor(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if e.Monitor.Active() {
		t.Fatalf("monitor activated while stopped")
	}
}

func TestEngineLifecycle(t *testing.T) {
	e := newTestEngine(t)
	e.Start()
	if !e.Running() {
		t.Fatalf("engine not running after Start")
	}
	waitForTick(t, e, 3)

	active, err := e.ToggleMonitor()
	if err != nil || !active {
		t.Fatalf("toggle on: active=%v err=%v", active, err)
	}
	e.Monitor.Check(t.Context())

	e.Stop()
	if e.Running() || e.Monitor.Active() {
		t.Fatalf("stop left running=%v monitor=%v", e.Running(), e.Monitor.Active())
	}
	if len(e.Monitor.Alerts()) != 0 {
		t.Fatalf("stop did not clear alerts")
	}
	stoppedAt := e.Sim.CurrentTick()
	agentsBefore := e.Sim.Snapshot().Agents

	// Restart resumes the same crowd.
	e.Start()
	waitForTick(t, e, stoppedAt+1)
	after := e.Sim.Snapshot().Agents
	if len(after) != len(agentsBefore) || after[0].ID != agentsBefore[0].ID {
		t.Fatalf("restart replaced the population")
	}

	e.Reset()
	if e.Running() || e.Sim.CurrentTick() != 0 || len(e.Sim.Snapshot().Agents) != 0 {
		t.Fatalf("reset left tick %d agents %d", e.Sim.CurrentTick(), len(e.Sim.Snapshot().Agents))
	}
}

func TestToggleMonitorOff(t *testing.T) {
	e := newTestEngine(t)
	e.Start()
	if on, _ := e.ToggleMonitor(); !on {
		t.Fatalf("expected monitor on")
	}
	if on, err := e.ToggleMonitor(); on || err != nil {
		t.Fatalf("expected monitor off, got on=%v err=%v", on, err)
	}
}
