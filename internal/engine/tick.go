// Package engine provides the frame clock, the stampede controller, the zone
// aggregator and the risk monitor loop.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/crowdwatch/internal/metrics"
)

// DefaultFrameRate is the tick frequency in Hz.
const DefaultFrameRate = 60

// Engine drives the simulation forward and owns the monitor's lifecycle.
type Engine struct {
	Sim           *Simulation
	Monitor       *Monitor
	FrameInterval time.Duration
	Metrics       *metrics.Metrics

	mu       sync.Mutex // guards tickTask and lifecycle transitions
	tickTask *Task
	running  atomic.Bool
}

// NewEngine creates an engine ticking at frameRate Hz.
func NewEngine(sim *Simulation, mon *Monitor, frameRate float64, m *metrics.Metrics) *Engine {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Engine{
		Sim:           sim,
		Monitor:       mon,
		FrameInterval: time.Duration(float64(time.Second) / frameRate),
		Metrics:       m,
	}
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Start spawns the population if needed and starts the tick loop. Starting a
// running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return
	}

	e.Sim.Populate()
	e.tickTask = Every(context.Background(), e.FrameInterval, func(context.Context) {
		e.step()
	})
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "interval", e.FrameInterval)
}

// Stop halts the tick loop, forces the monitor idle and clears its alerts.
// The population is kept.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.running.Load() {
		e.tickTask.Cancel()
		e.tickTask = nil
		e.running.Store(false)
		slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick())
	}
	e.Monitor.Deactivate()
}

// Reset stops everything and returns the simulation to its initial empty
// state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.Sim.Reset()
}

// ToggleMonitor flips the monitor between idle and active and returns the new
// state. Activation requires a running simulation.
func (e *Engine) ToggleMonitor() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.Monitor.Active() {
		e.Monitor.Deactivate()
		return false, nil
	}
	if !e.running.Load() {
		return false, ErrNotRunning
	}
	e.Monitor.Activate()
	return true, nil
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	start := time.Now()
	snap := e.Sim.Step()
	e.Metrics.ObserveTick(time.Since(start), len(snap.Agents), dangerCount(snap.Zones))
}
