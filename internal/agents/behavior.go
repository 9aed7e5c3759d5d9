// Movement rule: one step per tick for one agent.
// The rule reads only the agent, the frozen venue, and the active condition;
// all randomness comes from the supplied source.
package agents

import (
	"math"

	"github.com/talgya/crowdwatch/internal/entropy"
	"github.com/talgya/crowdwatch/internal/venue"
)

const (
	headingJitterChance = 0.02
	headingJitterMax    = math.Pi / 8

	exitRushJitter     = 0.05
	exitRushMultiplier = 5.0
	incidentJitter     = 0.1

	exitCenterX = 0.5
	exitCenterY = 0.5
)

// Frame is the read-only view of the venue shared by every agent in a tick.
type Frame struct {
	Registry  *venue.Registry
	Condition *Condition
}

// Step returns the agent's state after one tick. The input is not modified.
func Step(a Agent, f Frame, rng entropy.Source) Agent {
	if _, ok := f.Registry.Get(a.ZoneID); !ok {
		a.ZoneID = f.Registry.Default().ID
	}

	a.InStampede = f.Condition.Involves(a.ZoneID)
	if !a.InStampede {
		return wander(a, rng)
	}

	switch f.Condition.Kind {
	case ExitRush:
		if a.ZoneID == f.Registry.EntryExit().ID {
			return jitter(a, exitRushJitter, rng)
		}
		return rushToward(a, exitCenterX, exitCenterY, exitRushMultiplier)
	default:
		return jitter(a, incidentJitter, rng)
	}
}

// wander is the normal random walk with boundary bounce and occasional drift.
func wander(a Agent, rng entropy.Source) Agent {
	nx := a.X + math.Cos(a.Heading)*a.Speed
	ny := a.Y + math.Sin(a.Heading)*a.Speed

	if outside(nx) || outside(ny) {
		a.Heading = rng.Float64() * 2 * math.Pi
		nx = clamp01(nx)
		ny = clamp01(ny)
	}

	if rng.Float64() < headingJitterChance {
		a.Heading = normalizeAngle(a.Heading + entropy.Uniform(rng, -headingJitterMax, headingJitterMax))
	}

	a.X, a.Y = nx, ny
	a.InStampede = false
	a.Panicking = false
	return a
}

// jitter moves the agent by a uniform offset in [-amount, amount] per axis.
func jitter(a Agent, amount float64, rng entropy.Source) Agent {
	a.X = clamp01(a.X + entropy.Uniform(rng, -amount, amount))
	a.Y = clamp01(a.Y + entropy.Uniform(rng, -amount, amount))
	a.Panicking = true
	return a
}

// rushToward steps along the unit vector to (tx, ty) at multiplier × speed,
// never past the target.
func rushToward(a Agent, tx, ty, multiplier float64) Agent {
	a.Panicking = true

	dx := tx - a.X
	dy := ty - a.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return a
	}

	step := math.Min(a.Speed*multiplier, dist)
	a.X = clamp01(a.X + dx/dist*step)
	a.Y = clamp01(a.Y + dy/dist*step)
	return a
}

func outside(v float64) bool {
	return v < 0 || v > 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeAngle(h float64) float64 {
	h = math.Mod(h, 2*math.Pi)
	if h < 0 {
		h += 2 * math.Pi
	}
	return h
}
