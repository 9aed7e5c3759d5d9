// Package agents provides the crowd agent model, population spawning, and the
// per-tick movement rule.
package agents

import (
	"fmt"
	"strconv"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

func (id AgentID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Agent is one simulated person. X and Y are fractional coordinates in the
// local frame of the agent's zone and always lie in [0, 1].
type Agent struct {
	ID      AgentID `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ZoneID  int     `json:"zone_id"`
	Speed   float64 `json:"speed"`   // Base step length per tick, in local-frame units
	Heading float64 `json:"heading"` // Radians

	InStampede bool `json:"is_in_stampede"`
	Panicking  bool `json:"is_panicking"`
}

// ConditionKind enumerates the stampede scenarios an operator can inject.
type ConditionKind string

const (
	ExitRush     ConditionKind = "exit_rush"
	ZoneIncident ConditionKind = "zone_incident"
)

// Valid reports whether k is a known scenario kind.
func (k ConditionKind) Valid() bool {
	return k == ExitRush || k == ZoneIncident
}

// Condition is an active stampede scenario.
type Condition struct {
	Kind         ConditionKind `json:"type"`
	TargetZoneID int           `json:"target_zone_id"`
	Description  string        `json:"description"`
}

// Involves reports whether agents standing in zoneID take part in the
// stampede. An exit rush sweeps the whole venue; a zone incident only affects
// its target zone. A nil condition involves nobody.
func (c *Condition) Involves(zoneID int) bool {
	if c == nil {
		return false
	}
	switch c.Kind {
	case ExitRush:
		return true
	case ZoneIncident:
		return zoneID == c.TargetZoneID
	default:
		return false
	}
}

func (c *Condition) String() string {
	if c == nil {
		return "none"
	}
	return fmt.Sprintf("%s(zone=%d)", c.Kind, c.TargetZoneID)
}
