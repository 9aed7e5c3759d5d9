package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/venue"
)

const exitRushDescription = "Panic! People rushing to exits"

// TriggerStampede injects a random scenario: an exit rush or an incident in
// a uniformly chosen zone other than the entry/exit.
func (s *Simulation) TriggerStampede() (agents.Condition, error) {
	var cond agents.Condition
	if s.ctlRng.Float64() < 0.5 {
		cond = agents.Condition{
			Kind:         agents.ExitRush,
			TargetZoneID: s.Registry.EntryExit().ID,
		}
	} else {
		candidates := s.Registry.NonEntryExit()
		if len(candidates) == 0 {
			return agents.Condition{}, fmt.Errorf("trigger stampede: %w: venue has only the entry/exit zone", ErrUnknownZone)
		}
		z := candidates[s.ctlRng.Intn(len(candidates))]
		cond = agents.Condition{
			Kind:         agents.ZoneIncident,
			TargetZoneID: z.ID,
		}
	}
	return s.InjectStampede(cond)
}

// InjectStampede makes cond the active condition, replacing any previous one,
// and flags exactly the target zone as danger. The flag holds until the next
// tick's aggregation recomputes it. An exit rush always targets the
// entry/exit zone; 0 selects it and any other zone is rejected.
func (s *Simulation) InjectStampede(cond agents.Condition) (agents.Condition, error) {
	if !cond.Kind.Valid() {
		return agents.Condition{}, fmt.Errorf("inject stampede: %w: %q", ErrUnknownKind, cond.Kind)
	}
	if cond.Kind == agents.ExitRush {
		exit := s.Registry.EntryExit().ID
		if cond.TargetZoneID == 0 {
			cond.TargetZoneID = exit
		}
		if cond.TargetZoneID != exit {
			return agents.Condition{}, fmt.Errorf("inject stampede: %w: exit rush must target entry/exit zone %d, got %d", ErrUnknownZone, exit, cond.TargetZoneID)
		}
	}
	target, ok := s.Registry.Get(cond.TargetZoneID)
	if !ok {
		return agents.Condition{}, fmt.Errorf("inject stampede: %w: %d", ErrUnknownZone, cond.TargetZoneID)
	}
	if cond.Description == "" {
		cond.Description = describe(cond.Kind, target)
	}

	c := cond
	s.condition.Store(&c)
	s.updateZones(&c, func(z *venue.ZoneStats) {
		z.Danger = z.ID == c.TargetZoneID
	})

	slog.Info("stampede injected", "type", c.Kind, "zone", c.TargetZoneID, "description", c.Description)
	return c, nil
}

// ClearStampede removes the active condition and clears every danger flag.
func (s *Simulation) ClearStampede() {
	s.condition.Store(nil)
	s.updateZones(nil, func(z *venue.ZoneStats) {
		z.Danger = false
	})
	slog.Info("stampede cleared")
}

func describe(kind agents.ConditionKind, target venue.Zone) string {
	if kind == agents.ExitRush {
		return exitRushDescription
	}
	return fmt.Sprintf("Incident in %s!", target.Name)
}
