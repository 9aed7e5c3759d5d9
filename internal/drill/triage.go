package drill

import (
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

// Crisis levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelCalm     = "CALM"
)

// Assessment holds derived signals computed from a Snapshot.
type Assessment struct {
	DangerZones  []int
	HighAlerts   int
	MediumAlerts int
	DensestZone  venue.ZoneStats
	Unredirected int // alerts with no safe zone suggestion
	CrisisLevel  string
}

// Triage computes an Assessment from the snapshot's data.
func Triage(snap *Snapshot) *Assessment {
	a := &Assessment{CrisisLevel: LevelCalm}

	for _, z := range snap.Zones {
		if z.Danger {
			a.DangerZones = append(a.DangerZones, z.ID)
		}
		if z.Density > a.DensestZone.Density {
			a.DensestZone = z
		}
	}
	for _, al := range snap.Alerts {
		switch al.Severity {
		case risk.SeverityHigh:
			a.HighAlerts++
		case risk.SeverityMedium:
			a.MediumAlerts++
		}
		if al.SafeZoneID == nil {
			a.Unredirected++
		}
	}

	switch {
	case a.Unredirected > 0:
		a.CrisisLevel = LevelCritical
	case a.HighAlerts > 0:
		a.CrisisLevel = LevelWarning
	case a.MediumAlerts > 0 || len(a.DangerZones) > 0:
		a.CrisisLevel = LevelWatch
	}
	return a
}
