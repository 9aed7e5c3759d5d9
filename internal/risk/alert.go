package risk

import "time"

// Severity ranks an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor maps a score to a severity: [0, 0.4) low, [0.4, 0.7) medium,
// [0.7, 1] high.
func SeverityFor(score float64) Severity {
	switch {
	case score < 0.4:
		return SeverityLow
	case score < 0.7:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// DefaultScore is used when a backend flags a stampede without a score.
const DefaultScore = 0.9

// Alert is an advisory produced by a risk cycle for one zone.
type Alert struct {
	ID              string    `json:"id"`
	ZoneID          int       `json:"zone_id"`
	ZoneName        string    `json:"zone_name"`
	Severity        Severity  `json:"severity"`
	Score           float64   `json:"prediction"`
	CreatedAt       time.Time `json:"timestamp"`
	SafeZoneID      *int      `json:"suggested_safe_zone,omitempty"`
	SafeZoneName    string    `json:"suggested_safe_zone_name,omitempty"`
	RedirectMessage string    `json:"redirect_message"`
}

// Age returns how old the alert is at now.
func (a Alert) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}
