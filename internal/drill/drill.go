package drill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/risk"
)

// Plan describes one drill.
type Plan struct {
	// Condition to inject; nil lets the service pick one at random.
	Condition *agents.Condition
	// CheckInterval is applied to the monitor before injecting (0 keeps it).
	CheckInterval int
	// Timeout bounds the wait for the first alert.
	Timeout time.Duration
	// Poll is the alert polling period.
	Poll time.Duration
	// StopAfter stops the simulation when the drill ends.
	StopAfter bool
}

// Report is the outcome of a drill.
type Report struct {
	Injected   agents.Condition
	InjectedAt time.Time
	FirstAlert *risk.Alert
	Latency    time.Duration
	Assessment *Assessment
	Agents     int
}

// Detected reports whether the monitor raised an alert in time.
func (r *Report) Detected() bool {
	return r.FirstAlert != nil
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "drill: %s over %s agents\n", r.Injected.Description, humanize.Comma(int64(r.Agents)))
	if !r.Detected() {
		fmt.Fprintf(&b, "  no alert raised (injected %s)\n", humanize.Time(r.InjectedAt))
	} else {
		a := r.FirstAlert
		fmt.Fprintf(&b, "  first alert: zone %d (%s) %s %.2f after %s\n", a.ZoneID, a.ZoneName, a.Severity, a.Score, r.Latency.Round(time.Millisecond))
		fmt.Fprintf(&b, "  advice: %s\n", a.RedirectMessage)
	}
	if r.Assessment != nil {
		fmt.Fprintf(&b, "  level: %s, danger zones %v, high alerts %d\n", r.Assessment.CrisisLevel, r.Assessment.DangerZones, r.Assessment.HighAlerts)
	}
	return b.String()
}

// Run executes start → monitor on → inject → wait for the first alert.
func Run(ctx context.Context, obs *Observer, act *Actor, plan Plan) (*Report, error) {
	if plan.Timeout <= 0 {
		plan.Timeout = 2 * time.Minute
	}
	if plan.Poll <= 0 {
		plan.Poll = 500 * time.Millisecond
	}

	if err := act.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if plan.StopAfter {
		defer func() {
			if err := act.Stop(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("drill stop failed", "error", err)
			}
		}()
	}
	if plan.CheckInterval > 0 {
		applied, err := act.SetInterval(ctx, plan.CheckInterval)
		if err != nil {
			return nil, fmt.Errorf("set interval: %w", err)
		}
		slog.Info("check interval set", "seconds", applied)
	}

	before, err := obs.Observe(ctx)
	if err != nil {
		return nil, err
	}
	if !before.Status.MonitorActive {
		if _, err := act.ToggleMonitor(ctx); err != nil {
			return nil, fmt.Errorf("activate monitor: %w", err)
		}
	}
	seen := make(map[string]bool, len(before.Alerts))
	for _, a := range before.Alerts {
		seen[a.ID] = true
	}

	cond, err := act.Inject(ctx, plan.Condition)
	if err != nil {
		return nil, fmt.Errorf("inject: %w", err)
	}
	report := &Report{Injected: cond, InjectedAt: time.Now(), Agents: before.Status.Agents}
	slog.Info("stampede injected", "type", cond.Kind, "zone", cond.TargetZoneID)

	waitCtx, cancel := context.WithTimeout(ctx, plan.Timeout)
	defer cancel()
	ticker := time.NewTicker(plan.Poll)
	defer ticker.Stop()

wait:
	for {
		alerts, err := obs.Alerts(waitCtx)
		if err == nil {
			if first := firstNew(alerts, seen); first != nil {
				report.FirstAlert = first
				report.Latency = time.Since(report.InjectedAt)
				break wait
			}
		} else if waitCtx.Err() == nil {
			slog.Warn("alert poll failed", "error", err)
		}
		select {
		case <-waitCtx.Done():
			break wait
		case <-ticker.C:
		}
	}

	after, err := obs.Observe(ctx)
	if err != nil {
		return report, err
	}
	report.Assessment = Triage(after)
	return report, nil
}

// firstNew returns the earliest, most severe alert not in seen.
func firstNew(alerts []risk.Alert, seen map[string]bool) *risk.Alert {
	var best *risk.Alert
	for i := range alerts {
		a := &alerts[i]
		if seen[a.ID] {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) || (a.CreatedAt.Equal(best.CreatedAt) && a.Score > best.Score) {
			best = a
		}
	}
	return best
}
