package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/crowdwatch/internal/metrics"
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

// Check interval bounds, in interval units (seconds in production).
const (
	DefaultCheckInterval = 10
	MinCheckInterval     = 1
	MaxCheckInterval     = 60
)

// DefaultRetention is how long an alert stays in the window.
const DefaultRetention = 60 * time.Second

const sinkTimeout = 5 * time.Second

// ZoneSource provides fresh zone statistics for a monitor firing.
type ZoneSource interface {
	ZoneStats() []venue.ZoneStats
}

// AlertSink receives the new alerts of every firing. Sinks run after the
// window is updated; their errors are logged and counted only.
type AlertSink interface {
	Record(ctx context.Context, alerts []risk.Alert) error
}

type namedSink struct {
	name string
	sink AlertSink
}

// Monitor periodically scores every zone and keeps a window of recent
// alerts. It is idle until activated.
type Monitor struct {
	Zones     ZoneSource
	Service   *risk.Service
	Metrics   *metrics.Metrics
	Retention time.Duration

	// Unit is the length of one check interval step.
	Unit time.Duration

	now func() time.Time

	mu       sync.Mutex // guards active, interval, task
	active   bool
	interval int
	task     *Task

	// gen is bumped on every deactivation; firings started under an older
	// generation are discarded.
	gen       atomic.Uint64
	mergeMu   sync.Mutex
	alerts    atomic.Pointer[[]risk.Alert]
	lastCheck atomic.Pointer[time.Time]

	sinks []namedSink

	subMu sync.Mutex
	subs  map[chan []risk.Alert]struct{}
}

// NewMonitor creates an idle monitor with the default interval and
// retention.
func NewMonitor(zones ZoneSource, svc *risk.Service, m *metrics.Metrics) *Monitor {
	mon := &Monitor{
		Zones:     zones,
		Service:   svc,
		Metrics:   m,
		Retention: DefaultRetention,
		Unit:      time.Second,
		now:       time.Now,
		interval:  DefaultCheckInterval,
		subs:      make(map[chan []risk.Alert]struct{}),
	}
	mon.alerts.Store(&[]risk.Alert{})
	return mon
}

// AddSink registers an alert sink. Not safe to call once the monitor runs.
func (m *Monitor) AddSink(name string, sink AlertSink) {
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

// Active reports whether periodic checks are scheduled.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Interval returns the check interval in units.
func (m *Monitor) Interval() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Alerts returns the retained alert window. The slice must not be modified.
func (m *Monitor) Alerts() []risk.Alert {
	return *m.alerts.Load()
}

// LastCheck returns the time of the last merged firing.
func (m *Monitor) LastCheck() (time.Time, bool) {
	t := m.lastCheck.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// ClampInterval bounds seconds to [MinCheckInterval, MaxCheckInterval].
func ClampInterval(seconds int) int {
	return min(max(seconds, MinCheckInterval), MaxCheckInterval)
}

// SetInterval changes the check interval and returns the applied value.
// Out-of-range values are clamped. An active monitor is rescheduled.
func (m *Monitor) SetInterval(seconds int) int {
	applied := ClampInterval(seconds)
	if applied != seconds {
		slog.Warn("check interval out of range, clamped", "requested", seconds, "applied", applied)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = applied
	if m.active {
		m.task.Cancel()
		m.schedule()
	}
	return applied
}

// Activate starts periodic checks. Activating an active monitor is a no-op.
func (m *Monitor) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return
	}
	m.active = true
	m.schedule()
	slog.Info("monitor activated", "interval", m.interval)
}

func (m *Monitor) schedule() {
	gen := m.gen.Load()
	m.task = Every(context.Background(), time.Duration(m.interval)*m.Unit, func(ctx context.Context) {
		m.fire(ctx, gen)
	})
}

// Deactivate stops periodic checks, discards any in-flight firing and clears
// the alert window.
func (m *Monitor) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen.Add(1)
	wasActive := m.active
	m.active = false
	m.task.Cancel()
	m.task = nil

	m.mergeMu.Lock()
	m.alerts.Store(&[]risk.Alert{})
	m.mergeMu.Unlock()
	m.Metrics.ResetRetained()

	if wasActive {
		slog.Info("monitor deactivated")
	}
}

// Check runs one firing immediately, regardless of the active state, and
// returns the new alerts. It is discarded like a scheduled firing if the
// monitor is deactivated meanwhile.
func (m *Monitor) Check(ctx context.Context) []risk.Alert {
	return m.fire(ctx, m.gen.Load())
}

func (m *Monitor) fire(ctx context.Context, gen uint64) []risk.Alert {
	firedAt := m.now()
	zones := m.Zones.ZoneStats()
	fresh := m.Service.Predict(ctx, zones, firedAt)

	m.mergeMu.Lock()
	if m.gen.Load() != gen || ctx.Err() != nil {
		m.mergeMu.Unlock()
		m.Metrics.DiscardedCycle()
		slog.Debug("monitor cycle discarded", "alerts", len(fresh))
		return nil
	}
	window := m.merge(*m.alerts.Load(), fresh, firedAt)
	m.alerts.Store(&window)
	m.lastCheck.Store(&firedAt)
	m.mergeMu.Unlock()

	m.Metrics.ObserveCycle(len(window))
	if len(fresh) > 0 {
		slog.Info("risk alerts raised", "new", len(fresh), "retained", len(window))
		m.forward(fresh)
	}
	return fresh
}

// merge appends fresh to old and drops alerts at least Retention old at
// firedAt.
func (m *Monitor) merge(old, fresh []risk.Alert, firedAt time.Time) []risk.Alert {
	out := make([]risk.Alert, 0, len(old)+len(fresh))
	for _, a := range old {
		if a.Age(firedAt) < m.Retention {
			out = append(out, a)
		}
	}
	for _, a := range fresh {
		if a.Age(firedAt) < m.Retention {
			out = append(out, a)
		}
	}
	return out
}

func (m *Monitor) forward(fresh []risk.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	for _, s := range m.sinks {
		if err := s.sink.Record(ctx, fresh); err != nil {
			slog.Warn("alert sink failed", "sink", s.name, "error", err)
			m.Metrics.SinkFailure(s.name)
		}
	}

	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs {
		select {
		case ch <- fresh:
		default:
		}
	}
}

// Subscribe returns a channel receiving the new alerts of every merged
// firing, and a function that removes the subscription. Slow receivers miss
// batches.
func (m *Monitor) Subscribe() (<-chan []risk.Alert, func()) {
	ch := make(chan []risk.Alert, 4)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()
	return ch, func() {
		m.subMu.Lock()
		delete(m.subs, ch)
		m.subMu.Unlock()
	}
}
