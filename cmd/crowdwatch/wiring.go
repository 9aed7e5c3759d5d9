package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/crowdwatch/internal/config"
	"github.com/talgya/crowdwatch/internal/engine"
	"github.com/talgya/crowdwatch/internal/entropy"
	"github.com/talgya/crowdwatch/internal/metrics"
	"github.com/talgya/crowdwatch/internal/mq"
	"github.com/talgya/crowdwatch/internal/persistence"
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

// app holds the wired components of one process.
type app struct {
	cfg     config.Config
	metrics *metrics.Metrics
	sim     *engine.Simulation
	mon     *engine.Monitor
	eng     *engine.Engine
	db      *persistence.DB

	closers []func() error
}

func build(cfg config.Config) (*app, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("venue: %w", err)
	}
	seed := entropy.Seed(cfg.Seed)

	m := metrics.New()
	scorer, err := newScorer(cfg, reg, seed)
	if err != nil {
		return nil, err
	}
	svc := risk.NewService(scorer, reg, m)

	sim := engine.NewSimulation(reg, cfg.Population, seed)
	mon := engine.NewMonitor(sim, svc, m)
	mon.Retention = cfg.Retention()
	mon.SetInterval(cfg.CheckIntervalSeconds)
	eng := engine.NewEngine(sim, mon, cfg.FrameRateHz, m)

	slog.Info("crowdwatch configured",
		"zones", reg.Len(),
		"population", humanize.Comma(int64(cfg.Population)),
		"seed", seed,
		"scorer", cfg.Scorer.Kind,
		"frame_rate_hz", cfg.FrameRateHz,
		"check_interval", cfg.CheckIntervalSeconds,
	)
	return &app{cfg: cfg, metrics: m, sim: sim, mon: mon, eng: eng}, nil
}

func newScorer(cfg config.Config, reg *venue.Registry, seed int64) (risk.Scorer, error) {
	switch cfg.Scorer.Kind {
	case config.ScorerHeuristic:
		return risk.NewHeuristic(seed, cfg.ScorerLatency()), nil
	case config.ScorerRemote:
		return risk.NewRemoteScorer(cfg.Scorer.URL, cfg.ScorerTimeout(), cfg.Scorer.MaxPerMin), nil
	case config.ScorerPredictAPI:
		return risk.NewPredictAPIScorer(cfg.Scorer.URL, reg, seed, cfg.ScorerTimeout()), nil
	}
	return nil, fmt.Errorf("unknown scorer kind %q", cfg.Scorer.Kind)
}

// attachSinks opens the configured alert sinks and registers them with the
// monitor.
func (a *app) attachSinks() error {
	if path := a.cfg.Audit.DBPath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("audit dir: %w", err)
		}
		db, err := persistence.Open(path)
		if err != nil {
			return fmt.Errorf("audit db: %w", err)
		}
		if err := db.SaveRunInfo(a.sim.Seed, a.cfg.Population, time.Now()); err != nil {
			slog.Warn("run info not saved", "error", err)
		}
		a.db = db
		a.mon.AddSink("audit", db)
		a.closers = append(a.closers, db.Close)
		slog.Info("alert audit store opened", "path", path)
	}

	if dir := a.cfg.Journal.Dir; dir != "" {
		j := persistence.NewJournal(dir)
		a.mon.AddSink("journal", j)
		a.closers = append(a.closers, j.Close)
		slog.Info("alert journal enabled", "dir", dir)
	}

	if brokers := a.cfg.Kafka.Brokers; len(brokers) > 0 {
		pub := mq.NewAlertPublisher(mq.NewWriter(brokers, a.cfg.Kafka.Topic))
		a.mon.AddSink("kafka", pub)
		a.closers = append(a.closers, pub.Close)
		slog.Info("alert publisher enabled", "brokers", brokers, "topic", a.cfg.Kafka.Topic)
	}
	return nil
}

func (a *app) close() {
	a.eng.Stop()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}
