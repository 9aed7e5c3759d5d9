// Package config loads crowdwatch settings from an optional YAML file and
// CROWDWATCH_* environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/crowdwatch/internal/venue"
)

// Scorer backend kinds.
const (
	ScorerHeuristic  = "heuristic"
	ScorerRemote     = "remote"
	ScorerPredictAPI = "predict_api"
)

type Config struct {
	Seed                  int64   `yaml:"seed"`
	Population            int     `yaml:"population"`
	FrameRateHz           float64 `yaml:"frame_rate_hz"`
	CheckIntervalSeconds  int     `yaml:"check_interval_seconds"`
	AlertRetentionSeconds int     `yaml:"alert_retention_seconds"`
	StreamIntervalMs      int     `yaml:"stream_interval_ms"`

	Scorer  Scorer  `yaml:"scorer"`
	HTTP    HTTP    `yaml:"http"`
	Audit   Audit   `yaml:"audit"`
	Journal Journal `yaml:"journal"`
	Kafka   Kafka   `yaml:"kafka"`
	Venue   Venue   `yaml:"venue"`
}

type Scorer struct {
	Kind      string `yaml:"kind"`
	URL       string `yaml:"url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	LatencyMs int    `yaml:"latency_ms"`
	MaxPerMin int    `yaml:"max_per_minute"`
}

type HTTP struct {
	Addr                 string   `yaml:"addr"`
	AdminKey             string   `yaml:"admin_key"`
	CORSOrigins          []string `yaml:"cors_origins"`
	ControlRatePerMinute int      `yaml:"control_rate_per_minute"`
}

type Audit struct {
	DBPath string `yaml:"db_path"`
}

type Journal struct {
	Dir string `yaml:"dir"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Venue overrides the reference layout when Zones is non-empty.
type Venue struct {
	Zones     []venue.Zone  `yaml:"zones"`
	Adjacency map[int][]int `yaml:"adjacency"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Seed:                  42,
		Population:            10000,
		FrameRateHz:           60,
		CheckIntervalSeconds:  10,
		AlertRetentionSeconds: 60,
		StreamIntervalMs:      500,
		Scorer: Scorer{
			Kind:      ScorerHeuristic,
			TimeoutMs: 5000,
			LatencyMs: 200,
			MaxPerMin: 0,
		},
		HTTP: HTTP{
			Addr:                 ":8080",
			CORSOrigins:          []string{"*"},
			ControlRatePerMinute: 60,
		},
		Kafka: Kafka{
			Topic: "crowd.alerts",
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and clamps out-of-range values.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.normalize(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Seed = int64(getEnvInt("CROWDWATCH_SEED", int(c.Seed)))
	c.Population = getEnvInt("CROWDWATCH_POPULATION", c.Population)
	c.FrameRateHz = getEnvFloat("CROWDWATCH_FRAME_RATE_HZ", c.FrameRateHz)
	c.CheckIntervalSeconds = getEnvInt("CROWDWATCH_CHECK_INTERVAL_SECONDS", c.CheckIntervalSeconds)
	c.AlertRetentionSeconds = getEnvInt("CROWDWATCH_ALERT_RETENTION_SECONDS", c.AlertRetentionSeconds)
	c.StreamIntervalMs = getEnvInt("CROWDWATCH_STREAM_INTERVAL_MS", c.StreamIntervalMs)

	c.Scorer.Kind = getEnv("CROWDWATCH_SCORER", c.Scorer.Kind)
	c.Scorer.URL = getEnv("CROWDWATCH_SCORER_URL", c.Scorer.URL)
	c.Scorer.TimeoutMs = getEnvInt("CROWDWATCH_SCORER_TIMEOUT_MS", c.Scorer.TimeoutMs)
	c.Scorer.LatencyMs = getEnvInt("CROWDWATCH_SCORER_LATENCY_MS", c.Scorer.LatencyMs)

	c.HTTP.Addr = getEnv("CROWDWATCH_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.AdminKey = getEnv("CROWDWATCH_ADMIN_KEY", c.HTTP.AdminKey)
	c.HTTP.CORSOrigins = getEnvList("CROWDWATCH_CORS_ORIGINS", c.HTTP.CORSOrigins)
	c.HTTP.ControlRatePerMinute = getEnvInt("CROWDWATCH_CONTROL_RATE_PER_MINUTE", c.HTTP.ControlRatePerMinute)

	c.Audit.DBPath = getEnv("CROWDWATCH_AUDIT_DB", c.Audit.DBPath)
	c.Journal.Dir = getEnv("CROWDWATCH_JOURNAL_DIR", c.Journal.Dir)
	c.Kafka.Brokers = getEnvList("CROWDWATCH_KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("CROWDWATCH_KAFKA_TOPIC", c.Kafka.Topic)
}

// normalize clamps numeric settings and rejects unusable ones.
func (c *Config) normalize() error {
	c.CheckIntervalSeconds = clampInt("check_interval_seconds", c.CheckIntervalSeconds, 1, 60)
	c.Population = clampInt("population", c.Population, 0, 1_000_000)
	c.AlertRetentionSeconds = clampInt("alert_retention_seconds", c.AlertRetentionSeconds, 1, 60)
	c.StreamIntervalMs = clampInt("stream_interval_ms", c.StreamIntervalMs, 50, 10_000)
	if c.FrameRateHz <= 0 || c.FrameRateHz > 240 {
		slog.Warn("config value out of range, using default", "key", "frame_rate_hz", "value", c.FrameRateHz)
		c.FrameRateHz = Default().FrameRateHz
	}
	c.Scorer.LatencyMs = clampInt("scorer.latency_ms", c.Scorer.LatencyMs, 0, 60_000)

	switch c.Scorer.Kind {
	case ScorerHeuristic:
	case ScorerRemote, ScorerPredictAPI:
		if c.Scorer.URL == "" {
			return fmt.Errorf("scorer %q requires scorer.url", c.Scorer.Kind)
		}
	default:
		return fmt.Errorf("unknown scorer kind %q", c.Scorer.Kind)
	}
	return nil
}

// Retention returns the alert window length, at most one minute.
func (c Config) Retention() time.Duration {
	return time.Duration(c.AlertRetentionSeconds) * time.Second
}

// StreamInterval returns the websocket state frame cadence.
func (c Config) StreamInterval() time.Duration {
	return time.Duration(c.StreamIntervalMs) * time.Millisecond
}

// ScorerTimeout returns the HTTP timeout for remote scorers.
func (c Config) ScorerTimeout() time.Duration {
	return time.Duration(c.Scorer.TimeoutMs) * time.Millisecond
}

// ScorerLatency returns the artificial latency of the heuristic scorer.
func (c Config) ScorerLatency() time.Duration {
	return time.Duration(c.Scorer.LatencyMs) * time.Millisecond
}

// Registry builds the venue registry, falling back to the reference layout.
func (c Config) Registry() (*venue.Registry, error) {
	if len(c.Venue.Zones) == 0 {
		return venue.Reference(), nil
	}
	return venue.NewRegistry(c.Venue.Zones, c.Venue.Adjacency)
}

func clampInt(key string, v, lo, hi int) int {
	if v < lo || v > hi {
		clamped := min(max(v, lo), hi)
		slog.Warn("config value out of range, clamped", "key", key, "value", v, "applied", clamped)
		return clamped
	}
	return v
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
