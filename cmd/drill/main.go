// Command drill runs a stampede drill against a running crowdwatch service.
// It starts the simulation, injects a condition through the admin API and
// reports how long the monitor takes to raise the first alert.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/drill"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	apiURL := envOrDefault("CROWDWATCH_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("CROWDWATCH_ADMIN_KEY")
	kind := os.Getenv("DRILL_KIND")
	zone := envIntOrDefault("DRILL_ZONE", 0)
	interval := envIntOrDefault("DRILL_CHECK_INTERVAL", 1)
	timeout := time.Duration(envIntOrDefault("DRILL_TIMEOUT_SECONDS", 60)) * time.Second

	if adminKey == "" {
		slog.Error("CROWDWATCH_ADMIN_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("stampede drill starting", "api_url", apiURL, "kind", kind, "zone", zone, "timeout", timeout)

	slog.Info("waiting for crowdwatch API...")
	if err := waitForAPI(ctx, apiURL); err != nil {
		slog.Error("API not ready", "error", err)
		os.Exit(1)
	}

	plan := drill.Plan{
		CheckInterval: interval,
		Timeout:       timeout,
		Poll:          250 * time.Millisecond,
		StopAfter:     os.Getenv("DRILL_STOP_AFTER") == "true",
	}
	if kind != "" {
		plan.Condition = &agents.Condition{
			Kind:         agents.ConditionKind(kind),
			TargetZoneID: zone,
		}
	}

	report, err := drill.Run(ctx, drill.NewObserver(apiURL), drill.NewActor(apiURL, adminKey), plan)
	if err != nil {
		slog.Error("drill failed", "error", err)
		os.Exit(1)
	}
	fmt.Print(report.String())
	if !report.Detected() {
		os.Exit(2)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds, giving up after five minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/status", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("crowdwatch API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no response from %s within 5 minutes", apiURL)
		}
		slog.Info("crowdwatch not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
