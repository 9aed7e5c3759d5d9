package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/crowdwatch/internal/api"
	"github.com/talgya/crowdwatch/internal/config"
)

func serveCmd(configPath *string) *cobra.Command {
	var addr string
	var autostart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation and serve the HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(*configPath, addr, autostart)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&autostart, "autostart", false, "start the simulation and monitor immediately")
	return cmd
}

func runServe(configPath, addr string, autostart bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}

	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.attachSinks(); err != nil {
		return err
	}

	if cfg.HTTP.AdminKey == "" {
		slog.Warn("CROWDWATCH_ADMIN_KEY not set, control endpoints will be disabled")
	}

	if autostart {
		a.eng.Start()
		if _, err := a.eng.ToggleMonitor(); err != nil {
			return err
		}
	}

	srv := &api.Server{
		Eng:            a.eng,
		DB:             a.db,
		Metrics:        a.metrics,
		AdminKey:       cfg.HTTP.AdminKey,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		ControlRate:    cfg.HTTP.ControlRatePerMinute,
		StreamInterval: cfg.StreamInterval(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "API: http://localhost%s/api/v1/status\n", cfg.HTTP.Addr)
	if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr); err != nil {
		return err
	}
	slog.Info("crowdwatch stopped", "tick", a.sim.CurrentTick())
	return nil
}
