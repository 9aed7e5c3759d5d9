// Command crowdwatch runs the crowd simulation and stampede-risk service.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "crowdwatch",
		Short: "Crowd movement simulation with periodic stampede-risk alerts",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			setupLogging(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CROWDWATCH_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(headlessCmd(&configPath))
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(tailCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: l,
	}))
	slog.SetDefault(logger)
}
