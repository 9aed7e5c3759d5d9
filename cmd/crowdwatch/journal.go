package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/crowdwatch/internal/config"
	"github.com/talgya/crowdwatch/internal/mq"
	"github.com/talgya/crowdwatch/internal/persistence"
	"github.com/talgya/crowdwatch/internal/risk"
)

func journalCmd() *cobra.Command {
	var severity string

	cmd := &cobra.Command{
		Use:   "journal <file>...",
		Short: "Print alerts from compressed journal files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				alerts, err := persistence.ReadJournal(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for _, a := range alerts {
					if severity != "" && string(a.Severity) != severity {
						continue
					}
					printAlert(out, a)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "only print alerts of this severity")
	return cmd
}

func tailCmd(configPath *string) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow alerts published to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return errors.New("no kafka brokers configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := mq.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, group)
			defer r.Close()
			slog.Info("tailing alerts", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic, "group", group)

			out := cmd.OutOrStdout()
			for {
				msg, err := r.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("read message: %w", err)
				}
				a, err := mq.ParseMessageJSON[risk.Alert](msg)
				if err != nil {
					slog.Warn("skipping malformed alert", "offset", msg.Offset, "error", err)
					continue
				}
				printAlert(out, a)
			}
		},
	}
	cmd.Flags().StringVar(&group, "group", "crowdwatch-tail", "consumer group")
	return cmd
}

func printAlert(out io.Writer, a risk.Alert) {
	fmt.Fprintf(out, "%s [%s] zone %d %s %.2f %s\n",
		a.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"), a.Severity, a.ZoneID, a.ZoneName, a.Score, a.RedirectMessage)
}
