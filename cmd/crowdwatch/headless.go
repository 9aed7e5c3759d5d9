package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/crowdwatch/internal/agents"
	"github.com/talgya/crowdwatch/internal/config"
	"github.com/talgya/crowdwatch/internal/engine"
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

type headlessOpts struct {
	ticks      int
	stampedeAt int
	kind       string
	zone       int
	population int
}

func headlessCmd(configPath *string) *cobra.Command {
	var o headlessOpts

	cmd := &cobra.Command{
		Use:   "headless",
		Short: "Run a fixed number of ticks without the API and print one risk cycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHeadless(cmd.Context(), *configPath, o, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&o.ticks, "ticks", "n", 600, "ticks to simulate")
	cmd.Flags().IntVar(&o.stampedeAt, "stampede-at", 300, "tick at which to inject the stampede (negative disables)")
	cmd.Flags().StringVar(&o.kind, "kind", "random", "stampede kind: exit_rush, zone_incident or random")
	cmd.Flags().IntVar(&o.zone, "zone", 0, "target zone for a zone_incident")
	cmd.Flags().IntVarP(&o.population, "population", "p", 0, "agent count (overrides config)")
	return cmd
}

func runHeadless(ctx context.Context, configPath string, o headlessOpts, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.population > 0 {
		cfg.Population = o.population
	}

	a, err := build(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.attachSinks(); err != nil {
		return err
	}

	started := time.Now()
	a.sim.Populate()
	for i := 1; i <= o.ticks; i++ {
		if i == o.stampedeAt {
			cond, err := inject(a.sim, o)
			if err != nil {
				return err
			}
			slog.Info("stampede injected", "tick", i, "kind", cond.Kind, "zone", cond.TargetZoneID)
		}
		a.sim.Step()
	}
	elapsed := time.Since(started)

	alerts := a.mon.Check(ctx)

	snap := a.sim.Snapshot()
	fmt.Fprintf(out, "%s ticks over %s agents in %s\n",
		humanize.Comma(int64(snap.Tick)), humanize.Comma(int64(len(snap.Agents))), elapsed.Round(time.Millisecond))
	if c := snap.Condition; c != nil {
		fmt.Fprintf(out, "condition: %s\n", c.Description)
	}
	writeZones(out, snap.Zones)
	writeAlerts(out, alerts)
	return nil
}

func inject(sim *engine.Simulation, o headlessOpts) (agents.Condition, error) {
	if o.kind == "random" || o.kind == "" {
		return sim.TriggerStampede()
	}
	return sim.InjectStampede(agents.Condition{
		Kind:         agents.ConditionKind(o.kind),
		TargetZoneID: o.zone,
	})
}

func writeZones(out io.Writer, zones []venue.ZoneStats) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE\tNAME\tPEOPLE\tDENSITY\tSPEED\tDANGER")
	for _, z := range zones {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%.3f\t%v\n",
			z.ID, z.Name, humanize.Comma(int64(z.PeopleCount)), z.Density, z.AverageSpeed, z.Danger)
	}
	tw.Flush()
}

func writeAlerts(out io.Writer, alerts []risk.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts")
		return
	}
	fmt.Fprintf(out, "%d alert(s):\n", len(alerts))
	for _, al := range alerts {
		fmt.Fprintf(out, "  [%s] zone %d %s score %.2f: %s\n", al.Severity, al.ZoneID, al.ZoneName, al.Score, al.RedirectMessage)
	}
}
