package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/slotsync/pkg/client"
	"github.com/cuemby/slotsync/pkg/connectivity"
	"github.com/cuemby/slotsync/pkg/controller"
	"github.com/cuemby/slotsync/pkg/core"
	"github.com/cuemby/slotsync/pkg/health"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/schedule"
	"github.com/cuemby/slotsync/pkg/types"
	"github.com/spf13/cobra"
)

// openCore connects a sync core to the configured server. A failed initial
// fetch is reported but not fatal: the core keeps running disconnected.
func openCore(ctx context.Context) (*core.Core, error) {
	rng, err := cfg.Range()
	if err != nil {
		return nil, err
	}

	settings := client.DefaultFeedSettings()
	settings.ReconnectDelay = cfg.Client.ReconnectDelay
	feed, err := client.NewFeed(cfg.Client.Endpoint, settings)
	if err != nil {
		return nil, err
	}

	c, err := core.New(core.Config{
		Range:          rng,
		Roster:         cfg.Schedule.Roster,
		RequestTimeout: cfg.Client.RequestTimeout,
		ResyncInterval: cfg.Client.ResyncInterval,
	}, client.NewGateway(cfg.Client.Endpoint, cfg.Client.RequestTimeout), feed)
	if err != nil {
		return nil, err
	}

	if err := c.Start(ctx); err != nil {
		var initErr *core.InitializationFailure
		if !errors.As(err, &initErr) {
			c.Close()
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return c, nil
}

func parseSlotArgs(args []string) (types.Date, types.TimeSlot, error) {
	date, err := types.ParseDate(args[0])
	if err != nil {
		return "", "", err
	}
	ts, err := types.ParseTimeSlot(args[1])
	if err != nil {
		return "", "", err
	}
	return date, ts, nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the schedule grid",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return renderScheduleJSON(cmd.OutOrStdout(), c.GetSchedule(), c.GetConnectivity())
		}
		return renderSchedule(cmd.OutOrStdout(), c.GetSchedule(), c.GetConnectivity())
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim DATE SLOT --as NAME",
	Short: "Claim an open slot, or release a claimed one",
	Long: `Claim an open slot for the given person. If the slot is already
claimed it is released instead, whoever holds it.

Examples:
  slotsync claim 2025-08-29 morning --as Karen
  slotsync claim 2025-08-29 morning`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, ts, err := parseSlotArgs(args)
		if err != nil {
			return err
		}
		person, _ := cmd.Flags().GetString("as")

		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		result, err := c.ClaimOrUnclaim(cmd.Context(), date, ts, person)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeResult(result))
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:   "complete DATE SLOT",
	Short: "Mark a claimed slot complete, or reopen a completed one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, ts, err := parseSlotArgs(args)
		if err != nil {
			return err
		}

		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		result, err := c.ToggleCompletion(cmd.Context(), date, ts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), describeResult(result))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream schedule changes as they happen",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCore(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		out := cmd.OutOrStdout()
		unsubscribe := c.Subscribe(func(ch schedule.Change) {
			fmt.Fprintln(out, describeChange(ch))
		})
		defer unsubscribe()
		c.OnConnectivityChange(func(s connectivity.Snapshot) {
			fmt.Fprintln(out, describeConnectivity(s))
		})

		collector := metrics.NewCollector(c.Store(), 15*time.Second)
		collector.Start()
		defer collector.Stop()

		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			metrics.SetVersion(Version)
			metrics.SetCriticalComponents("store")
			go serveClientMetrics(addr)
		}

		if err := renderSchedule(out, c.GetSchedule(), c.GetConnectivity()); err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}

func serveClientMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List the people who may claim slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range cfg.Schedule.Roster {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().Bool("json", false, "Print the schedule as JSON")
	claimCmd.Flags().String("as", "", "Person claiming the slot")
	statusCmd.Flags().Bool("watch", false, "Keep probing until interrupted")
	watchCmd.Flags().String("metrics-addr", "", "Serve /metrics and /health on this address")
}

func describeResult(r controller.Result) string {
	switch r.Action {
	case controller.ActionClaim:
		return fmt.Sprintf("✓ %s claimed %s", r.Current.PersonName(), r.Key)
	case controller.ActionUnclaim:
		return fmt.Sprintf("✓ %s released (was %s)", r.Key, r.Previous.PersonName())
	case controller.ActionComplete:
		return fmt.Sprintf("✓ %s marked complete", r.Key)
	case controller.ActionReopen:
		return fmt.Sprintf("✓ %s reopened", r.Key)
	default:
		return fmt.Sprintf("%s is open, nothing to do", r.Key)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the server's health, readiness and change stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		probes, err := health.ServerProbes(strings.TrimRight(cfg.Client.Endpoint, "/"))
		if err != nil {
			return err
		}

		hcfg := health.DefaultConfig()
		hcfg.Timeout = cfg.Client.RequestTimeout
		out := cmd.OutOrStdout()

		watch, _ := cmd.Flags().GetBool("watch")
		if !watch {
			results := health.RunAll(cmd.Context(), probes, hcfg.Timeout)
			healthy := true
			for _, p := range probes {
				r := results[p.Name]
				fmt.Fprintln(out, describeProbe(p.Name, r.Healthy, r))
				healthy = healthy && r.Healthy
			}
			if !healthy {
				return errors.New("server is not healthy")
			}
			return nil
		}

		statuses := make(map[string]*health.Status, len(probes))
		for _, p := range probes {
			statuses[p.Name] = health.NewStatus()
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		ticker := time.NewTicker(hcfg.Interval)
		defer ticker.Stop()

		for {
			results := health.RunAll(cmd.Context(), probes, hcfg.Timeout)
			for _, p := range probes {
				st := statuses[p.Name]
				st.Update(results[p.Name], hcfg)
				fmt.Fprintln(out, describeProbe(p.Name, st.Healthy, st.LastResult))
			}

			select {
			case <-sigCh:
				return nil
			case <-ticker.C:
			}
		}
	},
}

func describeProbe(name string, healthy bool, r health.Result) string {
	mark := "✓"
	if !healthy {
		mark = "✗"
	}
	return fmt.Sprintf("%s %-8s %s (%s)", mark, name, r.Message, r.Duration.Round(time.Millisecond))
}
