package main

import (
	"fmt"
	"os"

	"github.com/cuemby/slotsync/pkg/config"
	"github.com/cuemby/slotsync/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded once by the root command before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slotsync",
	Short: "Slotsync - shared sign-up calendar with realtime sync",
	Long: `Slotsync keeps a shared calendar of morning and evening slots in sync
between any number of clients. Clients claim, unclaim and complete slots
optimistically and converge through the server's change stream.

Run 'slotsync serve' once, then point every client at it with --endpoint.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("endpoint") {
			loaded.Client.Endpoint, _ = cmd.Flags().GetString("endpoint")
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSON, _ = cmd.Flags().GetBool("log-json")
		}

		log.Init(log.Config{
			Level:      log.Level(loaded.Log.Level),
			JSONOutput: loaded.Log.JSON,
		})
		cfg = loaded
		return nil
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Slotsync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "slotsync.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("endpoint", "", "Server endpoint (overrides client.endpoint)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
