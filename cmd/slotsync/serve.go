package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/slotsync/pkg/api"
	"github.com/cuemby/slotsync/pkg/events"
	"github.com/cuemby/slotsync/pkg/metrics"
	"github.com/cuemby/slotsync/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authoritative schedule table and change stream",
	Long: `Serve the schedule table over HTTP and stream every change to
connected clients over a websocket.

The table is stored in a BoltDB file under server.data_dir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen := cfg.Server.Listen
		if cmd.Flags().Changed("listen") {
			listen, _ = cmd.Flags().GetString("listen")
		}
		dataDir := cfg.Server.DataDir
		if cmd.Flags().Changed("data-dir") {
			dataDir, _ = cmd.Flags().GetString("data-dir")
		}

		fmt.Println("Starting slotsync server...")
		fmt.Printf("  Listen: %s\n", listen)
		fmt.Printf("  Data Directory: %s\n", dataDir)
		fmt.Println()

		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %v", err)
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		table, err := storage.NewBoltTable(dataDir, broker)
		if err != nil {
			return fmt.Errorf("failed to open table: %v", err)
		}
		defer table.Close()
		fmt.Println("✓ Table opened")

		metrics.SetVersion(Version)
		metrics.SetCriticalComponents("table")
		metrics.RegisterComponent("table", true, "open")

		apiServer := api.NewServer(table, broker, Version)
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(listen); err != nil {
				errCh <- fmt.Errorf("API server error: %v", err)
			}
		}()

		fmt.Println("✓ API server started")
		fmt.Println()
		fmt.Println("Server is running. Press Ctrl+C to stop.")

		// Wait for interrupt signal or API server error
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		var runErr error
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case runErr = <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", runErr)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(ctx); err != nil {
			return fmt.Errorf("failed to shutdown: %v", err)
		}

		fmt.Println("✓ Shutdown complete")
		return runErr
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (overrides server.listen)")
	serveCmd.Flags().String("data-dir", "", "Data directory (overrides server.data_dir)")
}
