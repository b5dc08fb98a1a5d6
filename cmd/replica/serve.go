package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskchampion/taskchampion/pkg/log"
	"github.com/taskchampion/taskchampion/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a background metrics collector and serve /metrics, /health, /ready, /live",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "address the metrics/health HTTP server listens on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	store, err := openStorage()
	if err != nil {
		return fmt.Errorf("failed to open storage: %v", err)
	}
	defer store.Close()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("storage", true, "opened")
	metrics.RegisterComponent("sync", true, "not applicable to this process")

	collector := metrics.NewCollector(cfg.Engine, collectorStore{store})
	collector.Start()
	fmt.Println("✓ Metrics collector started")

	errCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		log.WithComponent("metrics").Info().Str("addr", metricsAddr).Msg("serving metrics and health endpoints")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server error: %v", err)
		}
	}()
	fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)
	fmt.Printf("✓ Health endpoints:\n")
	fmt.Printf("  - Health check: http://%s/health\n", metricsAddr)
	fmt.Printf("  - Readiness:    http://%s/ready\n", metricsAddr)
	fmt.Printf("  - Liveness:     http://%s/live\n", metricsAddr)
	fmt.Println()
	fmt.Println("Replica serving. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Errorf("%v", err)
		collector.Stop()
		return err
	}

	collector.Stop()
	fmt.Println("✓ Shutdown complete")
	return nil
}
