package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/jgoulah/watersync/internal/publisher"
	"github.com/jgoulah/watersync/internal/stats"
	"github.com/jgoulah/watersync/pkg/models"
)

var daemonMaxRetries uint

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run sync cycles on a fixed interval",
	Long: `Runs a sync cycle immediately and then every update interval
(default 4 hours). A failed cycle is retried with exponential backoff at
whole-cycle granularity; the merge is idempotent, so a retried cycle
re-covers the same window safely. Gauges from each successful cycle are
published to MQTT when enabled.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().UintVar(&daemonMaxRetries, "max-retries", 3, "Retries per failed cycle before waiting for the next tick")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newPortalClient(cfg)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var pub *publisher.Publisher
	if cfg.MQTT.Enabled {
		pub, err = publisher.New(cfg.MQTT, cfg.HomeAssistant, cfg.GetMQTTTopicPrefix())
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
	}

	coordinator := stats.NewCoordinator(portalSource{client}, db, seriesMetadata(), client.Location())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := cfg.GetUpdateInterval()
	fmt.Printf("Starting watersync daemon (interval: %s)\n", interval)

	runCycleWithRetry(ctx, coordinator, pub)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runCycleWithRetry(ctx, coordinator, pub)
		case <-ctx.Done():
			fmt.Println("Shutting down watersync daemon")
			return nil
		}
	}
}

// runCycleWithRetry runs one cycle, retrying the whole cycle with
// exponential backoff. Cursor and store are untouched by a failed cycle,
// so retrying from the same watermark is safe.
func runCycleWithRetry(ctx context.Context, coordinator *stats.Coordinator, pub *publisher.Publisher) {
	fmt.Printf("=== Sync started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	var result models.CycleResult
	operation := func() error {
		var err error
		result, err = coordinator.RunCycle(ctx)
		if err != nil {
			fmt.Printf("⚠ Sync cycle failed: %v\n", err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(daemonMaxRetries)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		fmt.Printf("⚠ Giving up until next interval: %v\n", err)
		return
	}

	printCycleResult(result)

	if pub != nil && !result.NoOp && result.FetchedReadings > 0 {
		if err := pub.PublishGauges(result); err != nil {
			fmt.Printf("⚠ Publishing gauges: %v\n", err)
		} else {
			fmt.Println("✓ Gauges published to MQTT")
		}
	}
}
