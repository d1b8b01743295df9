package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/watersync/internal/stats"
	"github.com/jgoulah/watersync/pkg/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle against the SFPUC portal",
	Long: `Logs into the SFPUC portal, discovers the available date window,
downloads any days newer than the last recorded statistic, and merges them
into the local cumulative series. Safe to re-run: overlapping windows are
deduplicated during the merge.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Sync started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

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

	coordinator := stats.NewCoordinator(portalSource{client}, db, seriesMetadata(), client.Location())

	result, err := coordinator.RunCycle(context.Background())
	if err != nil {
		return fmt.Errorf("sync cycle: %w", err)
	}

	printCycleResult(result)
	return nil
}

func printCycleResult(result models.CycleResult) {
	if result.NoOp {
		fmt.Println("✓ Already up to date, nothing to fetch")
		return
	}

	fmt.Printf("✓ Fetched window %s to %s\n",
		result.WindowStart.Format("01/02/2006"), result.WindowEnd.Format("01/02/2006"))
	fmt.Printf("✓ %d readings fetched, %d new points recorded\n",
		result.FetchedReadings, result.NewPoints)
	if result.SkippedDays > 0 {
		fmt.Printf("⚠ %d day(s) skipped due to soft failures\n", result.SkippedDays)
	}
	if result.FetchedReadings > 0 {
		fmt.Printf("  Latest hourly usage: %.2f gal, cycle total: %.2f gal\n",
			result.LatestUsage, result.TotalUsage)
	}
}
