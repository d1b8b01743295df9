package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/watersync/internal/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Push unpublished points to Home Assistant",
	Long: `Sends every statistic point not yet published to the Home
Assistant backfill endpoint, oldest first, marking each as published on
success. Run after 'watersync sync' to keep a HA entity in step with the
local series.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	pub, err := publisher.New(cfg.MQTT, cfg.HomeAssistant, cfg.GetMQTTTopicPrefix())
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	meta := seriesMetadata()
	points, err := db.ListUnpublished(meta.StatisticID)
	if err != nil {
		return fmt.Errorf("listing unpublished points: %w", err)
	}

	if len(points) == 0 {
		fmt.Println("Nothing to publish")
		return nil
	}

	published := 0
	for _, point := range points {
		if err := pub.PublishPoint(point); err != nil {
			// Stop at the first failure so backfill stays in order
			fmt.Printf("⚠ Publishing point at %s: %v\n", point.Start.Format("2006-01-02 15:04"), err)
			break
		}
		if err := db.MarkPublished(meta.StatisticID, point.Start); err != nil {
			return fmt.Errorf("marking point as published: %w", err)
		}
		published++
	}

	fmt.Printf("✓ Published %d of %d points\n", published, len(points))
	return nil
}
