package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var availableCmd = &cobra.Command{
	Use:   "available",
	Short: "Show the date range the portal can export",
	Long: `Logs in and prints the inclusive window of calendar dates for
which the portal currently has hourly data. Useful for troubleshooting
when a sync reports nothing to fetch.`,
	RunE: runAvailable,
}

func init() {
	rootCmd.AddCommand(availableCmd)
}

func runAvailable(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newPortalClient(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := client.Login(ctx)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	avail, err := session.AvailableRange(ctx)
	if err != nil {
		return fmt.Errorf("resolving available range: %w", err)
	}

	fmt.Printf("✓ Available data: %s to %s\n",
		avail.Start.Format("01/02/2006"), avail.End.Format("01/02/2006"))
	return nil
}
