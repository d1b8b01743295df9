package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded statistic points",
	Long:  `Shows the most recent points of the local cumulative water usage series.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 24, "Maximum points to show (0 for all)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	meta := seriesMetadata()
	points, err := db.ListStatistics(meta.StatisticID, listLimit)
	if err != nil {
		return fmt.Errorf("listing statistics: %w", err)
	}

	if len(points) == 0 {
		fmt.Println("No data recorded yet. Run 'watersync sync' first.")
		return nil
	}

	fmt.Printf("%-20s %12s %14s\n", "HOUR", "USAGE (gal)", "TOTAL (gal)")
	for _, p := range points {
		fmt.Printf("%-20s %12.2f %14.2f\n",
			p.Start.Format("2006-01-02 15:04"), p.State, p.Sum)
	}

	return nil
}
