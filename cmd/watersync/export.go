package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var exportOutDir string

var exportCmd = &cobra.Command{
	Use:   "export [mm/dd/yyyy]",
	Short: "Download one day's hourly usage to a CSV file",
	Long: `Fetches the hourly export for a single calendar day and writes it
as HourlyUsage_<date>.csv with a DateTime,Consumption header. The local
statistics database is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutDir, "outdir", ".", "Directory to write the CSV file to")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newPortalClient(cfg)
	if err != nil {
		return err
	}

	date, err := time.ParseInLocation("01/02/2006", args[0], client.Location())
	if err != nil {
		return fmt.Errorf("parsing date %q (expected mm/dd/yyyy): %w", args[0], err)
	}

	ctx := context.Background()
	session, err := client.Login(ctx)
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	result := session.FetchDay(ctx, date)
	if result.Skipped {
		return fmt.Errorf("fetching %s: %s", args[0], result.Reason)
	}
	if len(result.Readings) == 0 {
		fmt.Printf("No data found for %s\n", args[0])
		return nil
	}

	path, err := writeDayCSV(result.Readings, args[0], exportOutDir)
	if err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}

	fmt.Printf("✓ Wrote %d readings to %s\n", len(result.Readings), path)
	return nil
}

// writeDayCSV writes one day's readings as DateTime,Consumption rows in
// timestamp order
func writeDayCSV(readings map[time.Time]float64, dateStr, outdir string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	timestamps := make([]time.Time, 0, len(readings))
	for ts := range readings {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	var b strings.Builder
	b.WriteString("DateTime,Consumption\n")
	for _, ts := range timestamps {
		fmt.Fprintf(&b, "%s,%g\n", ts.Format("2006-01-02 15:04:05"), readings[ts])
	}

	path := fmt.Sprintf("%s/HourlyUsage_%s.csv", outdir, strings.ReplaceAll(dateStr, "/", "-"))
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}

	return path, nil
}
