package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var captureTimeout time.Duration

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture portal cookies via a manual browser login",
	Long: `Opens a browser window at the SFPUC login page for you to log in
manually, then saves the session cookies to the config file. Subsequent
syncs seed these cookies and skip the form login while the server-side
session is still valid. Use this when the automated login stops working.`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", 10*time.Minute, "How long to wait for the manual login")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newPortalClient(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Opening browser for SFPUC login...")
	fmt.Println("Please log in manually in the browser window.")

	cookies, err := client.CaptureCookies(context.Background(), captureTimeout)
	if err != nil {
		return fmt.Errorf("capturing cookies: %w", err)
	}

	cfg.Cookies = cookies
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving cookies: %w", err)
	}

	fmt.Printf("✓ Saved %d cookies to %s\n", len(cookies), getConfigPath())
	return nil
}
