package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify the configured portal credentials",
	Long: `Performs the full login handshake against the SFPUC portal and
reports whether the configured credentials work. No data is fetched.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newPortalClient(cfg)
	if err != nil {
		return err
	}

	fmt.Println("Logging into the SFPUC portal...")
	if _, err := client.Login(context.Background()); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("✓ Login successful")
	return nil
}
