package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jgoulah/watersync/internal/config"
	"github.com/jgoulah/watersync/internal/database"
	"github.com/jgoulah/watersync/internal/scraper"
	"github.com/jgoulah/watersync/internal/stats"
	"github.com/jgoulah/watersync/pkg/models"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "watersync",
	Short: "Sync hourly water usage from the SFPUC account portal",
	Long: `WaterSync collects hourly water usage data from the SFPUC "My Account"
portal and merges it into a local cumulative statistics series in SQLite.
Readings can be published to MQTT or Home Assistant.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newPortalClient builds a scraper client from config, seeding any saved
// browser cookies
func newPortalClient(cfg *config.Config) (*scraper.Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("no credentials configured: add username/password to %s", getConfigPath())
	}

	client, err := scraper.New(cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("creating portal client: %w", err)
	}

	if len(cfg.Cookies) > 0 {
		client.SetCookies(cfg.Cookies)
	}

	return client, nil
}

// portalSource adapts the scraper client to the coordinator's source
// interface; Login's concrete *scraper.Session return needs the lift to
// stats.UsageSession
type portalSource struct {
	client *scraper.Client
}

func (s portalSource) Login(ctx context.Context) (stats.UsageSession, error) {
	return s.client.Login(ctx)
}

// seriesMetadata identifies the persisted water usage series
func seriesMetadata() models.StatisticsMetadata {
	return models.StatisticsMetadata{
		StatisticID: "sfpuc:sfpuc_water_usage",
		Name:        "SFPUC Water Usage",
		Source:      "sfpuc",
		Unit:        "gal",
		HasSum:      true,
		HasMean:     false,
	}
}
