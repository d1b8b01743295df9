package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Username            string     `yaml:"username"`
	Password            string     `yaml:"password"`
	Cookies             []Cookie   `yaml:"cookies,omitempty"`               // Saved portal cookies from 'watersync capture'
	UpdateIntervalHours int        `yaml:"update_interval_hours,omitempty"` // Sync period for daemon mode (default: 4)
	MQTT                MQTTConfig `yaml:"mqtt,omitempty"`
	HomeAssistant       HAConfig   `yaml:"home_assistant,omitempty"`
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string  `yaml:"name"`
	Value    string  `yaml:"value"`
	Domain   string  `yaml:"domain"`
	Path     string  `yaml:"path"`
	Expires  float64 `yaml:"expires,omitempty"`
	HTTPOnly bool    `yaml:"httpOnly,omitempty"`
	Secure   bool    `yaml:"secure,omitempty"`
	SameSite string  `yaml:"sameSite,omitempty"`
}

// MQTTConfig holds MQTT broker configuration for gauge publishing
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default: water_meter
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://yourdomain.local:5050"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.sfpuc_water_usage"
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetUpdateInterval returns the daemon sync period with a default of 4 hours
func (c *Config) GetUpdateInterval() time.Duration {
	if c.UpdateIntervalHours <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(c.UpdateIntervalHours) * time.Hour
}

// GetMQTTTopicPrefix returns the MQTT topic prefix with a default
func (c *Config) GetMQTTTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "water_meter"
	}
	return c.MQTT.TopicPrefix
}
