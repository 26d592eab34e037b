package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config represents application configuration
type Config struct {
	Username    string `json:"username"`      // default display name when hosting or joining
	DefaultPort int    `json:"default_port"`  // 0 = pick any free port
	Announce    bool   `json:"announce_mdns"` // advertise sessions over mDNS
	LogLevel    string `json:"log_level"`     // debug, info, warn, error, none
	LogPath     string `json:"log_path"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Username:    "",
		DefaultPort: 0,
		Announce:    true,
		LogLevel:    "info",
		LogPath:     filepath.Join(defaultConfigDir(), "liveshare.log"),
	}
}

// Load loads configuration from file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultConfigDir(), "liveshare.log")
	}

	return config, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".liveshare"
	}
	return filepath.Join(home, ".liveshare")
}
