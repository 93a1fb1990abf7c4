package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`     // HTTP/WebSocket bind address (e.g. ":8000")
	MetricsAddr    string   `yaml:"metrics_addr"`    // HTTP bind address for /metrics (empty = disabled)
	DBPath         string   `yaml:"db_path"`         // SQLite database path
	StaticDir      string   `yaml:"static_dir"`      // directory of client assets to serve at / (empty = disabled)
	AllowedOrigins []string `yaml:"allowed_origins"` // WebSocket origins to accept (empty = allow all)
	LogLevel       string   `yaml:"log_level"`       // debug, info, warn, error
	LogFormat      string   `yaml:"log_format"`      // text or json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":8000",
		MetricsAddr: ":8001",
		DBPath:      "callbridge.db",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
