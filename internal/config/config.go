// Package config provides configuration loading for projman.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the full application configuration.
type Config struct {
	// Roots are the directories scanned for projects, in order.
	Roots []string `koanf:"roots"`

	Scan      ScanConfig      `koanf:"scan"`
	Store     StoreConfig     `koanf:"store"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ScanConfig holds the scan and classification options.
type ScanConfig struct {
	// MaxDepth bounds the walk depth below each root.
	MaxDepth int `koanf:"max_depth"`

	// Exclude holds glob patterns for directories to prune.
	Exclude []string `koanf:"exclude"`

	// MinLanguageShare drops languages below this fraction of mapped files.
	MinLanguageShare float64 `koanf:"min_language_share"`

	// FollowSymlinks enables descending through symlinked directories.
	FollowSymlinks bool `koanf:"follow_symlinks"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means the default under the
	// user config directory.
	Path string `koanf:"path"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// TelemetryConfig holds the OpenTelemetry metrics export settings.
// Disabled by default; most installs have no OTLP collector.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol is grpc or http/protobuf.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS. Only allowed for local endpoints.
	Insecure bool `koanf:"insecure"`

	// ExportInterval is the metric export period.
	ExportInterval time.Duration `koanf:"export_interval"`
}

// Validate checks invariants the loaders cannot express.
func (c *Config) Validate() error {
	if c.Scan.MaxDepth <= 0 {
		return fmt.Errorf("scan.max_depth must be positive, got %d", c.Scan.MaxDepth)
	}
	if c.Scan.MinLanguageShare < 0 || c.Scan.MinLanguageShare >= 1 {
		return fmt.Errorf("scan.min_language_share must be in [0, 1), got %g", c.Scan.MinLanguageShare)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.ExportInterval <= 0 {
			return fmt.Errorf("telemetry.export_interval must be positive, got %s", c.Telemetry.ExportInterval)
		}
	}
	return nil
}

// StorePath returns the configured database path, or the default under the
// user config directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "projman", "projects.db"), nil
}

// DefaultConfigPath returns the default YAML config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "projman", "config.yaml"), nil
}
