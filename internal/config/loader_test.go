package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Point at a file that does not exist so only defaults apply.
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Roots)
	assert.Equal(t, 5, cfg.Scan.MaxDepth)
	assert.InDelta(t, 0.05, cfg.Scan.MinLanguageShare, 1e-9)
	assert.True(t, cfg.Scan.FollowSymlinks)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 7411, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.ExportInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
roots:
  - /home/u/code
  - /srv/projects
scan:
  max_depth: 3
  exclude:
    - "scratch-*"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/home/u/code", "/srv/projects"}, cfg.Roots)
	assert.Equal(t, 3, cfg.Scan.MaxDepth)
	assert.Equal(t, []string{"scratch-*"}, cfg.Scan.Exclude)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched fields keep their defaults.
	assert.Equal(t, 7411, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  max_depth: 3\n"), 0o600))

	t.Setenv("PROJMAN_SCAN_MAX_DEPTH", "7")
	t.Setenv("PROJMAN_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scan.MaxDepth)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Scan:    ScanConfig{MaxDepth: 5, MinLanguageShare: 0.05},
			Server:  ServerConfig{Host: "localhost", Port: 7411},
			Logging: LoggingConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero depth", mutate: func(c *Config) { c.Scan.MaxDepth = 0 }, wantErr: true},
		{name: "share too high", mutate: func(c *Config) { c.Scan.MinLanguageShare = 1 }, wantErr: true},
		{name: "negative share", mutate: func(c *Config) { c.Scan.MinLanguageShare = -0.1 }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "telemetry disabled skips checks", mutate: func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: false}
		}},
		{name: "telemetry without endpoint", mutate: func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Protocol: "grpc", ExportInterval: time.Second}
		}, wantErr: true},
		{name: "telemetry bad protocol", mutate: func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "udp", ExportInterval: time.Second}
		}, wantErr: true},
		{name: "telemetry zero interval", mutate: func(c *Config) {
			c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "localhost:4317", Protocol: "grpc"}
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadExpandsHome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roots:\n  - ~/code\nstore:\n  path: ~/data/projects.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, "code")}, cfg.Roots)
	assert.Equal(t, filepath.Join(home, "data", "projects.db"), cfg.Store.Path)
}

func TestStorePathDefault(t *testing.T) {
	cfg := &Config{}
	path, err := cfg.StorePath()
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(".config", "projman", "projects.db"))

	cfg.Store.Path = "/tmp/custom.db"
	path, err = cfg.StorePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)
}
