package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment variable overrides.
const envPrefix = "PROJMAN_"

// defaultYAML carries the hardcoded defaults as the lowest-precedence layer.
var defaultYAML = []byte(`
roots: []
scan:
  max_depth: 5
  exclude: []
  min_language_share: 0.05
  follow_symlinks: true
store:
  path: ""
server:
  host: localhost
  port: 7411
logging:
  level: info
  format: console
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  export_interval: 15s
`)

// Load builds the configuration from three layers, highest precedence last
// to first:
//
//  1. Environment variables (PROJMAN_SCAN_MAX_DEPTH, PROJMAN_SERVER_PORT, ...)
//  2. YAML config file (default: ~/.config/projman/config.yaml)
//  3. Hardcoded defaults
//
// A missing config file is not an error; a malformed one is.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath == "" {
		var err error
		if configPath, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	// PROJMAN_SCAN_MAX_DEPTH -> scan.max_depth: the first underscore
	// separates the section, the remainder keeps its underscores.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for i, root := range cfg.Roots {
		expanded, err := expandHome(root)
		if err != nil {
			return nil, err
		}
		cfg.Roots[i] = expanded
	}
	if expanded, err := expandHome(cfg.Store.Path); err != nil {
		return nil, err
	} else {
		cfg.Store.Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
