// Package main implements the projman CLI for discovering and managing
// software projects on the local filesystem.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/classify"
	"github.com/KaldarAralay/ProjectManager/internal/config"
	"github.com/KaldarAralay/ProjectManager/internal/logging"
	"github.com/KaldarAralay/ProjectManager/internal/reconcile"
	"github.com/KaldarAralay/ProjectManager/internal/scanner"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

var (
	// configPath overrides the default config file location
	configPath string
	// outputJSON switches command output to JSON
	outputJSON bool
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "projman",
	Short: "Discover and manage software projects on this machine",
	Long: `projman scans configured root directories for software projects,
detects their languages, and keeps a durable catalog of them with
user-assigned status, favorites, notes, and custom commands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/projman/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output results as JSON")
}

// app bundles the long-lived dependencies a command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// initApp loads configuration, builds the logger, and opens the store.
// Callers must invoke Close when done.
func initApp(ctx context.Context) (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	dbPath, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening project store: %w", err)
	}
	if st.RecoveredFromCorruption() {
		fmt.Fprintln(os.Stderr, "Warning: the project database was corrupt and has been reinitialized. User edits were lost; the old file was kept alongside it.")
	}

	return &app{cfg: cfg, logger: logger, store: st}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

// newEngine wires the scanner and classifier into a reconciliation engine.
func (a *app) newEngine() *reconcile.Engine {
	classifier := classify.New(classify.Options{
		MinShare: a.cfg.Scan.MinLanguageShare,
	}, a.logger)

	sc := scanner.New(classifier, scanner.Options{
		MaxDepth:       a.cfg.Scan.MaxDepth,
		Exclude:        a.cfg.Scan.Exclude,
		FollowSymlinks: a.cfg.Scan.FollowSymlinks,
	}, a.logger)

	return reconcile.New(sc, a.store, a.logger)
}

// effectiveRoots returns the stored scan directories, falling back to the
// configured roots.
func (a *app) effectiveRoots(ctx context.Context) ([]string, error) {
	roots, err := a.store.ScanDirectories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading scan directories: %w", err)
	}
	if len(roots) == 0 {
		roots = a.cfg.Roots
	}
	return roots, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
