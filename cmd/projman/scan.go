package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaldarAralay/ProjectManager/internal/reconcile"
)

var (
	// scan command flags
	scanRoots []string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringSliceVar(&scanRoots, "root", nil, "root directory to scan (repeatable, overrides configured roots)")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured roots and refresh the project catalog",
	Long: `Scan the configured root directories for projects and merge the results
into the catalog. Detected languages and presence are refreshed; names,
statuses, favorites, notes, and commands you have set are preserved.
Projects whose directory has disappeared are marked missing, not removed.

Examples:
  # Scan the configured roots
  projman scan

  # Scan specific roots instead
  projman scan --root ~/code --root ~/work`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roots := scanRoots
	if len(roots) == 0 {
		roots, err = a.effectiveRoots(ctx)
		if err != nil {
			return err
		}
	}
	if len(roots) == 0 {
		return fmt.Errorf("no scan roots configured; add one with 'projman roots add <dir>' or set roots in the config file")
	}

	result, err := a.newEngine().Reconcile(ctx, roots)
	if err != nil {
		if errors.Is(err, reconcile.ErrScanInProgress) {
			return fmt.Errorf("a scan is already in progress")
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if outputJSON {
		return printJSON(result)
	}

	fmt.Printf("Scanned %d root(s) in %s\n", len(roots), result.Duration.Round(time.Millisecond))
	fmt.Printf("Discovered %d project(s), catalog holds %d\n", result.Discovered, len(result.Projects))
	if len(result.Warnings) > 0 {
		fmt.Printf("\n%d warning(s):\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("  %s\n", w.String())
		}
	}

	return nil
}
