package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rootsCmd)
	rootsCmd.AddCommand(rootsAddCmd)
	rootsCmd.AddCommand(rootsRemoveCmd)
	rootsCmd.AddCommand(rootsListCmd)
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Manage the scan root directories",
	Long: `Manage the directories projman scans for projects. Roots added here are
persisted in the catalog and take precedence over the roots in the config
file.`,
}

var rootsAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Add a scan root",
	Args:  cobra.ExactArgs(1),
	RunE:  runRootsAdd,
}

var rootsRemoveCmd = &cobra.Command{
	Use:   "remove <dir>",
	Short: "Remove a scan root",
	Args:  cobra.ExactArgs(1),
	RunE:  runRootsRemove,
}

var rootsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective scan roots",
	RunE:  runRootsList,
}

func runRootsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roots, err := a.store.ScanDirectories(ctx)
	if err != nil {
		return fmt.Errorf("loading scan directories: %w", err)
	}
	for _, r := range roots {
		if r == dir {
			fmt.Printf("%s is already a scan root\n", dir)
			return nil
		}
	}
	roots = append(roots, dir)

	if err := a.store.SetScanDirectories(ctx, roots); err != nil {
		return fmt.Errorf("saving scan directories: %w", err)
	}

	fmt.Printf("Added scan root %s\n", dir)
	return nil
}

func runRootsRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roots, err := a.store.ScanDirectories(ctx)
	if err != nil {
		return fmt.Errorf("loading scan directories: %w", err)
	}

	kept := make([]string, 0, len(roots))
	found := false
	for _, r := range roots {
		if r == dir {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("%s is not a stored scan root", dir)
	}

	if err := a.store.SetScanDirectories(ctx, kept); err != nil {
		return fmt.Errorf("saving scan directories: %w", err)
	}

	fmt.Printf("Removed scan root %s\n", dir)
	return nil
}

func runRootsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	roots, err := a.effectiveRoots(ctx)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(roots)
	}

	if len(roots) == 0 {
		fmt.Println("No scan roots configured.")
		return nil
	}
	for _, r := range roots {
		fmt.Println(r)
	}
	return nil
}
