package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaldarAralay/ProjectManager/internal/project"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

var (
	// favorite command flags
	favoriteUnset bool
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(removeCmd)

	favoriteCmd.Flags().BoolVar(&favoriteUnset, "unset", false, "remove the favorite mark instead of setting it")
}

var statusCmd = &cobra.Command{
	Use:   "status <active|on-hold|archived> <path>...",
	Short: "Set the lifecycle status of one or more projects",
	Long: `Set the lifecycle status of one or more projects. With several paths the
update is applied as a unit; if any path is unknown, nothing changes.

Examples:
  # Archive one project
  projman status archived ~/code/oldtool

  # Put several projects on hold at once
  projman status on-hold ~/code/a ~/code/b ~/code/c`,
	Args: cobra.MinimumNArgs(2),
	RunE: runStatus,
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite <path>",
	Short: "Mark a project as a favorite",
	Long: `Mark a project as a favorite, or remove the mark with --unset.

Examples:
  projman favorite ~/code/api
  projman favorite --unset ~/code/api`,
	Args: cobra.ExactArgs(1),
	RunE: runFavorite,
}

var renameCmd = &cobra.Command{
	Use:   "rename <path> <name>",
	Short: "Set a project's display name",
	Long: `Set a project's display name. The name is yours; rescans never touch it.

Examples:
  projman rename ~/code/api "Billing API"`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

var notesCmd = &cobra.Command{
	Use:   "notes <path> [text]",
	Short: "Show or set a project's notes",
	Long: `Show a project's notes, or replace them when text is given. An empty
string clears them.

Examples:
  # Show notes
  projman notes ~/code/api

  # Set notes
  projman notes ~/code/api "blocked on upstream release"

  # Clear notes
  projman notes ~/code/api ""`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNotes,
}

var removeCmd = &cobra.Command{
	Use:   "remove <path>",
	Short: "Remove a project from the catalog",
	Long: `Remove a project record from the catalog entirely, including its notes
and commands. The directory itself is not touched. If the directory still
exists, the next scan will rediscover it with default settings.

Examples:
  projman remove ~/code/oldtool`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	status, err := project.ParseStatus(args[0])
	if err != nil {
		return err
	}
	paths := args[1:]

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.BatchUpdateStatus(ctx, paths, status); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	fmt.Printf("Set %d project(s) to %s\n", len(paths), status.Display())
	return nil
}

func runFavorite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	fav := !favoriteUnset
	if err := a.store.UpdateUserFields(ctx, args[0], store.UserPatch{Favorite: &fav}); err != nil {
		return fmt.Errorf("updating favorite: %w", err)
	}

	if fav {
		fmt.Println("Marked as favorite")
	} else {
		fmt.Println("Favorite mark removed")
	}
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name := strings.TrimSpace(args[1])
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.UpdateUserFields(ctx, args[0], store.UserPatch{Name: &name}); err != nil {
		return fmt.Errorf("renaming project: %w", err)
	}

	fmt.Printf("Renamed to %q\n", name)
	return nil
}

func runNotes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		p, err := a.store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if p.Notes == "" {
			fmt.Println("No notes.")
		} else {
			fmt.Println(p.Notes)
		}
		return nil
	}

	notes := args[1]
	if err := a.store.UpdateUserFields(ctx, args[0], store.UserPatch{Notes: &notes}); err != nil {
		return fmt.Errorf("updating notes: %w", err)
	}

	if notes == "" {
		fmt.Println("Notes cleared")
	} else {
		fmt.Println("Notes updated")
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("removing project: %w", err)
	}

	fmt.Println("Removed from catalog")
	return nil
}
