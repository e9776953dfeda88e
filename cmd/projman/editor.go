package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(editorCmd)
}

var editorCmd = &cobra.Command{
	Use:   "editor [command]",
	Short: "Show or set the preferred editor command",
	Long: `Show or set the editor command external tools launch projects with.
projman stores the preference; it never runs the editor itself.

Examples:
  # Show the current editor
  projman editor

  # Use a different one
  projman editor nvim`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEditor,
}

func runEditor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		editor, err := a.store.EditorCommand(ctx)
		if err != nil {
			return fmt.Errorf("reading editor command: %w", err)
		}
		fmt.Println(editor)
		return nil
	}

	if err := a.store.SetEditorCommand(ctx, args[0]); err != nil {
		return fmt.Errorf("saving editor command: %w", err)
	}
	fmt.Printf("Editor set to %q\n", args[0])
	return nil
}
