package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaldarAralay/ProjectManager/internal/project"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

var (
	// command expand flag
	commandExpand bool
)

func init() {
	rootCmd.AddCommand(commandCmd)
	commandCmd.AddCommand(commandAddCmd)
	commandCmd.AddCommand(commandRemoveCmd)
	commandCmd.AddCommand(commandListCmd)

	commandListCmd.Flags().BoolVar(&commandExpand, "expand", false, "substitute {path} and {name} in templates")
}

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Manage a project's custom commands",
	Long: `Manage the custom command templates attached to a project. Templates may
contain the placeholders {path} and {name}; projman stores them verbatim
and never executes them.`,
}

var commandAddCmd = &cobra.Command{
	Use:   "add <path> <name> <template>",
	Short: "Add a command template to a project",
	Long: `Add a command template to a project. Names are unique per project.

Examples:
  projman command add ~/code/api test "go test ./..."
  projman command add ~/code/api open "code {path}"`,
	Args: cobra.ExactArgs(3),
	RunE: runCommandAdd,
}

var commandRemoveCmd = &cobra.Command{
	Use:   "remove <path> <name>",
	Short: "Remove a command template from a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommandRemove,
}

var commandListCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "List a project's command templates",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommandList,
}

func runCommandAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, name, template := args[0], args[1], args[2]
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.Get(ctx, path)
	if err != nil {
		return err
	}

	for _, c := range p.Commands {
		if c.Name == name {
			return fmt.Errorf("adding command %q: %w", name, project.ErrDuplicateCommand)
		}
	}
	commands := append(p.Commands, project.Command{Name: name, Template: template})

	if err := a.store.UpdateUserFields(ctx, path, store.UserPatch{Commands: &commands}); err != nil {
		return fmt.Errorf("adding command: %w", err)
	}

	fmt.Printf("Added command %q\n", name)
	return nil
}

func runCommandRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path, name := args[0], args[1]

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.Get(ctx, path)
	if err != nil {
		return err
	}

	commands := make([]project.Command, 0, len(p.Commands))
	found := false
	for _, c := range p.Commands {
		if c.Name == name {
			found = true
			continue
		}
		commands = append(commands, c)
	}
	if !found {
		return fmt.Errorf("project has no command named %q", name)
	}

	if err := a.store.UpdateUserFields(ctx, path, store.UserPatch{Commands: &commands}); err != nil {
		return fmt.Errorf("removing command: %w", err)
	}

	fmt.Printf("Removed command %q\n", name)
	return nil
}

func runCommandList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(p.Commands)
	}

	if len(p.Commands) == 0 {
		fmt.Println("No commands.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTEMPLATE")
	for _, c := range p.Commands {
		template := c.Template
		if commandExpand {
			template = c.Expand(p.Path, p.Name)
		}
		fmt.Fprintf(w, "%s\t%s\n", c.Name, template)
	}
	return w.Flush()
}
