package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaldarAralay/ProjectManager/internal/project"
	"github.com/KaldarAralay/ProjectManager/internal/store"
)

var (
	// list command flags
	listStatus    string
	listLanguage  string
	listFavorites bool
	listMissing   bool
	listSearch    string
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(languagesCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status: active, on-hold, archived")
	listCmd.Flags().StringVar(&listLanguage, "language", "", "filter by detected language tag")
	listCmd.Flags().BoolVar(&listFavorites, "favorites", false, "only show favorite projects")
	listCmd.Flags().BoolVar(&listMissing, "missing", false, "only show projects whose directory has disappeared")
	listCmd.Flags().StringVar(&listSearch, "search", "", "match name or path, case-insensitively")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged projects",
	Long: `List the projects in the catalog, optionally filtered.

Examples:
  # All projects
  projman list

  # Active Go projects
  projman list --status active --language go

  # Favorites matching a name fragment
  projman list --favorites --search api

  # Projects whose directory has disappeared
  projman list --missing`,
	RunE: runList,
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the distinct detected languages",
	RunE:  runLanguages,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var filter store.Filter
	if listStatus != "" {
		status, err := project.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		filter.Status = &status
	}
	filter.Language = listLanguage
	filter.Search = listSearch
	if listFavorites {
		fav := true
		filter.Favorite = &fav
	}
	if listMissing {
		present := false
		filter.Present = &present
	}

	projects, err := a.store.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}

	if outputJSON {
		return printJSON(projects)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tLANGUAGES\tPATH")
	for i := range projects {
		p := &projects[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", displayName(p), p.Status.Display(), languageSummary(p), displayPath(p))
	}
	return w.Flush()
}

func runLanguages(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	languages, err := a.store.Languages(ctx)
	if err != nil {
		return fmt.Errorf("listing languages: %w", err)
	}

	if outputJSON {
		return printJSON(languages)
	}

	for _, lang := range languages {
		fmt.Println(lang)
	}
	return nil
}

// displayName marks favorites with a star.
func displayName(p *project.Project) string {
	if p.Favorite {
		return "* " + p.Name
	}
	return p.Name
}

// displayPath flags missing directories.
func displayPath(p *project.Project) string {
	if !p.Present {
		return p.Path + " (missing)"
	}
	return p.Path
}

// languageSummary renders the ranked language tags, top share first.
func languageSummary(p *project.Project) string {
	if len(p.Languages) == 0 {
		return "-"
	}
	tags := make([]string, 0, len(p.Languages))
	for _, l := range p.Languages {
		tags = append(tags, fmt.Sprintf("%s %.0f%%", l.Tag, l.Weight*100))
	}
	return strings.Join(tags, ", ")
}
