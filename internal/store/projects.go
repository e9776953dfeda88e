package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaldarAralay/ProjectManager/internal/project"
)

// timeFormat is the canonical timestamp encoding in the database.
const timeFormat = time.RFC3339Nano

// Filter selects projects in Query. Nil/zero fields are ignored.
type Filter struct {
	// Status matches the exact lifecycle state.
	Status *project.Status

	// Language matches projects whose detected languages include the tag.
	Language string

	// Favorite matches the favorite flag.
	Favorite *bool

	// Present matches the presence flag.
	Present *bool

	// Search matches name or path, case-insensitively.
	Search string
}

// UserPatch carries user edits for UpdateUserFields. Nil fields are left
// untouched; scan-owned fields (languages, present, last_scanned) cannot be
// patched here.
type UserPatch struct {
	Name     *string
	Status   *project.Status
	Favorite *bool
	Notes    *string
	Commands *[]project.Command
}

// UpsertScanResult merges one scan descriptor into the store. An unknown
// path is inserted with defaults (active, not favorite); a known path only
// has its scan-owned fields refreshed, leaving user edits untouched.
func (s *Store) UpsertScanResult(ctx context.Context, desc project.Descriptor) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertScanResult(ctx, tx, desc)
	})
}

func upsertScanResult(ctx context.Context, tx *sql.Tx, desc project.Descriptor) error {
	if desc.Path == "" {
		return project.ErrEmptyPath
	}
	langs, err := json.Marshal(orEmptyLanguages(desc.Languages))
	if err != nil {
		return fmt.Errorf("encoding languages: %w", err)
	}
	at := desc.ScannedAt.UTC().Format(timeFormat)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (path, name, languages, status, favorite, present, first_seen, last_scanned)
		VALUES (?, ?, ?, ?, 0, 1, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			languages    = excluded.languages,
			last_scanned = excluded.last_scanned,
			present      = 1`,
		desc.Path, desc.Name, string(langs), project.StatusActive, at, at,
	)
	if err != nil {
		return fmt.Errorf("upserting project %s: %w", desc.Path, err)
	}
	return nil
}

// MarkAbsent flags every stored path not in seen as no longer present.
// Records are never deleted by a scan.
func (s *Store) MarkAbsent(ctx context.Context, seen []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return markAbsent(ctx, tx, seen)
	})
}

func markAbsent(ctx context.Context, tx *sql.Tx, seen []string) error {
	query := "UPDATE projects SET present = 0"
	args := make([]any, 0, len(seen))
	if len(seen) > 0 {
		query += " WHERE path NOT IN (?" + strings.Repeat(", ?", len(seen)-1) + ")"
		for _, p := range seen {
			args = append(args, p)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking absent projects: %w", err)
	}
	return nil
}

// ApplyScan is the reconciler's atomic unit of work: upsert every descriptor
// and mark everything else absent, all in one transaction. A failure on any
// descriptor rolls back the whole scan.
func (s *Store) ApplyScan(ctx context.Context, descs []project.Descriptor) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		seen := make([]string, 0, len(descs))
		for _, desc := range descs {
			if err := upsertScanResult(ctx, tx, desc); err != nil {
				return err
			}
			seen = append(seen, desc.Path)
		}
		return markAbsent(ctx, tx, seen)
	})
}

// UpdateUserFields applies user edits to a stored project. Returns
// project.ErrProjectNotFound when the path is unknown.
func (s *Store) UpdateUserFields(ctx context.Context, path string, patch UserPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("%w: %q", project.ErrInvalidStatus, *patch.Status)
	}
	if patch.Commands != nil {
		names := make(map[string]bool, len(*patch.Commands))
		for _, c := range *patch.Commands {
			if names[c.Name] {
				return fmt.Errorf("%w: %q", project.ErrDuplicateCommand, c.Name)
			}
			names[c.Name] = true
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, path); err != nil {
			return err
		}

		sets := make([]string, 0, 4)
		args := make([]any, 0, 5)
		if patch.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.Status != nil {
			sets = append(sets, "status = ?")
			args = append(args, string(*patch.Status))
		}
		if patch.Favorite != nil {
			sets = append(sets, "favorite = ?")
			args = append(args, boolInt(*patch.Favorite))
		}
		if patch.Notes != nil {
			sets = append(sets, "notes = ?")
			args = append(args, *patch.Notes)
		}
		if len(sets) > 0 {
			args = append(args, path)
			query := "UPDATE projects SET " + strings.Join(sets, ", ") + " WHERE path = ?"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("updating project %s: %w", path, err)
			}
		}

		if patch.Commands != nil {
			if _, err := tx.ExecContext(ctx, "DELETE FROM custom_commands WHERE path = ?", path); err != nil {
				return fmt.Errorf("clearing commands for %s: %w", path, err)
			}
			for i, c := range *patch.Commands {
				_, err := tx.ExecContext(ctx,
					"INSERT INTO custom_commands (path, name, template, position) VALUES (?, ?, ?, ?)",
					path, c.Name, c.Template, i,
				)
				if err != nil {
					return fmt.Errorf("inserting command %q for %s: %w", c.Name, path, err)
				}
			}
		}
		return nil
	})
}

// BatchUpdateStatus sets the status of every listed path atomically: all
// paths update or none do. An unknown path aborts the whole batch with
// project.ErrProjectNotFound.
func (s *Store) BatchUpdateStatus(ctx context.Context, paths []string, status project.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", project.ErrInvalidStatus, status)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, path := range paths {
			res, err := tx.ExecContext(ctx, "UPDATE projects SET status = ? WHERE path = ?", string(status), path)
			if err != nil {
				return fmt.Errorf("updating status for %s: %w", path, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("checking update for %s: %w", path, err)
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", project.ErrProjectNotFound, path)
			}
		}
		return nil
	})
}

// Get returns the stored project at path.
func (s *Store) Get(ctx context.Context, path string) (*project.Project, error) {
	projects, err := s.selectProjects(ctx, "WHERE path = ?", []any{path})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, path)
	}
	return &projects[0], nil
}

// Delete removes a project and its commands. This is the explicit user
// deletion path; scans never call it.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE path = ?", path)
		if err != nil {
			return fmt.Errorf("deleting project %s: %w", path, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking delete for %s: %w", path, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", project.ErrProjectNotFound, path)
		}
		return nil
	})
}

// Query returns projects matching the filter, ordered by name then path.
func (s *Store) Query(ctx context.Context, filter Filter) ([]project.Project, error) {
	var conds []string
	var args []any

	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Language != "" {
		conds = append(conds, `languages LIKE '%"tag":"' || ? || '"%'`)
		args = append(args, filter.Language)
	}
	if filter.Favorite != nil {
		conds = append(conds, "favorite = ?")
		args = append(args, boolInt(*filter.Favorite))
	}
	if filter.Present != nil {
		conds = append(conds, "present = ?")
		args = append(args, boolInt(*filter.Present))
	}
	if filter.Search != "" {
		conds = append(conds, "(LOWER(name) LIKE '%' || LOWER(?) || '%' OR LOWER(path) LIKE '%' || LOWER(?) || '%')")
		args = append(args, filter.Search, filter.Search)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	return s.selectProjects(ctx, where, args)
}

// Languages returns the distinct detected language tags across all stored
// projects, sorted alphabetically. Used by the presentation layer to build
// filter choices.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, "SELECT languages FROM projects")
	if err != nil {
		return nil, fmt.Errorf("querying languages: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning languages: %w", err)
		}
		var langs []project.Language
		if err := json.Unmarshal([]byte(raw), &langs); err != nil {
			continue
		}
		for _, l := range langs {
			tags[l.Tag] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating languages: %w", err)
	}

	out := make([]string, 0, len(tags))
	for tag := range tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// selectProjects runs the shared projection query and attaches commands.
func (s *Store) selectProjects(ctx context.Context, where string, args []any) ([]project.Project, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}

	query := `SELECT path, name, languages, status, notes, favorite, present, first_seen, last_scanned
		FROM projects ` + where + " ORDER BY name, path"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		index[p.Path] = len(projects)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	if len(projects) == 0 {
		return nil, nil
	}

	cmdRows, err := s.db.QueryContext(ctx,
		"SELECT path, name, template FROM custom_commands ORDER BY path, position")
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer cmdRows.Close()

	for cmdRows.Next() {
		var path string
		var cmd project.Command
		if err := cmdRows.Scan(&path, &cmd.Name, &cmd.Template); err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}
		if i, ok := index[path]; ok {
			projects[i].Commands = append(projects[i].Commands, cmd)
		}
	}
	if err := cmdRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}

	return projects, nil
}

// scanProject decodes one projects row.
func scanProject(rows *sql.Rows) (project.Project, error) {
	var p project.Project
	var languages, status, firstSeen, lastScanned string
	var favorite, present int

	err := rows.Scan(&p.Path, &p.Name, &languages, &status, &p.Notes, &favorite, &present, &firstSeen, &lastScanned)
	if err != nil {
		return p, fmt.Errorf("scanning project: %w", err)
	}

	if err := json.Unmarshal([]byte(languages), &p.Languages); err != nil {
		return p, fmt.Errorf("decoding languages for %s: %w", p.Path, err)
	}
	p.Status = project.Status(status)
	p.Favorite = favorite != 0
	p.Present = present != 0

	if p.FirstSeen, err = time.Parse(timeFormat, firstSeen); err != nil {
		return p, fmt.Errorf("decoding first_seen for %s: %w", p.Path, err)
	}
	if p.LastScanned, err = time.Parse(timeFormat, lastScanned); err != nil {
		return p, fmt.Errorf("decoding last_scanned for %s: %w", p.Path, err)
	}
	return p, nil
}

// mustExist fails with project.ErrProjectNotFound when path has no row.
func mustExist(ctx context.Context, tx *sql.Tx, path string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE path = ?", path).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", project.ErrProjectNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("checking project %s: %w", path, err)
	}
	return nil
}

func orEmptyLanguages(langs []project.Language) []project.Language {
	if langs == nil {
		return []project.Language{}
	}
	return langs
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
