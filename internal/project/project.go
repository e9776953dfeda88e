// Package project defines the core domain types shared by the scanner,
// store, and reconciliation engine: the Project record, scan descriptors,
// and the warning taxonomy for non-fatal scan failures.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Common errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrInvalidStatus    = errors.New("invalid project status")
	ErrEmptyPath        = errors.New("project path cannot be empty")
	ErrDuplicateCommand = errors.New("duplicate command name")
)

// Status is the user-assigned lifecycle state of a project.
type Status string

const (
	StatusActive   Status = "active"
	StatusOnHold   Status = "on-hold"
	StatusArchived Status = "archived"
)

// ParseStatus converts a string to a Status, accepting a few common
// spellings for on-hold.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "on-hold", "onhold", "hold":
		return StatusOnHold, nil
	case "archived":
		return StatusArchived, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOnHold, StatusArchived:
		return true
	}
	return false
}

// Display returns the human-readable status name.
func (s Status) Display() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusOnHold:
		return "On Hold"
	case StatusArchived:
		return "Archived"
	}
	return "Unknown"
}

// Language is one detected language tag with its share of the mapped
// source files in the project tree.
type Language struct {
	// Tag is the lowercase language identifier (e.g. "go", "python").
	Tag string `json:"tag"`

	// Weight is the fraction of mapped files attributed to this language,
	// in (0, 1].
	Weight float64 `json:"weight"`
}

// Command is a user-defined command template attached to a project.
// Templates are stored raw; the core never executes them.
type Command struct {
	// Name identifies the command. Unique within a project.
	Name string `json:"name"`

	// Template is the raw command line. It may contain the placeholders
	// {path} and {name}, substituted by the external executor.
	Template string `json:"template"`
}

// Expand substitutes the {path} and {name} placeholders. Provided for the
// external executor; the core only stores and returns raw templates.
func (c Command) Expand(path, name string) string {
	out := strings.ReplaceAll(c.Template, "{path}", path)
	return strings.ReplaceAll(out, "{name}", name)
}

// Project is the central entity: a discovered software project plus the
// user-owned metadata layered on top of scan results.
//
// Scans own Languages, LastScanned, and Present. Everything else is set by
// the user (or defaulted on first discovery) and is never overwritten by a
// scan.
type Project struct {
	// Path is the absolute filesystem path. It is the unique, stable
	// identifier and the merge key across scans.
	Path string `json:"path"`

	// Name is the display name. Defaults to the final path segment; the
	// user may override it.
	Name string `json:"name"`

	// Languages are the detected language tags, most-represented first.
	// Empty means no source files could be classified.
	Languages []Language `json:"languages"`

	// Status is the user-assigned lifecycle state.
	Status Status `json:"status"`

	// Notes is free-form user text.
	Notes string `json:"notes"`

	// Favorite marks the project as pinned by the user.
	Favorite bool `json:"favorite"`

	// Present reports whether the path was found on the most recent scan.
	// Projects whose directory disappears are flagged, never deleted.
	Present bool `json:"present"`

	// Commands are the project's custom command templates, in user order.
	Commands []Command `json:"commands,omitempty"`

	// FirstSeen is the timestamp of initial discovery. Immutable.
	FirstSeen time.Time `json:"first_seen"`

	// LastScanned is the timestamp of the most recent successful
	// classification.
	LastScanned time.Time `json:"last_scanned"`
}

// PrimaryLanguage returns the top-ranked detected language tag, or empty
// when nothing was classified.
func (p *Project) PrimaryLanguage() string {
	if len(p.Languages) == 0 {
		return ""
	}
	return p.Languages[0].Tag
}

// Descriptor is the scanner's pre-merge output for one discovered project.
type Descriptor struct {
	// Path is the absolute project path.
	Path string `json:"path"`

	// Name is derived from the final path segment.
	Name string `json:"name"`

	// Languages are the classifier's ranked results.
	Languages []Language `json:"languages"`

	// ScannedAt is when the project was classified during this scan.
	ScannedAt time.Time `json:"scanned_at"`
}

// NewDescriptor builds a descriptor for a discovered project directory.
func NewDescriptor(path string, languages []Language, at time.Time) (Descriptor, error) {
	if path == "" {
		return Descriptor{}, ErrEmptyPath
	}
	return Descriptor{
		Path:      path,
		Name:      filepath.Base(path),
		Languages: languages,
		ScannedAt: at,
	}, nil
}

// WarningKind classifies non-fatal scan failures.
type WarningKind string

const (
	// WarnPermission flags a subtree that could not be read and was skipped.
	WarnPermission WarningKind = "permission"

	// WarnRootUnavailable flags a configured root that is missing or
	// unreadable. Fatal for that root only; other roots still scan.
	WarnRootUnavailable WarningKind = "root-unavailable"

	// WarnClassify flags a directory whose classification was degraded
	// (e.g. unreadable subdirectories inside a project tree).
	WarnClassify WarningKind = "classify"
)

// Warning records a non-fatal failure collected during a scan. Warnings are
// attached to the reconciliation result, never raised as errors.
type Warning struct {
	Kind WarningKind `json:"kind"`
	Path string      `json:"path"`
	Err  string      `json:"error"`
}

// String implements fmt.Stringer for log and CLI output.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Err)
}
