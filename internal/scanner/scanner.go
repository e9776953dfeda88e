// Package scanner walks configured root directories and discovers project
// boundaries by marker files (version-control metadata, package manifests,
// build-system files). Each boundary is classified and emitted as a
// descriptor; the scanner never descends into a discovered project, so a
// project nested inside another project's subtree is not reported twice.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/classify"
	"github.com/KaldarAralay/ProjectManager/internal/project"
)

// DefaultMaxDepth bounds how deep the scanner descends below each root.
const DefaultMaxDepth = 5

// nowFunc stamps descriptors; swapped in tests.
var nowFunc = time.Now

// defaultMarkers identify a directory as a project root when present.
var defaultMarkers = []string{
	".git",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"setup.py",
	"requirements.txt",
	"go.mod",
	"pom.xml",
	"build.gradle",
	"build.gradle.kts",
	"Makefile",
	"CMakeLists.txt",
	"Gemfile",
	"composer.json",
	"pubspec.yaml",
	"mix.exs",
	"stack.yaml",
	"Package.swift",
}

// defaultMarkerGlobs identify a project by file pattern rather than exact name.
var defaultMarkerGlobs = []string{"*.sln", "*.csproj"}

// pruneDirs are dependency caches and build outputs excluded before marker
// checks, both for performance and to avoid false-positive nested projects
// inside dependency trees.
var pruneDirs = map[string]bool{
	"node_modules": true,
	"venv":         true,
	"env":          true,
	"__pycache__":  true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"out":          true,
	"bin":          true,
	"obj":          true,
	"vendor":       true,
	"packages":     true,
	"coverage":     true,
	"htmlcov":      true,
	"third_party":  true,
	"external":     true,
	"deps":         true,
	"dependencies": true,
}

// Options configures a Scanner.
type Options struct {
	// MaxDepth bounds the walk depth below each root. Zero means
	// DefaultMaxDepth.
	MaxDepth int

	// Exclude holds doublestar glob patterns matched against directory
	// names and slash paths; matching directories are pruned.
	Exclude []string

	// FollowSymlinks enables descending through symlinked directories.
	// Each resolved target is visited at most once per scan.
	FollowSymlinks bool

	// Markers overrides the default project marker set when non-empty.
	Markers []string
}

// Scanner discovers projects under a set of root directories.
type Scanner struct {
	classifier *classify.Classifier
	opts       Options
	logger     *zap.Logger
}

// Result collects everything one scan produced.
type Result struct {
	// Descriptors are the discovered projects, in walk order, deduplicated
	// by path across roots.
	Descriptors []project.Descriptor

	// Warnings are the non-fatal failures hit during the walk.
	Warnings []project.Warning
}

// New creates a Scanner. A nil logger is replaced with a no-op logger.
func New(classifier *classify.Classifier, opts Options, logger *zap.Logger) *Scanner {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if len(opts.Markers) == 0 {
		opts.Markers = defaultMarkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{classifier: classifier, opts: opts, logger: logger}
}

// Scan performs a fresh walk of every root and returns the discovered
// descriptors plus collected warnings. An unreadable root is fatal for that
// root only and recorded as a warning; the other roots still scan. The only
// hard error is context cancellation, checked between directory visits.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*Result, error) {
	res := &Result{}
	emitted := make(map[string]bool)
	visited := make(map[string]bool) // resolved dir paths, symlink cycle guard

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			res.Warnings = append(res.Warnings, rootWarning(root, err))
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			res.Warnings = append(res.Warnings, rootWarning(abs, err))
			continue
		}
		if !info.IsDir() {
			res.Warnings = append(res.Warnings, project.Warning{
				Kind: project.WarnRootUnavailable,
				Path: abs,
				Err:  "not a directory",
			})
			continue
		}

		if err := s.walk(ctx, abs, 0, emitted, visited, res); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("scan complete",
		zap.Int("roots", len(roots)),
		zap.Int("projects", len(res.Descriptors)),
		zap.Int("warnings", len(res.Warnings)),
	)

	return res, nil
}

// walk recurses below dir. Returned errors are cancellation only; readability
// failures become warnings.
func (s *Scanner) walk(ctx context.Context, dir string, depth int, emitted, visited map[string]bool, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		res.Warnings = append(res.Warnings, project.Warning{
			Kind: project.WarnPermission,
			Path: dir,
			Err:  err.Error(),
		})
		return nil
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		kind := project.WarnPermission
		if depth == 0 {
			kind = project.WarnRootUnavailable
		}
		res.Warnings = append(res.Warnings, project.Warning{Kind: kind, Path: dir, Err: err.Error()})
		return nil
	}

	if s.isBoundary(entries) {
		if !emitted[dir] {
			emitted[dir] = true
			s.emit(ctx, dir, res)
		}
		// First boundary found wins; never descend into a project.
		return nil
	}

	if depth >= s.opts.MaxDepth {
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		child := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if !isDir && entry.Type()&fs.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(child)
			if err != nil || !target.IsDir() {
				continue
			}
			isDir = true
		}
		if !isDir {
			continue
		}

		if s.pruned(name, child) {
			continue
		}

		if err := s.walk(ctx, child, depth+1, emitted, visited, res); err != nil {
			return err
		}
	}

	return nil
}

// emit classifies a discovered project directory and records its descriptor.
// Classification failures degrade to a warning with an unclassified
// descriptor rather than dropping the project.
func (s *Scanner) emit(ctx context.Context, dir string, res *Result) {
	langs, warnings, err := s.classifier.Classify(ctx, dir)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		res.Warnings = append(res.Warnings, project.Warning{
			Kind: project.WarnClassify,
			Path: dir,
			Err:  err.Error(),
		})
		langs = nil
	}

	desc, err := project.NewDescriptor(dir, langs, nowFunc())
	if err != nil {
		return
	}
	res.Descriptors = append(res.Descriptors, desc)
}

// isBoundary reports whether a directory listing contains a project marker.
func (s *Scanner) isBoundary(entries []os.DirEntry) bool {
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, marker := range s.opts.Markers {
		if names[marker] {
			return true
		}
	}
	for _, pattern := range defaultMarkerGlobs {
		for name := range names {
			if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
		}
	}
	return false
}

// rootWarning records a configured root that could not be scanned.
func rootWarning(path string, err error) project.Warning {
	return project.Warning{
		Kind: project.WarnRootUnavailable,
		Path: path,
		Err:  err.Error(),
	}
}

// pruned reports whether a directory is excluded from the walk: hidden
// directories, known dependency caches, and user-configured glob patterns.
func (s *Scanner) pruned(name, path string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if pruneDirs[strings.ToLower(name)] {
		return true
	}
	for _, pattern := range s.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(path)); ok {
			return true
		}
	}
	return false
}
