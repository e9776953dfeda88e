// Package classify detects the dominant programming languages of a project
// directory by counting source files per extension up to a bounded depth.
//
// The heuristic is deliberately cheap: no build-system awareness, no file
// content inspection. Extensions without a language mapping are ignored,
// dependency and output directories are pruned so vendored trees cannot
// dominate the count, and unreadable subdirectories degrade the result with
// a warning instead of failing it.
package classify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/project"
)

const (
	// DefaultMaxDepth bounds how deep the classifier descends into a
	// project tree.
	DefaultMaxDepth = 4

	// DefaultMinShare is the minimum fraction of mapped files a language
	// must hold to appear in the result.
	DefaultMinShare = 0.05
)

// extLanguages maps file extensions to language tags. Extensions absent
// here are ignored, not counted as unknown.
var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".kts":   "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".scala": "scala",
	".clj":   "clojure",
	".ex":    "elixir",
	".exs":   "elixir",
	".erl":   "erlang",
	".hs":    "haskell",
	".ml":    "ocaml",
	".lua":   "lua",
	".r":     "r",
	".dart":  "dart",
	".zig":   "zig",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
}

// skipDirs are dependency caches and build outputs that would otherwise
// dominate the file count with noise.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	"env":          true,
	"__pycache__":  true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"out":          true,
	"bin":          true,
	"obj":          true,
	"packages":     true,
	"coverage":     true,
	"htmlcov":      true,
	"third_party":  true,
	"external":     true,
	"deps":         true,
}

// Options configures a Classifier.
type Options struct {
	// MaxDepth bounds the traversal depth. Zero means DefaultMaxDepth.
	MaxDepth int

	// MinShare drops languages below this fraction of mapped files.
	// Zero means DefaultMinShare.
	MinShare float64
}

// Classifier ranks the languages of a directory tree.
type Classifier struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Classifier. A nil logger is replaced with a no-op logger.
func New(opts Options, logger *zap.Logger) *Classifier {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MinShare <= 0 {
		opts.MinShare = DefaultMinShare
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{opts: opts, logger: logger}
}

// Classify walks dir up to the configured depth and returns the detected
// languages ordered by descending weight, ties broken by tag. An empty
// result means no file mapped to a known language.
//
// Unreadable subdirectories are skipped and reported as warnings; only a
// completely unreadable dir (or a cancelled context) yields an error.
func (c *Classifier) Classify(ctx context.Context, dir string) ([]project.Language, []project.Warning, error) {
	counts := make(map[string]int)
	var warnings []project.Warning

	if err := c.count(ctx, dir, 0, counts, &warnings); err != nil {
		return nil, warnings, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return nil, warnings, nil
	}

	langs := make([]project.Language, 0, len(counts))
	for tag, n := range counts {
		weight := float64(n) / float64(total)
		if weight < c.opts.MinShare {
			continue
		}
		langs = append(langs, project.Language{Tag: tag, Weight: weight})
	}

	sort.Slice(langs, func(i, j int) bool {
		if langs[i].Weight != langs[j].Weight {
			return langs[i].Weight > langs[j].Weight
		}
		return langs[i].Tag < langs[j].Tag
	})

	c.logger.Debug("classified directory",
		zap.String("dir", dir),
		zap.Int("mapped_files", total),
		zap.Int("languages", len(langs)),
	)

	return langs, warnings, nil
}

// count tallies mapped files per language under dir. Cancellation is
// checked on every directory visit.
func (c *Classifier) count(ctx context.Context, dir string, depth int, counts map[string]int, warnings *[]project.Warning) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > c.opts.MaxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			return fmt.Errorf("reading project directory: %w", err)
		}
		*warnings = append(*warnings, project.Warning{
			Kind: project.WarnClassify,
			Path: dir,
			Err:  err.Error(),
		})
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[strings.ToLower(name)] {
				continue
			}
			if err := c.count(ctx, filepath.Join(dir, name), depth+1, counts, warnings); err != nil {
				return err
			}
			continue
		}
		if tag, ok := extLanguages[strings.ToLower(filepath.Ext(name))]; ok {
			counts[tag]++
		}
	}

	return nil
}
