package app

import (
	"context"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/core/ports"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Scanner discovers source files below a set of roots. Directories and
// files are skipped when their base name or their path relative to the root
// matches an exclude pattern.
type Scanner struct {
	roots        []string
	extensions   map[string]bool
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	logger       *slog.Logger
}

var _ ports.SourceProvider = (*Scanner)(nil)

func NewScanner(roots, extensions, excludeDirs, excludeFiles []string, logger *slog.Logger) (*Scanner, error) {
	dirGlobs, err := compileGlobs(excludeDirs)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "compile exclude patterns")
	}
	fileGlobs, err := compileGlobs(excludeFiles)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "compile exclude patterns")
	}
	if logger == nil {
		logger = slog.Default()
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &Scanner{
		roots:        uniqueRoots(roots),
		extensions:   exts,
		excludeDirs:  dirGlobs,
		excludeFiles: fileGlobs,
		logger:       logger,
	}, nil
}

func (s *Scanner) Roots() []string { return append([]string(nil), s.roots...) }

// Files lists matching files in lexical order per root.
func (s *Scanner) Files(ctx context.Context) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && s.ExcludedDir(root, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.Accepts(root, path) || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, root)
		}
	}
	return files, nil
}

// Sources reads every discovered file.
func (s *Scanner) Sources(ctx context.Context) ([]ports.Source, error) {
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]ports.Source, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.AddContext(fmt.Errorf("read source: %w", err), errors.CtxPath, path)
		}
		sources = append(sources, ports.Source{Path: path, Content: content})
	}
	s.logger.Debug("sources discovered", "roots", len(s.roots), "files", len(sources))
	return sources, nil
}

func (s *Scanner) ExcludedDir(root, path string) bool {
	return matchAny(s.excludeDirs, filepath.Base(path), relative(root, path))
}

// Accepts reports whether a file below root has a known extension and is not
// excluded.
func (s *Scanner) Accepts(root, path string) bool {
	if !s.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return !matchAny(s.excludeFiles, filepath.Base(path), relative(root, path))
}

// Owns reports whether path lies below one of the roots and would be
// scanned, taking excluded parent directories into account.
func (s *Scanner) Owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, root := range s.roots {
		if !util.WithinRoot(abs, root) {
			continue
		}
		for dir := filepath.Dir(abs); util.WithinRoot(dir, root) && dir != root; dir = filepath.Dir(dir) {
			if s.ExcludedDir(root, dir) {
				return false
			}
		}
		return s.Accepts(root, abs)
	}
	return false
}

func relative(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return util.SlashPath(rel)
}

// compileGlobs uses '/' as the separator so "*" stays inside one path
// segment while "**" crosses segments.
func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// uniqueRoots makes roots absolute, drops duplicates and sorts them.
func uniqueRoots(paths []string) []string {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		set[filepath.Clean(p)] = struct{}{}
	}
	roots := make([]string, 0, len(set))
	for root := range set {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

func matchAny(globs []glob.Glob, name, rel string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
		if rel != "" && g.Match(rel) {
			return true
		}
	}
	return false
}
