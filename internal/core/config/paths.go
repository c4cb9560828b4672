package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute locations derived from a Config.
type ResolvedPaths struct {
	ProjectRoot string
	SourcePaths []string
	CachePath   string
	HistoryPath string
	SummaryXML  string
	PHPUnitXML  string
	YAML        string
}

func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		candidates := make([]string, 0, len(cfg.SourcePaths)+1)
		for _, p := range cfg.SourcePaths {
			candidates = append(candidates, ResolveRelative(cwd, p))
		}
		root, err := DetectProjectRoot(append(candidates, cwd))
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	resolved := ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		CachePath:   ResolveRelative(projectRoot, cfg.Cache.Path),
		HistoryPath: ResolveRelative(projectRoot, cfg.History.Path),
		SummaryXML:  resolveOptional(projectRoot, cfg.Output.SummaryXML),
		PHPUnitXML:  resolveOptional(projectRoot, cfg.Output.PHPUnitXML),
		YAML:        resolveOptional(projectRoot, cfg.Output.YAML),
	}
	for _, p := range cfg.SourcePaths {
		resolved.SourcePaths = append(resolved.SourcePaths, ResolveRelative(cwd, p))
	}
	return resolved, nil
}

// ProjectKey names the project in the run history: the configured project
// name or the base name of the project root.
func ProjectKey(cfg *Config, paths ResolvedPaths) string {
	if cfg.Project != "" {
		return cfg.Project
	}
	return filepath.Base(paths.ProjectRoot)
}

func resolveOptional(base, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return ResolveRelative(base, value)
}

// ResolveRelative anchors value at base unless it is absolute. An empty
// value resolves to base itself.
func ResolveRelative(base, value string) string {
	switch value = strings.TrimSpace(value); {
	case value == "":
		return filepath.Clean(base)
	case filepath.IsAbs(value):
		return filepath.Clean(value)
	}
	return filepath.Join(base, value)
}

// projectMarkers identify a PHP project root, nearest first.
var projectMarkers = []string{DefaultFileName, "composer.json", ".git"}

// DetectProjectRoot walks up from each candidate until it finds a directory
// holding one of the project markers. The working directory is the fallback.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		dir, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		if root, ok := markedAncestor(dir); ok {
			return root, nil
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

func markedAncestor(dir string) (string, bool) {
	for {
		if hasMarker(dir) {
			return filepath.Clean(dir), true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func hasMarker(dir string) bool {
	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
