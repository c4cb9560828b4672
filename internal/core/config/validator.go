package config

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	if len(cfg.Analysis.Analyzers) == 0 {
		return fmt.Errorf("analysis.analyzers must not be empty")
	}
	registry := metrics.NewRegistry(nil)
	seen := make(map[string]bool, len(cfg.Analysis.Analyzers))
	for i, name := range cfg.Analysis.Analyzers {
		if !registry.Has(name) {
			return fmt.Errorf("analysis.analyzers[%d] %q is unknown; available: %s", i, name, strings.Join(registry.Names(), ", "))
		}
		if seen[name] {
			return fmt.Errorf("duplicate analyzer %q", name)
		}
		seen[name] = true
	}
	if len(cfg.Analysis.Extensions) == 0 {
		return fmt.Errorf("analysis.extensions must not be empty")
	}
	for i, ext := range cfg.Analysis.Extensions {
		if ext == "." || strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("analysis.extensions[%d] %q is not a file extension", i, ext)
		}
	}
	return nil
}

func validateExclude(cfg *Config) error {
	check := func(section string, patterns []string) error {
		for i, pattern := range patterns {
			ref := fmt.Sprintf("exclude.%s[%d]", section, i)
			if strings.TrimSpace(pattern) == "" {
				return fmt.Errorf("%s must not be empty", ref)
			}
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return fmt.Errorf("%s %q is not a valid glob: %w", ref, pattern, err)
			}
		}
		return nil
	}
	if err := check("dirs", cfg.Exclude.Dirs); err != nil {
		return err
	}
	return check("files", cfg.Exclude.Files)
}

func validateCache(cfg *Config) error {
	switch cfg.Cache.Driver {
	case "memory":
	case "file", "sqlite":
		if cfg.Cache.Path == "" {
			return fmt.Errorf("cache.path must not be empty for driver %q", cfg.Cache.Driver)
		}
	default:
		return fmt.Errorf("cache.driver must be one of: memory, file, sqlite; got %q", cfg.Cache.Driver)
	}
	if cfg.Cache.MemoryCapacity < 0 {
		return fmt.Errorf("cache.memory_capacity must be >= 0")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path must not be empty")
	}
	if cfg.Cache.Driver == "file" && overlaps(filepath.Clean(cfg.History.Path), filepath.Clean(cfg.Cache.Path)) {
		return fmt.Errorf("history.path %q must not live inside cache.path %q", cfg.History.Path, cfg.Cache.Path)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	outputs := make(map[string]string)
	checkConflict := func(path, name string) error {
		if path == "" {
			return nil
		}
		path = filepath.Clean(path)
		if owner, exists := outputs[path]; exists {
			return fmt.Errorf("output conflict: %s and %s share the same path %q", owner, name, path)
		}
		outputs[path] = name
		return nil
	}

	if err := checkConflict(cfg.Output.SummaryXML, "output.summary_xml"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.PHPUnitXML, "output.phpunit_xml"); err != nil {
		return err
	}
	return checkConflict(cfg.Output.YAML, "output.yaml")
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must be >= 0")
	}
	if cfg.Watch.MaxRunsPerMinute < 0 {
		return fmt.Errorf("watch.max_runs_per_minute must be >= 0")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("observability.metrics_addr %q must be host:port: %w", addr, err)
		}
	}
	return nil
}

// Validate runs every check and collects all failures instead of stopping at
// the first one.
func Validate(cfg *Config) []error {
	var errs []error

	for _, check := range []func(*Config) error{
		validateVersion,
		validateAnalysis,
		validateExclude,
		validateCache,
		validateHistory,
		validateOutput,
		validateWatch,
		validateObservability,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	// Path verification
	errs = append(errs, validatePaths(cfg)...)

	return errs
}

func validatePaths(cfg *Config) []error {
	var errs []error
	for i, path := range cfg.SourcePaths {
		if path == "" {
			errs = append(errs, fmt.Errorf("source_paths[%d] must not be empty", i))
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("source_paths[%d] %q does not exist", i, path))
		}
	}
	return errs
}

// overlaps reports whether one cleaned path contains the other.
func overlaps(a, b string) bool {
	return util.WithinRoot(a, b) || util.WithinRoot(b, a)
}
