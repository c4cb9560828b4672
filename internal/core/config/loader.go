package config

import (
	"github.com/tvbeek/pdepend/internal/core/errors"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	defaultAnalyzers  = []string{"cyclomatic", "npath", "coupling", "inheritance", "nodecount", "nodeloc"}
	defaultExtensions = []string{".php"}
	defaultExcludes   = []string{"vendor", ".git"}
)

var validators = []func(*Config) error{
	validateVersion,
	validateAnalysis,
	validateExclude,
	validateCache,
	validateHistory,
	validateOutput,
	validateWatch,
	validateObservability,
}

// Load reads and validates a config file. Decode and validation failures
// carry CodeValidationError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, invalid(err, path)
	}

	applyDefaults(&cfg)
	normalize(&cfg)

	for _, validate := range validators {
		if err := validate(&cfg); err != nil {
			return nil, invalid(err, path)
		}
	}
	return &cfg, nil
}

func invalid(err error, path string) error {
	return errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid configuration"), errors.CtxPath, path)
}

// LoadOrDefault loads path when it exists and falls back to DefaultConfig
// otherwise. Any other read or validation error is returned.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.SourcePaths) == 0 {
		cfg.SourcePaths = []string{"."}
	}

	if len(cfg.Analysis.Analyzers) == 0 {
		cfg.Analysis.Analyzers = append([]string(nil), defaultAnalyzers...)
	}
	if len(cfg.Analysis.Extensions) == 0 {
		cfg.Analysis.Extensions = append([]string(nil), defaultExtensions...)
	}
	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = append([]string(nil), defaultExcludes...)
	}

	if strings.TrimSpace(cfg.Cache.Driver) == "" {
		cfg.Cache.Driver = "file"
	}
	if strings.TrimSpace(cfg.Cache.Path) == "" {
		switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
		case "sqlite":
			cfg.Cache.Path = ".pdepend/cache.db"
		default:
			cfg.Cache.Path = ".pdepend/cache"
		}
	}
	if cfg.Cache.MemoryCapacity == 0 {
		cfg.Cache.MemoryCapacity = 4096
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".pdepend/history.db"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerMinute == 0 {
		cfg.Watch.MaxRunsPerMinute = 30
	}
}

func normalize(cfg *Config) {
	cfg.Project = strings.TrimSpace(cfg.Project)
	cfg.Cache.Driver = strings.ToLower(strings.TrimSpace(cfg.Cache.Driver))
	cfg.Cache.Path = strings.TrimSpace(cfg.Cache.Path)
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.Observability.MetricsAddr = strings.TrimSpace(cfg.Observability.MetricsAddr)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	analyzers := make([]string, 0, len(cfg.Analysis.Analyzers))
	for _, name := range cfg.Analysis.Analyzers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			analyzers = append(analyzers, name)
		}
	}
	cfg.Analysis.Analyzers = analyzers

	extensions := make([]string, 0, len(cfg.Analysis.Extensions))
	for _, ext := range cfg.Analysis.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions = append(extensions, ext)
	}
	cfg.Analysis.Extensions = extensions
}
