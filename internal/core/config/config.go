package config

import "time"

const DefaultFileName = "pdepend.toml"

type Config struct {
	Version       int           `toml:"version"`
	Project       string        `toml:"project"`
	SourcePaths   []string      `toml:"source_paths"`
	Paths         Paths         `toml:"paths"`
	Analysis      Analysis      `toml:"analysis"`
	Exclude       Exclude       `toml:"exclude"`
	Cache         Cache         `toml:"cache"`
	History       History       `toml:"history"`
	Output        Output        `toml:"output"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
}

type Analysis struct {
	Analyzers  []string `toml:"analyzers"`
	Extensions []string `toml:"extensions"`
	Tolerant   *bool    `toml:"tolerant"`
}

func (a Analysis) IsTolerant() bool {
	return a.Tolerant == nil || *a.Tolerant
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Cache struct {
	Driver         string `toml:"driver"`
	Path           string `toml:"path"`
	MemoryCapacity int    `toml:"memory_capacity"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Output struct {
	SummaryXML string `toml:"summary_xml"`
	PHPUnitXML string `toml:"phpunit_xml"`
	YAML       string `toml:"yaml"`
	Text       *bool  `toml:"text"`
}

func (o Output) TextEnabled() bool {
	return o.Text == nil || *o.Text
}

type Watch struct {
	Debounce         time.Duration `toml:"debounce"`
	MaxRunsPerMinute int           `toml:"max_runs_per_minute"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// DefaultConfig is the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}
