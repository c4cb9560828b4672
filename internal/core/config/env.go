package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "PDEPEND_"

// ApplyEnvOverrides overrides config values from PDEPEND_<SECTION>_<KEY>
// variables, e.g. PDEPEND_CACHE_DRIVER. Values that fail to parse are
// logged and ignored.
func ApplyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string) error{
		"PROJECT":                     setString(&cfg.Project),
		"PATHS_PROJECT_ROOT":          setString(&cfg.Paths.ProjectRoot),
		"ANALYSIS_ANALYZERS":          setList(&cfg.Analysis.Analyzers),
		"ANALYSIS_TOLERANT":           setParsed(strconv.ParseBool, func(v bool) { cfg.Analysis.Tolerant = &v }),
		"CACHE_DRIVER":                setString(&cfg.Cache.Driver),
		"CACHE_PATH":                  setString(&cfg.Cache.Path),
		"CACHE_MEMORY_CAPACITY":       setParsed(strconv.Atoi, func(v int) { cfg.Cache.MemoryCapacity = v }),
		"HISTORY_ENABLED":             setParsed(strconv.ParseBool, func(v bool) { cfg.History.Enabled = v }),
		"HISTORY_PATH":                setString(&cfg.History.Path),
		"WATCH_DEBOUNCE":              setParsed(time.ParseDuration, func(v time.Duration) { cfg.Watch.Debounce = v }),
		"WATCH_MAX_RUNS_PER_MINUTE":   setParsed(strconv.Atoi, func(v int) { cfg.Watch.MaxRunsPerMinute = v }),
		"OBSERVABILITY_METRICS_ADDR":  setString(&cfg.Observability.MetricsAddr),
		"OBSERVABILITY_OTLP_ENDPOINT": setString(&cfg.Observability.OTLPEndpoint),
	}
	for suffix, apply := range overrides {
		key := envPrefix + suffix
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := apply(strings.TrimSpace(val)); err != nil {
			slog.Warn("ignoring env override", "key", key, "value", val, "error", err)
			continue
		}
		slog.Debug("applied env override", "key", key, "value", val)
	}
	normalize(cfg)
}

func setString(target *string) func(string) error {
	return func(v string) error {
		*target = v
		return nil
	}
}

func setList(target *[]string) func(string) error {
	return func(v string) error {
		*target = strings.Split(v, ",")
		return nil
	}
}

func setParsed[T any](parse func(string) (T, error), set func(T)) func(string) error {
	return func(v string) error {
		parsed, err := parse(v)
		if err != nil {
			return err
		}
		set(parsed)
		return nil
	}
}
