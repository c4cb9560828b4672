package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/core/config"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/data/history"
	"github.com/tvbeek/pdepend/internal/shared/observability"
	"github.com/tvbeek/pdepend/internal/ui/report"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultConfigName = config.DefaultFileName

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// loadConfig reads the explicit config path, or ./pdepend.toml when it
// exists, and applies PDEPEND_* environment overrides.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		path = filepath.Join(cwd, defaultConfigName)
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load config %q: %w", path, err)
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, path, nil
}

// session holds everything one command needs to run analyses.
type session struct {
	cfg        *config.Config
	configPath string
	paths      config.ResolvedPaths
	scanner    *app.Scanner
	runner     *app.Runner
	cache      cache.Driver
	history    *history.Store
	logger     *slog.Logger
	shutdown   func(context.Context) error

	// mu guards the reloadable parts of cfg.
	mu sync.Mutex
}

type sessionOptions struct {
	noCache bool
}

func openSession(ctx context.Context, cfg *config.Config, configPath string, opts sessionOptions) (*session, error) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, errors.Wrap(stderrors.Join(errs...), errors.CodeValidationError, "invalid configuration")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, fmt.Errorf("resolve runtime paths: %w", err)
	}

	logger := slog.Default()
	s := &session{cfg: cfg, configPath: configPath, paths: paths, logger: logger}
	s.scanner, err = app.NewScanner(paths.SourcePaths, cfg.Analysis.Extensions, cfg.Exclude.Dirs, cfg.Exclude.Files, logger)
	if err != nil {
		return nil, err
	}

	runnerOpts := []app.Option{
		app.WithLogger(logger),
		app.WithAnalyzers(cfg.Analysis.Analyzers...),
		app.WithTolerant(cfg.Analysis.IsTolerant()),
	}
	if !opts.noCache {
		s.cache, err = app.NewCacheDriver(cfg.Cache.Driver, paths.CachePath, cfg.Cache.MemoryCapacity)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		runnerOpts = append(runnerOpts, app.WithCache(s.cache))
	}
	if cfg.History.Enabled {
		s.history, err = history.Open(paths.HistoryPath)
		switch {
		case err == nil:
			runnerOpts = append(runnerOpts, app.WithHistory(s.history, config.ProjectKey(cfg, paths)))
		case history.IsCorruptError(err):
			s.logger.Warn("history store unreadable, runs will not be recorded", "path", paths.HistoryPath, "error", err)
		default:
			s.Close(ctx)
			return nil, fmt.Errorf("open history store: %w", err)
		}
	}
	s.runner = app.NewRunner(runnerOpts...)

	s.shutdown, err = observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, Version)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// analyze runs the analyzer once and writes every configured report.
func (s *session) analyze(ctx context.Context, stdout io.Writer) (*app.Result, error) {
	res, err := s.runner.Run(ctx, s.scanner)
	if err != nil {
		return nil, err
	}
	s.logger.Info("analysis finished",
		"files", res.FileCount,
		"cached", res.Cached,
		"parse_errors", len(res.Errors),
		"duration", res.Duration.Round(time.Millisecond),
	)
	if err := s.writeReports(stdout, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *session) writeReports(stdout io.Writer, res *app.Result) error {
	targets := []struct {
		path string
		name string
	}{
		{s.paths.SummaryXML, report.NameSummaryXML},
		{s.paths.PHPUnitXML, report.NamePHPUnitXML},
		{s.paths.YAML, report.NameYAML},
	}
	var errs []error
	for _, target := range targets {
		if strings.TrimSpace(target.path) == "" {
			continue
		}
		g, err := report.New(target.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := report.WriteFile(target.path, g, res); err != nil {
			errs = append(errs, fmt.Errorf("write %s report: %w", target.name, err))
			continue
		}
		s.logger.Debug("report written", "format", target.name, "path", target.path)
	}
	s.mu.Lock()
	text := s.cfg.Output.TextEnabled()
	s.mu.Unlock()
	if text {
		if err := report.NewText().Generate(stdout, res); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// reconfigure applies a reloaded config to the running session. Source
// paths, cache and history settings need a restart.
func (s *session) reconfigure(cfg *config.Config) {
	if errs := config.Validate(cfg); len(errs) > 0 {
		s.logger.Error("ignoring invalid configuration", "error", stderrors.Join(errs...))
		return
	}
	s.runner.Reconfigure(
		app.WithAnalyzers(cfg.Analysis.Analyzers...),
		app.WithTolerant(cfg.Analysis.IsTolerant()),
	)
	s.mu.Lock()
	s.cfg.Analysis = cfg.Analysis
	s.cfg.Output.Text = cfg.Output.Text
	s.mu.Unlock()
	s.logger.Info("configuration reloaded", "analyzers", strings.Join(cfg.Analysis.Analyzers, ","))
}

func (s *session) Close(ctx context.Context) {
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			s.logger.Warn("failed to flush traces", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close cache", "error", err)
		}
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.logger.Warn("failed to close history store", "error", err)
		}
	}
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

func parseHistoryWindow(value string) (time.Duration, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("--window must be a Go duration (example: 24h), got %q", value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--window must be > 0, got %q", value)
	}
	return d, nil
}
