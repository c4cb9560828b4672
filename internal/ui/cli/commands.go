package cli

import (
	"context"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/app"
	"github.com/tvbeek/pdepend/internal/core/config"
	"github.com/tvbeek/pdepend/internal/core/watcher"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/data/history"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"github.com/tvbeek/pdepend/internal/ui/report"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// runOptions are the flags shared by analyze and watch. Set flags override
// the config file.
type runOptions struct {
	analyzers  []string
	summaryXML string
	phpunitXML string
	yaml       string
	noText     bool
	noCache    bool
	strict     bool
	history    bool
}

func (o *runOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&o.analyzers, "analyzers", nil, "Comma separated analyzers to run (default: all)")
	f.StringVar(&o.summaryXML, "summary-xml", "", "Write the summary XML report to this path")
	f.StringVar(&o.phpunitXML, "phpunit-xml", "", "Write the PHPUnit compatible XML report to this path")
	f.StringVar(&o.yaml, "yaml", "", "Write the YAML report to this path")
	f.BoolVar(&o.noText, "no-text", false, "Do not print the terminal summary")
	f.BoolVar(&o.noCache, "no-cache", false, "Disable the token, tree and metrics cache")
	f.BoolVar(&o.strict, "strict", false, "Skip files with syntax errors instead of recovering")
	f.BoolVar(&o.history, "history", false, "Record project metrics in the run history")
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.SourcePaths = args
	}
	if cmd.Flags().Changed("analyzers") {
		cfg.Analysis.Analyzers = nil
		for _, name := range o.analyzers {
			cfg.Analysis.Analyzers = append(cfg.Analysis.Analyzers, strings.ToLower(strings.TrimSpace(name)))
		}
	}
	if o.summaryXML != "" {
		cfg.Output.SummaryXML = o.summaryXML
	}
	if o.phpunitXML != "" {
		cfg.Output.PHPUnitXML = o.phpunitXML
	}
	if o.yaml != "" {
		cfg.Output.YAML = o.yaml
	}
	if o.noText {
		text := false
		cfg.Output.Text = &text
	}
	if o.strict {
		tolerant := false
		cfg.Analysis.Tolerant = &tolerant
	}
	if o.history {
		cfg.History.Enabled = true
	}
}

func prepareSession(cmd *cobra.Command, global *globalOptions, opts *runOptions, args []string) (*session, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}
	cfg, cfgPath, err := loadConfig(global.configPath, cwd)
	if err != nil {
		return nil, err
	}
	opts.apply(cmd, cfg, args)
	return openSession(cmd.Context(), cfg, cfgPath, sessionOptions{noCache: opts.noCache})
}

func newAnalyzeCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:     "analyze [paths...]",
		Aliases: []string{"run"},
		Short:   "Analyze PHP sources once and write the configured reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := prepareSession(cmd, global, opts, args)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())

			_, err = s.analyze(cmd.Context(), cmd.OutOrStdout())
			return err
		},
	}
	opts.register(cmd)
	return cmd
}

func newWatchCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Analyze, then re-analyze whenever PHP sources change",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := prepareSession(cmd, global, opts, args)
			if err != nil {
				return err
			}
			defer s.Close(context.Background())
			if metricsAddr != "" {
				s.cfg.Observability.MetricsAddr = metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, s)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, s *session) error {
	out := cmd.OutOrStdout()
	if _, err := s.analyze(ctx, out); err != nil {
		return err
	}

	if addr := s.cfg.Observability.MetricsAddr; addr != "" {
		server := NewObservabilityServer(addr, app.NewHealthService(s.runner), s.logger)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(shutdownCtx)
		}()
	}

	wopts := []watcher.Option{watcher.WithLogger(s.logger)}
	if l := util.PerMinute(s.cfg.Watch.MaxRunsPerMinute); l != nil {
		wopts = append(wopts, watcher.WithLimiter(l))
	}
	w, err := watcher.NewWatcher(s.scanner, s.cfg.Watch.Debounce, func(ctx context.Context, paths []string) {
		s.logger.Info("changes detected", "files", len(paths))
		if _, err := s.analyze(ctx, out); err != nil {
			s.logger.Error("analysis failed", "error", err)
		}
	}, wopts...)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	if _, err := os.Stat(s.configPath); err == nil {
		cw := config.NewWatcher(s.configPath, s.reconfigure, s.logger)
		if err := cw.Start(ctx); err != nil {
			s.logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer cw.Stop()
		}
	}

	s.logger.Info("watching for changes", "roots", strings.Join(s.scanner.Roots(), ","))
	<-ctx.Done()
	return nil
}

func newHistoryCommand(global *globalOptions) *cobra.Command {
	var (
		since   string
		window  string
		tsvPath string
		jsonOut string
		project string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show metric trends from the recorded run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("detect working directory: %w", err)
			}
			cfg, _, err := loadConfig(global.configPath, cwd)
			if err != nil {
				return err
			}
			paths, err := config.ResolvePaths(cfg, cwd)
			if err != nil {
				return fmt.Errorf("resolve runtime paths: %w", err)
			}
			sinceTime, err := parseSince(since)
			if err != nil {
				return err
			}
			windowDur, err := parseHistoryWindow(window)
			if err != nil {
				return err
			}
			if project == "" {
				project = config.ProjectKey(cfg, paths)
			}

			store, err := history.Open(paths.HistoryPath)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer store.Close()

			runs, err := store.LoadRuns(project, sinceTime)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "History: no runs matched the requested time window.")
				if known, err := store.Projects(); err == nil && len(known) > 0 {
					fmt.Fprintf(out, "Known projects: %s\n", strings.Join(known, ", "))
				}
				return nil
			}
			trend, err := history.BuildTrendReport(project, runs, windowDur)
			if err != nil {
				return err
			}
			printTrendSummary(out, trend)

			if tsvPath != "" {
				data, err := report.RenderTrendTSV(trend)
				if err != nil {
					return fmt.Errorf("render trend TSV: %w", err)
				}
				if err := util.WriteFileAtomic(tsvPath, data, 0o644); err != nil {
					return fmt.Errorf("write trend TSV %q: %w", tsvPath, err)
				}
			}
			if jsonOut != "" {
				data, err := report.RenderTrendJSON(trend)
				if err != nil {
					return fmt.Errorf("render trend JSON: %w", err)
				}
				if err := util.WriteFileAtomic(jsonOut, data, 0o644); err != nil {
					return fmt.Errorf("write trend JSON %q: %w", jsonOut, err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&since, "since", "", "Include runs at/after this timestamp (RFC3339 or YYYY-MM-DD)")
	f.StringVar(&window, "window", "24h", "Moving-window duration for averages")
	f.StringVar(&tsvPath, "tsv", "", "Write the trend report as TSV to this path")
	f.StringVar(&jsonOut, "json", "", "Write the trend report as JSON to this path")
	f.StringVar(&project, "project", "", "Project key (default: config project or root directory name)")
	return cmd
}

func printTrendSummary(w io.Writer, trend history.TrendReport) {
	formatMetric := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	fmt.Fprintf(w, "History: %d runs from %s to %s\n",
		trend.RunCount,
		trend.Since.Format("2006-01-02 15:04:05"),
		trend.Until.Format("2006-01-02 15:04:05"),
	)
	if len(trend.Points) == 0 {
		return
	}
	latest := trend.Points[len(trend.Points)-1]
	fmt.Fprintf(w, "Latest: files=%d (%+d), parse errors=%d\n", latest.FileCount, latest.DeltaFiles, latest.ErrorCount)
	for _, name := range trend.Metrics {
		line := fmt.Sprintf("  %-10s %s", name, formatMetric(latest.Metrics[name]))
		if d, ok := latest.Deltas[name]; ok {
			line += fmt.Sprintf(" (%+g)", d)
		}
		line += fmt.Sprintf(" avg %s", formatMetric(latest.Averages[name]))
		fmt.Fprintln(w, line)
	}
}

func newCacheCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the analysis cache",
	}
	var kind string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached tokens, trees and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "**"
			switch kind {
			case "":
			case cache.TypeTokens, cache.TypeAST, cache.TypeMetrics:
				pattern = kind + "/*"
			default:
				return fmt.Errorf("--type must be one of %s, %s, %s; got %q", cache.TypeTokens, cache.TypeAST, cache.TypeMetrics, kind)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("detect working directory: %w", err)
			}
			cfg, _, err := loadConfig(global.configPath, cwd)
			if err != nil {
				return err
			}
			paths, err := config.ResolvePaths(cfg, cwd)
			if err != nil {
				return fmt.Errorf("resolve runtime paths: %w", err)
			}
			if cfg.Cache.Driver == app.CacheDriverMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "Cache: memory driver keeps nothing between runs.")
				return nil
			}
			driver, err := app.NewCacheDriver(cfg.Cache.Driver, paths.CachePath, cfg.Cache.MemoryCapacity)
			if err != nil {
				return err
			}
			defer driver.Close()
			if err := driver.Remove(pattern); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache: removed %s entries from %s\n", pattern, paths.CachePath)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&kind, "type", "", "Only remove one artifact type (tokens, ast, metrics)")
	cmd.AddCommand(clearCmd)
	return cmd
}
