// Package app drives one analysis run: it reads sources, parses them
// through the shared builder with the token and tree caches in front, runs
// the selected analyzers and records the outcome.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/core/ports"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/data/history"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/builder"
	"github.com/tvbeek/pdepend/internal/engine/metrics"
	"github.com/tvbeek/pdepend/internal/engine/parser"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"github.com/tvbeek/pdepend/internal/shared/observability"
	"github.com/tvbeek/pdepend/internal/shared/util"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Runner struct {
	mu         sync.Mutex
	registry   *metrics.Registry
	analyzers  []string
	cache      cache.Driver
	history    ports.HistoryStore
	projectKey string
	tolerant   bool
	logger     *slog.Logger

	lastMu sync.RWMutex
	last   *Result
}

type Option func(*Runner)

// WithCache puts a driver in front of tokenizing, parsing and the per
// callable metric calculations.
func WithCache(d cache.Driver) Option {
	return func(r *Runner) { r.cache = d }
}

// WithHistory saves the project metrics of every successful run.
func WithHistory(store ports.HistoryStore, projectKey string) Option {
	return func(r *Runner) {
		r.history = store
		r.projectKey = projectKey
	}
}

// WithAnalyzers selects analyzers by name. No names selects all of them.
func WithAnalyzers(names ...string) Option {
	return func(r *Runner) { r.analyzers = names }
}

func WithRegistry(reg *metrics.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

func WithTolerant(tolerant bool) Option {
	return func(r *Runner) { r.tolerant = tolerant }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = metrics.NewRegistry(r.logger)
	}
	return r
}

// Reconfigure applies opts between runs. A run in progress finishes with
// the previous settings.
func (r *Runner) Reconfigure(opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, opt := range opts {
		opt(r)
	}
}

// Last returns the result of the most recent completed run.
func (r *Runner) Last() *Result {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}

// Run analyzes the sources of provider. Runs are serialized. Cancellation is
// checked between files; a canceled run returns ctx.Err() and no result.
// Files that fail to parse are reported in Result.Errors and left out.
func (r *Runner) Run(ctx context.Context, provider ports.SourceProvider) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := observability.Tracer.Start(ctx, "Runner.Run")
	defer span.End()

	started := time.Now()
	res, err := r.run(ctx, provider)
	elapsed := time.Since(started)
	observability.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		observability.RunsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.Started = started
	res.Duration = elapsed
	observability.RunsTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("pdepend.files", res.FileCount),
		attribute.Int("pdepend.parse_errors", len(res.Errors)),
	)

	r.recordNodes(res)
	r.saveHistory(res)
	r.logger.Debug("run finished",
		"run", res.RunID,
		"files", res.FileCount,
		"cached", res.Cached,
		"errors", len(res.Errors),
		"duration", elapsed,
		"heap_mb", util.HeapAllocMB(),
	)
	r.lastMu.Lock()
	r.last = res
	r.lastMu.Unlock()
	return res, nil
}

func (r *Runner) run(ctx context.Context, provider ports.SourceProvider) (*Result, error) {
	analyzers, err := r.registry.Create(r.analyzers...)
	if err != nil {
		return nil, err
	}
	sources, err := provider.Sources(ctx)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxOperation, "sources")
	}

	res := &Result{RunID: uuid.NewString(), FileCount: len(sources)}
	b := builder.New(builder.WithLogger(r.logger))
	p := parser.New(b, parser.WithTolerant(r.tolerant), parser.WithLogger(r.logger))

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		unit, parseErrs := r.processSource(ctx, b, p, src)
		res.Errors = append(res.Errors, parseErrs...)
		if unit == nil {
			continue
		}
		if unit.IsCached() {
			res.Cached++
		}
		res.Units = append(res.Units, unit)
	}

	res.Namespaces = b.GetNamespaces()
	res.Project = metrics.Metrics{}
	for _, a := range analyzers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.analyze(ctx, a, res); err != nil {
			return nil, err
		}
		if pa, ok := a.(metrics.ProjectAware); ok {
			for name, value := range pa.ProjectMetrics() {
				res.Project[name] = value
			}
		}
	}
	res.Analyzers = analyzers
	return res, nil
}

func (r *Runner) analyze(ctx context.Context, a metrics.Analyzer, res *Result) error {
	ctx, span := observability.Tracer.Start(ctx, "Analyzer.Analyze", trace.WithAttributes(attribute.String("pdepend.analyzer", a.Name())))
	defer span.End()

	if ca, ok := a.(metrics.CacheAware); ok && r.cache != nil {
		ca.SetCache(r.cache)
	}
	if ua, ok := a.(metrics.UnitAware); ok {
		ua.SetUnits(res.Units)
	}
	started := time.Now()
	err := a.Analyze(ctx, res.Namespaces)
	observability.AnalysisDuration.WithLabelValues(a.Name()).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		return errors.AddContext(err, errors.CtxAnalyzer, a.Name())
	}
	return nil
}

// processSource turns one file into a compilation unit, restoring it from
// the tree cache when the content is unchanged.
func (r *Runner) processSource(ctx context.Context, b *builder.Builder, p *parser.Parser, src ports.Source) (*ast.CompilationUnit, []ParseError) {
	_, span := observability.Tracer.Start(ctx, "Runner.processSource", trace.WithAttributes(attribute.String("pdepend.path", src.Path)))
	defer span.End()

	unitID := UnitID(src.Path)
	checksum := Checksum(src.Content)
	started := time.Now()

	if unit := r.restoreUnit(b, unitID, checksum, src); unit != nil {
		observability.ParsingDuration.WithLabelValues("cache").Observe(time.Since(started).Seconds())
		observability.FilesProcessedTotal.WithLabelValues("cached").Inc()
		return unit, nil
	}

	tokens := r.tokens(unitID, checksum, src.Content)
	unit, err := p.Parse(unitID, src.Path, tokens)
	observability.ParsingDuration.WithLabelValues("parse").Observe(time.Since(started).Seconds())
	if err != nil {
		observability.FilesProcessedTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		r.logger.Warn("failed to parse file", "path", src.Path, "error", err)
		return nil, []ParseError{toParseError(err, src.Path)}
	}
	unit.SetChecksum(checksum)

	var recovered []ParseError
	for _, e := range unit.Errors() {
		recovered = append(recovered, toParseError(e, src.Path))
	}
	if len(recovered) == 0 {
		r.storeUnit(unit, unitID, checksum)
		observability.FilesProcessedTotal.WithLabelValues("ok").Inc()
	} else {
		observability.FilesProcessedTotal.WithLabelValues("recovered").Inc()
	}
	return unit, recovered
}

func (r *Runner) restoreUnit(b *builder.Builder, unitID, checksum string, src ports.Source) *ast.CompilationUnit {
	if r.cache == nil {
		return nil
	}
	data, ok := r.lookup(cache.Key{Type: cache.TypeAST, ID: unitID}, checksum)
	if !ok {
		return nil
	}
	snapshot, err := ast.UnmarshalSnapshot(data)
	if err != nil {
		r.logger.Debug("discarding corrupt tree snapshot", "path", src.Path, "error", err)
		return nil
	}
	unit, err := ast.RestoreUnit(snapshot, b)
	if err != nil {
		r.logger.Warn("failed to restore tree snapshot", "path", src.Path, "error", err)
		return nil
	}
	content := src.Content
	unit.SetTokenLoader(func() ([]tokenizer.Token, error) {
		return r.tokens(unitID, checksum, content), nil
	})
	return unit
}

func (r *Runner) storeUnit(unit *ast.CompilationUnit, unitID, checksum string) {
	if r.cache == nil {
		return
	}
	data, err := ast.TakeSnapshot(unit).Marshal()
	if err != nil {
		r.logger.Warn("failed to encode tree snapshot", "path", unit.FileName(), "error", err)
		return
	}
	if err := r.cache.Store(cache.Key{Type: cache.TypeAST, ID: unitID}, data, checksum); err != nil {
		r.logger.Warn("failed to store tree snapshot", "path", unit.FileName(), "error", err)
	}
}

// tokens returns the token list of content through the token cache.
func (r *Runner) tokens(unitID, checksum string, content []byte) []tokenizer.Token {
	key := cache.Key{Type: cache.TypeTokens, ID: unitID}
	if r.cache != nil {
		if data, ok := r.lookup(key, checksum); ok {
			if tokens, err := tokenizer.Decode(data); err == nil {
				return tokens
			}
		}
	}
	tokens := tokenizer.Tokenize(content)
	if r.cache != nil {
		data, err := tokenizer.Encode(tokens)
		if err == nil {
			err = r.cache.Store(key, data, checksum)
		}
		if err != nil {
			r.logger.Warn("failed to store tokens", "unit", unitID, "error", err)
		}
	}
	return tokens
}

func (r *Runner) lookup(key cache.Key, hash string) ([]byte, bool) {
	data, err := r.cache.Restore(key, hash)
	if err != nil {
		if !cache.IsMiss(err) {
			r.logger.Warn("cache lookup failed", "key", key.String(), "error", err)
		}
		observability.CacheLookupsTotal.WithLabelValues(key.Type, observability.CacheMiss).Inc()
		return nil, false
	}
	observability.CacheLookupsTotal.WithLabelValues(key.Type, observability.CacheHit).Inc()
	return data, true
}

func (r *Runner) recordNodes(res *Result) {
	classes, interfaces, traits, functions := res.Counts()
	observability.ProjectNodes.WithLabelValues("namespace").Set(float64(len(res.Namespaces)))
	observability.ProjectNodes.WithLabelValues("class").Set(float64(classes))
	observability.ProjectNodes.WithLabelValues("interface").Set(float64(interfaces))
	observability.ProjectNodes.WithLabelValues("trait").Set(float64(traits))
	observability.ProjectNodes.WithLabelValues("function").Set(float64(functions))
}

func (r *Runner) saveHistory(res *Result) {
	if r.history == nil {
		return
	}
	run := history.Run{
		ID:          res.RunID,
		Timestamp:   res.Started.UTC(),
		Duration:    res.Duration,
		FileCount:   res.FileCount,
		CachedCount: res.Cached,
		ErrorCount:  len(res.Errors),
		Metrics:     res.Project.Clone(),
	}
	if err := r.history.SaveRun(r.projectKey, run); err != nil {
		r.logger.Warn("failed to save run history", "project", r.projectKey, "error", err)
	}
}

// UnitID derives a stable compilation unit id from the file path so that
// node ids and cache keys survive between runs.
func UnitID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// Checksum is the content hash the caches validate entries against.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func toParseError(err error, path string) ParseError {
	pe := ParseError{Message: err.Error(), File: path}
	if file, line, column, ok := parser.Location(err); ok {
		if file != "" {
			pe.File = file
		}
		pe.Line, pe.Column = line, column
	}
	var domain *errors.DomainError
	if stderrors.As(err, &domain) && pe.Line == 0 {
		if line, ok := domain.Context[errors.CtxLine].(int); ok {
			pe.Line = line
		}
	}
	return pe
}
