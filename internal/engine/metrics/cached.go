package metrics

import (
	"encoding/json"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/shared/observability"
	"log/slog"
	"sync/atomic"
)

// Cached memoizes a Calculator per callable. Entries are keyed by
// "<calculator>:<node id>" and validated against the checksum of the
// callable's compilation unit, so an edited file always recomputes.
type Cached struct {
	calc   Calculator
	driver cache.Driver
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

var _ Calculator = (*Cached)(nil)

// NewCached wraps calc. A nil driver disables caching.
func NewCached(calc Calculator, driver cache.Driver, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{calc: calc, driver: driver, logger: logger}
}

func (c *Cached) Name() string { return c.calc.Name() }

func (c *Cached) SetDriver(d cache.Driver) { c.driver = d }

func (c *Cached) Calculate(n ast.Callable) Metrics {
	unit := n.CompilationUnit()
	if c.driver == nil || unit == nil || unit.Checksum() == "" || n.ID() == "" {
		return c.calc.Calculate(n)
	}

	key := cache.Key{Type: cache.TypeMetrics, ID: c.calc.Name() + ":" + n.ID()}
	hash := unit.Checksum()

	if data, err := c.driver.Restore(key, hash); err == nil {
		var m Metrics
		if err := json.Unmarshal(data, &m); err == nil {
			c.hits.Add(1)
			observability.CacheLookupsTotal.WithLabelValues(cache.TypeMetrics, observability.CacheHit).Inc()
			return m
		}
		c.logger.Debug("discarding corrupt metrics entry", "key", key.String())
	} else if !cache.IsMiss(err) {
		c.logger.Warn("metrics cache restore failed", "key", key.String(), "error", err)
	}

	c.misses.Add(1)
	observability.CacheLookupsTotal.WithLabelValues(cache.TypeMetrics, observability.CacheMiss).Inc()
	m := c.calc.Calculate(n)
	data, err := json.Marshal(m)
	if err != nil {
		c.logger.Warn("encode metrics entry", "key", key.String(), "error", err)
		return m
	}
	if err := c.driver.Store(key, data, hash); err != nil {
		c.logger.Warn("metrics cache store failed", "key", key.String(), "error", err)
	}
	return m
}

func (c *Cached) Hits() int64   { return c.hits.Load() }
func (c *Cached) Misses() int64 { return c.misses.Load() }
