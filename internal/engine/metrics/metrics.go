// Package metrics computes software metrics over the namespaces produced by
// the builder. Analyzers walk the tree with the ast visitor protocol and keep
// per-node maps keyed by node id plus an optional project-wide map.
package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"maps"
	"math"
	"sort"
)

// Metrics maps a metric name to its value.
type Metrics map[string]float64

func (m Metrics) Clone() Metrics {
	if m == nil {
		return Metrics{}
	}
	return maps.Clone(m)
}

// Names returns the metric names in sorted order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyzer consumes the namespaces of one run. Analyze may be called again
// with the same input and must produce identical results.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, namespaces []*ast.Namespace) error
}

// NodeAware analyzers expose metrics per node. Nodes the analyzer does not
// know yield an empty map.
type NodeAware interface {
	NodeMetrics(n ast.Identifiable) Metrics
}

type ProjectAware interface {
	ProjectMetrics() Metrics
}

// CacheAware analyzers persist their per-callable results through a driver.
type CacheAware interface {
	SetCache(d cache.Driver)
}

// UnitAware analyzers also measure compilation units that declare nothing.
type UnitAware interface {
	SetUnits(units []*ast.CompilationUnit)
}

// Calculator computes the metrics of one callable. It is the unit the
// caching decorator memoizes.
type Calculator interface {
	Name() string
	Calculate(c ast.Callable) Metrics
}

// nodeStore is embedded by analyzers to hold their per-node results.
type nodeStore struct {
	nodes map[string]Metrics
}

func (s *nodeStore) reset() {
	s.nodes = make(map[string]Metrics)
}

func (s *nodeStore) set(n ast.Identifiable, m Metrics) {
	if s.nodes == nil {
		s.reset()
	}
	s.nodes[n.ID()] = m
}

func (s *nodeStore) NodeMetrics(n ast.Identifiable) Metrics {
	if n == nil {
		return Metrics{}
	}
	m, ok := s.nodes[n.ID()]
	if !ok {
		return Metrics{}
	}
	return m.Clone()
}

// visitCallables is the shared visitor for analyzers that only look at
// functions and methods. Element subtrees are skipped.
type visitCallables struct {
	ast.DefaultVisitor
	fn func(ast.Callable)
}

func newCallableVisitor(fn func(ast.Callable)) *visitCallables {
	v := &visitCallables{fn: fn}
	v.Self = v
	return v
}

func (v *visitCallables) VisitFunction(f *ast.Function) { v.fn(f) }
func (v *visitCallables) VisitMethod(m *ast.Method)     { v.fn(m) }
func (v *visitCallables) VisitElement(*ast.Element)     {}

// walkBody calls fn for every element below root in pre-order without
// entering closures or anonymous classes, which are separate scopes.
func walkBody(root ast.Node, fn func(*ast.Element) bool) {
	if root == nil {
		return
	}
	for _, child := range root.Children() {
		el, ok := child.(*ast.Element)
		if !ok {
			continue
		}
		if !fn(el) || el.Kind() == ast.KindClosure {
			continue
		}
		walkBody(el, fn)
	}
}

func visitNamespaces(ctx context.Context, namespaces []*ast.Namespace, v ast.Visitor) error {
	for _, ns := range namespaces {
		if err := ctx.Err(); err != nil {
			return err
		}
		ns.Accept(v)
	}
	return nil
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func mulSat(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

func isBooleanConnective(k ast.Kind) bool {
	switch k {
	case ast.KindBooleanAndExpression, ast.KindBooleanOrExpression,
		ast.KindLogicalAndExpression, ast.KindLogicalOrExpression, ast.KindLogicalXorExpression:
		return true
	}
	return false
}
