package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"log/slog"
)

const (
	MetricCCN  = "ccn"
	MetricCCN2 = "ccn2"
)

// CyclomaticComplexity computes McCabe's ccn and the extended ccn2, which
// also counts boolean connectives, for every function and method.
type CyclomaticComplexity struct {
	nodeStore
	calc    *Cached
	project Metrics
}

var (
	_ Analyzer     = (*CyclomaticComplexity)(nil)
	_ NodeAware    = (*CyclomaticComplexity)(nil)
	_ ProjectAware = (*CyclomaticComplexity)(nil)
	_ CacheAware   = (*CyclomaticComplexity)(nil)
)

func NewCyclomaticComplexity(logger *slog.Logger) *CyclomaticComplexity {
	return &CyclomaticComplexity{calc: NewCached(cyclomaticCalculator{}, nil, logger)}
}

func (a *CyclomaticComplexity) Name() string            { return NameCyclomatic }
func (a *CyclomaticComplexity) SetCache(d cache.Driver) { a.calc.SetDriver(d) }
func (a *CyclomaticComplexity) Calculator() *Cached     { return a.calc }

func (a *CyclomaticComplexity) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	var ccn, ccn2 float64
	v := newCallableVisitor(func(c ast.Callable) {
		m := a.calc.Calculate(c)
		a.set(c, m)
		ccn += m[MetricCCN]
		ccn2 += m[MetricCCN2]
	})
	if err := visitNamespaces(ctx, namespaces, v); err != nil {
		return err
	}
	a.project = Metrics{MetricCCN: ccn, MetricCCN2: ccn2}
	return nil
}

func (a *CyclomaticComplexity) ProjectMetrics() Metrics { return a.project.Clone() }

type cyclomaticCalculator struct{}

func (cyclomaticCalculator) Name() string { return NameCyclomatic }

func (cyclomaticCalculator) Calculate(c ast.Callable) Metrics {
	ccn, ccn2 := Cyclomatic(c.Body())
	return Metrics{MetricCCN: float64(ccn), MetricCCN2: float64(ccn2)}
}

// Cyclomatic returns ccn and ccn2 for a callable body. A nil body (abstract
// or interface method) has a complexity of 1.
func Cyclomatic(body *ast.Element) (ccn, ccn2 uint64) {
	ccn, ccn2 = 1, 1
	if body == nil {
		return ccn, ccn2
	}
	walkBody(body, func(e *ast.Element) bool {
		switch k := e.Kind(); {
		case k == ast.KindIfStatement, k == ast.KindElseIfStatement,
			k == ast.KindForStatement, k == ast.KindForeachStatement,
			k == ast.KindWhileStatement, k == ast.KindDoWhileStatement,
			k == ast.KindCatchStatement, k == ast.KindConditionalExpression:
			ccn++
			ccn2++
		case k == ast.KindSwitchLabel, k == ast.KindMatchArm:
			if !e.Has(ast.FlagDefault) {
				ccn++
				ccn2++
			}
		case isBooleanConnective(k):
			ccn2++
		}
		return true
	})
	return ccn, ccn2
}
