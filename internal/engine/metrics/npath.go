package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/data/cache"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"log/slog"
	"math"
)

// MetricNPath is stored as a float64 like every metric. Counts above 2^53
// lose precision, and a saturated count reads back as float64(MaxUint64);
// PathCount recovers the integer form.
const MetricNPath = "npath"

// PathCount converts a stored npath value to its integer form. Values at or
// beyond float64(MaxUint64) are saturated counts.
func PathCount(v float64) uint64 {
	switch {
	case v <= 0:
		return 0
	case v >= float64(math.MaxUint64):
		return math.MaxUint64
	}
	return uint64(v)
}

// NPathComplexity counts the acyclic execution paths through every
// function and method body.
type NPathComplexity struct {
	nodeStore
	calc    *Cached
	project Metrics
}

var (
	_ Analyzer   = (*NPathComplexity)(nil)
	_ NodeAware  = (*NPathComplexity)(nil)
	_ CacheAware = (*NPathComplexity)(nil)
)

func NewNPathComplexity(logger *slog.Logger) *NPathComplexity {
	return &NPathComplexity{calc: NewCached(npathCalculator{}, nil, logger)}
}

func (a *NPathComplexity) Name() string            { return NameNPath }
func (a *NPathComplexity) SetCache(d cache.Driver) { a.calc.SetDriver(d) }
func (a *NPathComplexity) Calculator() *Cached     { return a.calc }

func (a *NPathComplexity) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	var total uint64
	v := newCallableVisitor(func(c ast.Callable) {
		m := a.calc.Calculate(c)
		a.set(c, m)
		total = addSat(total, PathCount(m[MetricNPath]))
	})
	if err := visitNamespaces(ctx, namespaces, v); err != nil {
		return err
	}
	a.project = Metrics{MetricNPath: float64(total)}
	return nil
}

func (a *NPathComplexity) ProjectMetrics() Metrics { return a.project.Clone() }

type npathCalculator struct{}

func (npathCalculator) Name() string { return NameNPath }

func (npathCalculator) Calculate(c ast.Callable) Metrics {
	return Metrics{MetricNPath: float64(NPath(c.Body()))}
}

// NPath returns the path count of a callable body. Callables without a body
// have exactly one path.
func NPath(body *ast.Element) uint64 {
	if body == nil {
		return 1
	}
	return npathStatement(body)
}

func npathStatement(e *ast.Element) uint64 {
	if e == nil {
		return 1
	}
	switch e.Kind() {
	case ast.KindScope:
		return npathScope(e.Children())
	case ast.KindIfStatement, ast.KindElseIfStatement:
		n := addSat(complexity(e.Child(0)), npathStatement(e.Child(1)))
		if len(e.Children()) > 2 {
			return addSat(n, npathStatement(e.Child(2)))
		}
		return addSat(n, 1)
	case ast.KindWhileStatement:
		return npathLoop(e.Child(0), e.Child(1))
	case ast.KindDoWhileStatement:
		return npathLoop(e.Child(1), e.Child(0))
	case ast.KindForStatement, ast.KindForeachStatement:
		children := e.Children()
		if len(children) == 0 {
			return 1
		}
		n := addSat(1, npathStatement(e.Child(len(children)-1)))
		for i := 0; i < len(children)-1; i++ {
			n = addSat(n, complexity(e.Child(i)))
		}
		return n
	case ast.KindSwitchStatement:
		n := complexity(e.Child(0))
		for _, label := range ast.ChildrenOfKind(e, ast.KindSwitchLabel) {
			stmts := label.Children()
			if !label.Has(ast.FlagDefault) && len(stmts) > 0 {
				stmts = stmts[1:]
			}
			n = addSat(n, npathScope(stmts))
		}
		return max(n, 1)
	case ast.KindTryStatement:
		var n uint64
		for _, child := range e.Children() {
			el, ok := child.(*ast.Element)
			if !ok {
				continue
			}
			if el.Kind() == ast.KindScope {
				n = addSat(n, npathStatement(el))
			} else {
				n = addSat(n, npathStatement(ast.FirstChildOfKind(el, ast.KindScope)))
			}
		}
		return max(n, 1)
	case ast.KindReturnStatement:
		var n uint64
		for _, child := range e.Children() {
			if el, ok := child.(*ast.Element); ok {
				n = addSat(n, complexity(el))
			}
		}
		return max(n, 1)
	case ast.KindDeclareStatement:
		return npathStatement(ast.FirstChildOfKind(e, ast.KindScope))
	}
	return npathExpressionStatement(e)
}

// npathScope multiplies the path counts of sequential statements. Nested
// declarations contribute a single path.
func npathScope(stmts []ast.Node) uint64 {
	n := uint64(1)
	for _, child := range stmts {
		if el, ok := child.(*ast.Element); ok {
			n = mulSat(n, npathStatement(el))
		}
	}
	return n
}

func npathLoop(cond, body *ast.Element) uint64 {
	n := addSat(1, complexity(cond))
	n = addSat(n, npathStatement(body))
	return addSat(n, 1)
}

// npathExpressionStatement handles every statement without its own branch
// rule: each boolean connective adds a path, each conditional expression
// multiplies by its own path count.
func npathExpressionStatement(e *ast.Element) uint64 {
	var connectives uint64
	product := uint64(1)
	var walk func(*ast.Element)
	walk = func(n *ast.Element) {
		for _, child := range n.Children() {
			el, ok := child.(*ast.Element)
			if !ok {
				continue
			}
			switch k := el.Kind(); {
			case k == ast.KindClosure:
				continue
			case k == ast.KindConditionalExpression:
				product = mulSat(product, npathConditional(el))
				continue
			case k == ast.KindMatchExpression:
				product = mulSat(product, max(npathMatch(el), 1))
				continue
			case isBooleanConnective(k):
				connectives = addSat(connectives, 1)
			}
			walk(el)
		}
	}
	walk(e)
	return mulSat(addSat(1, connectives), product)
}

// complexity is the path contribution of an expression: one per boolean
// connective plus the full path count of nested conditionals.
func complexity(e *ast.Element) uint64 {
	if e == nil {
		return 0
	}
	switch e.Kind() {
	case ast.KindClosure:
		return 0
	case ast.KindConditionalExpression:
		return npathConditional(e)
	case ast.KindMatchExpression:
		return npathMatch(e)
	}
	var n uint64
	if isBooleanConnective(e.Kind()) {
		n = 1
	}
	for _, child := range e.Children() {
		if el, ok := child.(*ast.Element); ok {
			n = addSat(n, complexity(el))
		}
	}
	return n
}

func npathConditional(e *ast.Element) uint64 {
	var n uint64
	if e.Has(ast.FlagElvis) {
		cond := complexity(e.Child(0))
		n = addSat(mulSat(2, cond), complexity(e.Child(1)))
	} else {
		n = addSat(complexity(e.Child(0)), complexity(e.Child(1)))
		n = addSat(n, complexity(e.Child(2)))
	}
	return addSat(n, 2)
}

func npathMatch(e *ast.Element) uint64 {
	n := complexity(e.Child(0))
	for _, arm := range ast.ChildrenOfKind(e, ast.KindMatchArm) {
		n = addSat(n, max(complexity(arm), 1))
	}
	return n
}
