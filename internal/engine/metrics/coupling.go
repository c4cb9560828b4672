package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"strings"
)

const (
	MetricCa     = "ca"
	MetricCe     = "ce"
	MetricCBO    = "cbo"
	MetricCalls  = "calls"
	MetricFanout = "fanout"
)

// Coupling measures how types depend on each other. Types get afferent (ca)
// and efferent (ce, cbo) coupling; callables get their number of distinct
// calls and referenced types.
type Coupling struct {
	nodeStore
	project Metrics
}

var (
	_ Analyzer     = (*Coupling)(nil)
	_ NodeAware    = (*Coupling)(nil)
	_ ProjectAware = (*Coupling)(nil)
)

func NewCoupling() *Coupling { return &Coupling{} }

func (a *Coupling) Name() string { return NameCoupling }

func (a *Coupling) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	v := &couplingVisitor{
		analyzer: a,
		efferent: make(map[string]map[string]bool),
		afferent: make(map[string]map[string]bool),
	}
	v.Self = v
	if err := visitNamespaces(ctx, namespaces, v); err != nil {
		return err
	}

	for _, t := range v.order {
		key := typeKey(t)
		ce := float64(len(v.efferent[key]))
		a.set(t, Metrics{
			MetricCa:  float64(len(v.afferent[key])),
			MetricCe:  ce,
			MetricCBO: ce,
		})
	}
	a.project = Metrics{MetricCalls: v.calls, MetricFanout: v.fanout}
	return nil
}

func (a *Coupling) ProjectMetrics() Metrics { return a.project.Clone() }

type couplingVisitor struct {
	ast.DefaultVisitor
	analyzer *Coupling

	current ast.Type
	order   []ast.Type
	// type key -> referenced type keys
	efferent map[string]map[string]bool
	// type key -> ids of declarations referencing it
	afferent map[string]map[string]bool

	calls, fanout float64
}

func (v *couplingVisitor) visitType(t ast.Type) {
	v.current = t
	v.order = append(v.order, t)
	if v.efferent[typeKey(t)] == nil {
		v.efferent[typeKey(t)] = make(map[string]bool)
	}
	v.VisitChildren(t)
	v.current = nil
}

func (v *couplingVisitor) VisitClass(c *ast.Class)         { v.visitType(c) }
func (v *couplingVisitor) VisitInterface(i *ast.Interface) { v.visitType(i) }
func (v *couplingVisitor) VisitTrait(t *ast.Trait)         { v.visitType(t) }

func (v *couplingVisitor) VisitFunction(f *ast.Function) { v.visitCallable(f) }
func (v *couplingVisitor) VisitMethod(m *ast.Method)     { v.visitCallable(m) }

// VisitElement only sees direct children of types. Property declarations
// couple the type to their declared classes.
func (v *couplingVisitor) VisitElement(e *ast.Element) {
	if v.current == nil || e.Kind() != ast.KindFieldDeclaration {
		return
	}
	for key := range referencedTypes(e, v.current) {
		v.couple(v.current.ID(), typeKey(v.current), key)
	}
}

func (v *couplingVisitor) visitCallable(c ast.Callable) {
	refs := referencedTypes(c, v.current)
	calls := distinctCalls(c)

	for key := range refs {
		if v.current != nil {
			v.couple(v.current.ID(), typeKey(v.current), key)
		} else {
			v.couple(c.ID(), "", key)
		}
	}

	v.analyzer.set(c, Metrics{
		MetricCalls:  float64(len(calls)),
		MetricFanout: float64(len(refs)),
	})
	v.calls += float64(len(calls))
	v.fanout += float64(len(refs))
}

func (v *couplingVisitor) couple(sourceID, sourceKey, target string) {
	if sourceKey != "" {
		v.efferent[sourceKey][target] = true
	}
	if v.afferent[target] == nil {
		v.afferent[target] = make(map[string]bool)
	}
	v.afferent[target][sourceID] = true
}

func typeKey(t ast.Type) string {
	return strings.ToLower(t.QualifiedName())
}

// referencedTypes collects the distinct types referenced below root,
// excluding owner itself. Trait references are composition, not coupling.
func referencedTypes(root ast.Node, owner ast.Type) map[string]bool {
	out := make(map[string]bool)
	walkBody(root, func(e *ast.Element) bool {
		if !e.Kind().IsReference() || e.Kind() == ast.KindTraitReference {
			return true
		}
		t, err := e.ReferencedType()
		if err != nil || t == nil {
			return true
		}
		key := typeKey(t)
		if owner != nil && key == typeKey(owner) {
			return true
		}
		out[key] = true
		return true
	})
	return out
}

// distinctCalls identifies every function and method invocation in a
// callable by callee expression, so repeated calls count once.
func distinctCalls(c ast.Callable) map[string]bool {
	out := make(map[string]bool)
	walkBody(c, func(e *ast.Element) bool {
		switch e.Kind() {
		case ast.KindFunctionPostfix:
			out["function:"+describeCallee(e)] = true
		case ast.KindMethodPostfix:
			if prefix, ok := e.Parent().(*ast.Element); ok && prefix.Kind() == ast.KindMemberPrimaryPrefix {
				out["method:"+describeCallee(prefix.Child(0))+prefix.Image()+strings.ToLower(e.Image())] = true
			}
		}
		return true
	})
	return out
}

func describeCallee(e *ast.Element) string {
	if e == nil {
		return ""
	}
	switch e.Kind() {
	case ast.KindFunctionPostfix:
		if base := e.Child(0); base != nil && base.Kind() != ast.KindArguments {
			return describeCallee(base)
		}
		return strings.ToLower(e.Image())
	case ast.KindMemberPrimaryPrefix:
		return describeCallee(e.Child(0)) + e.Image() + describeCallee(e.Child(1))
	case ast.KindMethodPostfix:
		return strings.ToLower(e.Image()) + "()"
	case ast.KindClassReference, ast.KindClassOrInterfaceReference, ast.KindPropertyPostfix:
		return strings.ToLower(e.Image())
	case ast.KindSelfReference, ast.KindParentReference, ast.KindStaticReference:
		return e.Kind().String()
	}
	if e.Image() != "" {
		return e.Image()
	}
	return e.Kind().String()
}
