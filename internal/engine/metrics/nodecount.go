package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/engine/ast"
)

const (
	MetricNOP = "nop"
	MetricNOC = "noc"
	MetricNOI = "noi"
	MetricNOM = "nom"
	MetricNOF = "nof"
)

// NodeCount counts declarations per namespace, per type and for the whole
// project. Trait methods count towards nom; traits themselves are neither
// classes nor interfaces.
type NodeCount struct {
	nodeStore
	project Metrics
}

var (
	_ Analyzer     = (*NodeCount)(nil)
	_ NodeAware    = (*NodeCount)(nil)
	_ ProjectAware = (*NodeCount)(nil)
)

func NewNodeCount() *NodeCount { return &NodeCount{} }

func (a *NodeCount) Name() string { return NameNodeCount }

type nodeCountVisitor struct {
	ast.DefaultVisitor
	analyzer *NodeCount
	ns       Metrics
}

func (v *nodeCountVisitor) VisitNamespace(ns *ast.Namespace) {
	v.ns = Metrics{MetricNOC: 0, MetricNOI: 0, MetricNOM: 0, MetricNOF: 0}
	v.DefaultVisitor.VisitNamespace(ns)
	v.analyzer.set(ns, v.ns)
	for name, value := range v.ns {
		v.analyzer.project[name] += value
	}
	v.analyzer.project[MetricNOP]++
}

func (v *nodeCountVisitor) VisitClass(c *ast.Class) {
	v.ns[MetricNOC]++
	v.visitType(c)
}

func (v *nodeCountVisitor) VisitInterface(i *ast.Interface) {
	v.ns[MetricNOI]++
	v.visitType(i)
}

func (v *nodeCountVisitor) VisitTrait(t *ast.Trait) { v.visitType(t) }

func (v *nodeCountVisitor) visitType(t ast.Type) {
	nom := float64(len(t.Methods()))
	v.ns[MetricNOM] += nom
	v.analyzer.set(t, Metrics{MetricNOM: nom})
}

func (v *nodeCountVisitor) VisitFunction(*ast.Function) { v.ns[MetricNOF]++ }

func (a *NodeCount) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	a.project = Metrics{MetricNOP: 0, MetricNOC: 0, MetricNOI: 0, MetricNOM: 0, MetricNOF: 0}
	v := &nodeCountVisitor{analyzer: a}
	v.Self = v
	return visitNamespaces(ctx, namespaces, v)
}

func (a *NodeCount) ProjectMetrics() Metrics { return a.project.Clone() }
