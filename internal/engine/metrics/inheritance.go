package metrics

import (
	"context"
	stderrors "errors"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"log/slog"
	"strings"
)

const (
	MetricDIT    = "dit"
	MetricNOCC   = "nocc"
	MetricNOAM   = "noam"
	MetricNOOM   = "noom"
	MetricANDC   = "andc"
	MetricAHH    = "ahh"
	MetricMaxDIT = "maxDIT"
)

// Inheritance computes class hierarchy metrics. Classes whose parent chain
// is recursive are treated as roots.
type Inheritance struct {
	nodeStore
	logger  *slog.Logger
	project Metrics
}

var (
	_ Analyzer     = (*Inheritance)(nil)
	_ NodeAware    = (*Inheritance)(nil)
	_ ProjectAware = (*Inheritance)(nil)
)

func NewInheritance(logger *slog.Logger) *Inheritance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inheritance{logger: logger}
}

func (a *Inheritance) Name() string { return NameInheritance }

type classCollector struct {
	ast.DefaultVisitor
	classes []*ast.Class
}

func (v *classCollector) VisitClass(c *ast.Class) {
	if !c.IsDummy() && !c.IsAnonymous() {
		v.classes = append(v.classes, c)
	}
}
func (v *classCollector) VisitInterface(*ast.Interface) {}
func (v *classCollector) VisitTrait(*ast.Trait)         {}
func (v *classCollector) VisitFunction(*ast.Function)   {}

func (a *Inheritance) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	v := &classCollector{}
	v.Self = v
	if err := visitNamespaces(ctx, namespaces, v); err != nil {
		return err
	}

	analyzed := make(map[*ast.Class]bool, len(v.classes))
	for _, c := range v.classes {
		analyzed[c] = true
	}
	children := make(map[*ast.Class][]*ast.Class)
	ancestors := make(map[*ast.Class][]*ast.Class, len(v.classes))
	// roots are classes without an analyzed parent
	var roots []*ast.Class
	for _, c := range v.classes {
		chain, err := c.ParentClasses()
		if err != nil {
			var rie *ast.RecursiveInheritanceError
			if !stderrors.As(err, &rie) {
				return err
			}
			a.logger.Warn("recursive inheritance, treating class as root", "class", c.QualifiedName())
			chain = nil
		}
		ancestors[c] = chain
		if len(chain) > 0 {
			children[chain[0]] = append(children[chain[0]], c)
		}
		if len(chain) == 0 || !analyzed[chain[0]] {
			roots = append(roots, c)
		}
	}

	var maxDIT, totalChildren float64
	for _, c := range v.classes {
		chain := ancestors[c]
		noam, noom := countOverrides(c, chain)
		dit := float64(len(chain))
		maxDIT = max(maxDIT, dit)
		nocc := float64(len(children[c]))
		totalChildren += nocc
		a.set(c, Metrics{
			MetricDIT:  dit,
			MetricNOCC: nocc,
			MetricNOAM: float64(noam),
			MetricNOOM: float64(noom),
		})
	}

	project := Metrics{MetricANDC: 0, MetricAHH: 0, MetricMaxDIT: maxDIT}
	if n := len(v.classes); n > 0 {
		project[MetricANDC] = totalChildren / float64(n)
	}
	if len(roots) > 0 {
		var heights float64
		for _, r := range roots {
			heights += float64(hierarchyHeight(r, children))
		}
		project[MetricAHH] = heights / float64(len(roots))
	}
	a.project = project
	return nil
}

func (a *Inheritance) ProjectMetrics() Metrics { return a.project.Clone() }

// countOverrides splits the declared methods of c into added methods and
// methods overriding an ancestor's method of the same name.
func countOverrides(c *ast.Class, chain []*ast.Class) (added, overridden int) {
	inherited := make(map[string]bool)
	for _, p := range chain {
		for _, m := range p.Methods() {
			if !m.IsPrivate() {
				inherited[strings.ToLower(m.Name())] = true
			}
		}
	}
	for _, m := range c.Methods() {
		if inherited[strings.ToLower(m.Name())] {
			overridden++
		} else {
			added++
		}
	}
	return added, overridden
}

// hierarchyHeight is the longest child chain below c. The child graph is
// acyclic because recursive classes never become children.
func hierarchyHeight(c *ast.Class, children map[*ast.Class][]*ast.Class) int {
	height := 0
	for _, child := range children[c] {
		height = max(height, 1+hierarchyHeight(child, children))
	}
	return height
}
