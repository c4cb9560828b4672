package metrics

import (
	"context"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"log/slog"
)

const (
	MetricLOC   = "loc"
	MetricCLOC  = "cloc"
	MetricNCLOC = "ncloc"
	MetricELOC  = "eloc"
	MetricLLOC  = "lloc"
)

// NodeLoc counts physical, comment, executable and logical lines for files,
// types and callables from the token stream of their compilation unit.
//
// A line is executable when it holds a token other than whitespace,
// comments, open/close tags, inline HTML and braces. Logical lines are
// statement terminators plus control structure keywords.
type NodeLoc struct {
	nodeStore
	logger  *slog.Logger
	units   []*ast.CompilationUnit
	project Metrics
}

var (
	_ Analyzer     = (*NodeLoc)(nil)
	_ NodeAware    = (*NodeLoc)(nil)
	_ ProjectAware = (*NodeLoc)(nil)
	_ UnitAware    = (*NodeLoc)(nil)
)

func NewNodeLoc(logger *slog.Logger) *NodeLoc {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeLoc{logger: logger}
}

func (a *NodeLoc) Name() string { return NameNodeLoc }

func (a *NodeLoc) SetUnits(units []*ast.CompilationUnit) { a.units = units }

type nodeLocVisitor struct {
	ast.DefaultVisitor
	analyzer *NodeLoc
	units    []*ast.CompilationUnit
	tokens   map[*ast.CompilationUnit][]tokenizer.Token
}

func (v *nodeLocVisitor) unitTokens(u *ast.CompilationUnit) []tokenizer.Token {
	if u == nil {
		return nil
	}
	if tokens, ok := v.tokens[u]; ok {
		return tokens
	}
	tokens, err := u.Tokens()
	if err != nil {
		v.analyzer.logger.Warn("token list unavailable", "file", u.FileName(), "error", err)
	}
	v.tokens[u] = tokens
	v.units = append(v.units, u)
	return tokens
}

func (v *nodeLocVisitor) record(n ast.Node, u *ast.CompilationUnit) {
	tokens := v.unitTokens(u)
	pos := n.Position()
	if tokens == nil || pos.IsZero() {
		v.analyzer.set(n, Metrics{})
		return
	}
	v.analyzer.set(n, countLines(tokens, pos.StartLine, pos.EndLine))
}

func (v *nodeLocVisitor) visitType(t ast.Type) {
	v.record(t, t.CompilationUnit())
	for _, m := range t.Methods() {
		v.record(m, t.CompilationUnit())
	}
}

func (v *nodeLocVisitor) VisitClass(c *ast.Class)         { v.visitType(c) }
func (v *nodeLocVisitor) VisitInterface(i *ast.Interface) { v.visitType(i) }
func (v *nodeLocVisitor) VisitTrait(t *ast.Trait)         { v.visitType(t) }
func (v *nodeLocVisitor) VisitFunction(f *ast.Function)   { v.record(f, f.CompilationUnit()) }

func (a *NodeLoc) Analyze(ctx context.Context, namespaces []*ast.Namespace) error {
	a.reset()
	v := &nodeLocVisitor{analyzer: a, tokens: make(map[*ast.CompilationUnit][]tokenizer.Token)}
	v.Self = v
	if err := visitNamespaces(ctx, namespaces, v); err != nil {
		return err
	}
	for _, u := range a.units {
		v.unitTokens(u)
	}

	project := Metrics{MetricLOC: 0, MetricCLOC: 0, MetricNCLOC: 0, MetricELOC: 0, MetricLLOC: 0}
	for _, u := range v.units {
		m := countLines(v.tokens[u], 1, lastLine(v.tokens[u]))
		a.set(u, m)
		for name, value := range m {
			project[name] += value
		}
	}
	a.project = project
	return nil
}

func (a *NodeLoc) ProjectMetrics() Metrics { return a.project.Clone() }

func countLines(tokens []tokenizer.Token, from, to int) Metrics {
	if to < from {
		return Metrics{MetricLOC: 0, MetricCLOC: 0, MetricNCLOC: 0, MetricELOC: 0, MetricLLOC: 0}
	}
	comment := make(map[int]bool)
	exec := make(map[int]bool)
	lloc := 0
	mark := func(lines map[int]bool, tok tokenizer.Token) {
		for l := max(tok.StartLine, from); l <= min(tok.EndLine, to); l++ {
			lines[l] = true
		}
	}
	for _, tok := range tokens {
		if tok.EndLine < from || tok.StartLine > to {
			continue
		}
		switch tok.Kind {
		case tokenizer.Comment, tokenizer.DocComment:
			mark(comment, tok)
		case tokenizer.EOF, tokenizer.Whitespace, tokenizer.OpenTag, tokenizer.OpenTagWithEcho,
			tokenizer.CloseTag, tokenizer.InlineHTML, tokenizer.LBrace, tokenizer.RBrace:
		default:
			mark(exec, tok)
			if isLogicalLine(tok.Kind) {
				lloc++
			}
		}
	}
	loc := to - from + 1
	return Metrics{
		MetricLOC:   float64(loc),
		MetricCLOC:  float64(len(comment)),
		MetricNCLOC: float64(loc - len(comment)),
		MetricELOC:  float64(len(exec)),
		MetricLLOC:  float64(lloc),
	}
}

func lastLine(tokens []tokenizer.Token) int {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Kind != tokenizer.EOF {
			return tokens[i].EndLine
		}
	}
	return 0
}

func isLogicalLine(k tokenizer.Kind) bool {
	switch k {
	case tokenizer.Semicolon, tokenizer.If, tokenizer.ElseIf, tokenizer.While, tokenizer.For,
		tokenizer.Foreach, tokenizer.Switch, tokenizer.Case, tokenizer.Catch, tokenizer.Try,
		tokenizer.Finally, tokenizer.Do:
		return true
	}
	return false
}
