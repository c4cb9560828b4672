package ast

// Visitor has one method per concrete node type. Element kinds are
// dispatched inside VisitElement with a switch on Kind().
type Visitor interface {
	VisitNamespace(*Namespace)
	VisitCompilationUnit(*CompilationUnit)
	VisitClass(*Class)
	VisitInterface(*Interface)
	VisitTrait(*Trait)
	VisitFunction(*Function)
	VisitMethod(*Method)
	VisitElement(*Element)
}

// DefaultVisitor walks the tree pre-order, depth-first, in source order.
// Embedders set Self so that recursive calls reach their overrides.
type DefaultVisitor struct {
	Self Visitor
}

func (v *DefaultVisitor) self() Visitor {
	if v.Self != nil {
		return v.Self
	}
	return v
}

// VisitChildren dispatches every child of n to the visitor.
func (v *DefaultVisitor) VisitChildren(n Node) {
	for _, child := range n.Children() {
		child.Accept(v.self())
	}
}

func (v *DefaultVisitor) VisitNamespace(ns *Namespace) {
	for _, t := range ns.Types() {
		t.Accept(v.self())
	}
	for _, f := range ns.Functions() {
		f.Accept(v.self())
	}
}

func (v *DefaultVisitor) VisitCompilationUnit(u *CompilationUnit) { v.VisitChildren(u) }
func (v *DefaultVisitor) VisitClass(c *Class)                     { v.VisitChildren(c) }
func (v *DefaultVisitor) VisitInterface(i *Interface)             { v.VisitChildren(i) }
func (v *DefaultVisitor) VisitTrait(t *Trait)                     { v.VisitChildren(t) }
func (v *DefaultVisitor) VisitFunction(f *Function)               { v.VisitChildren(f) }
func (v *DefaultVisitor) VisitMethod(m *Method)                   { v.VisitChildren(m) }
func (v *DefaultVisitor) VisitElement(e *Element)                 { v.VisitChildren(e) }

// Inspect calls fn for n and, while fn returns true, for its descendants.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children() {
		Inspect(child, fn)
	}
}
