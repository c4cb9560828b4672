package ast

import "fmt"

// Position is a 1-based source span. The zero value means "unset".
type Position struct {
	StartLine   int `json:"sl"`
	StartColumn int `json:"sc"`
	EndLine     int `json:"el"`
	EndColumn   int `json:"ec"`
}

func (p Position) IsZero() bool {
	return p == Position{}
}

// Encloses reports whether o lies within p.
func (p Position) Encloses(o Position) bool {
	if p.IsZero() || o.IsZero() {
		return true
	}
	if o.StartLine < p.StartLine || (o.StartLine == p.StartLine && o.StartColumn < p.StartColumn) {
		return false
	}
	if o.EndLine > p.EndLine || (o.EndLine == p.EndLine && o.EndColumn > p.EndColumn) {
		return false
	}
	return true
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", p.StartLine, p.StartColumn, p.EndLine, p.EndColumn)
}

// Identifiable is anything metrics can be attached to.
type Identifiable interface {
	ID() string
}

// Node is a vertex of a compilation unit tree. Each node has at most one
// owning parent; cross references between trees go through the builder.
type Node interface {
	Identifiable
	SetID(id string)
	Kind() Kind
	Image() string
	Position() Position
	SetPosition(Position)
	Parent() Node
	SetParent(Node)
	Children() []Node
	AddChild(Node)
	InsertChild(i int, child Node)
	DocComment() string
	SetDocComment(string)
	Accept(Visitor)
}

type node struct {
	self     Node
	id       string
	pos      Position
	parent   Node
	children []Node
	doc      string
}

func (n *node) ID() string                   { return n.id }
func (n *node) SetID(id string)              { n.id = id }
func (n *node) Position() Position           { return n.pos }
func (n *node) SetPosition(p Position)       { n.pos = p }
func (n *node) Parent() Node                 { return n.parent }
func (n *node) SetParent(p Node)             { n.parent = p }
func (n *node) Children() []Node             { return n.children }
func (n *node) DocComment() string           { return n.doc }
func (n *node) SetDocComment(comment string) { n.doc = comment }

func (n *node) AddChild(child Node) {
	n.children = append(n.children, child)
	child.SetParent(n.self)
}

func (n *node) InsertChild(i int, child Node) {
	if i < 0 || i >= len(n.children) {
		n.AddChild(child)
		return
	}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
	child.SetParent(n.self)
}

// Element is the generic statement, expression, reference and type node.
// Its Kind selects the syntactic construct.
type Element struct {
	node
	kind  Kind
	image string
	flags Flags
	ctx   Context
}

func NewElement(kind Kind, image string) *Element {
	e := &Element{kind: kind, image: image}
	e.self = e
	return e
}

func (e *Element) Kind() Kind             { return e.kind }
func (e *Element) Image() string          { return e.image }
func (e *Element) SetImage(image string)  { e.image = image }
func (e *Element) Flags() Flags           { return e.flags }
func (e *Element) Has(flag Flags) bool    { return e.flags.Has(flag) }
func (e *Element) AddFlags(flags Flags)   { e.flags |= flags }
func (e *Element) Context() Context       { return e.ctx }
func (e *Element) SetContext(ctx Context) { e.ctx = ctx }
func (e *Element) Accept(v Visitor)       { v.VisitElement(e) }

func (e *Element) String() string {
	if e.image == "" {
		return e.kind.String()
	}
	return fmt.Sprintf("%s(%s)", e.kind, e.image)
}

// Child returns the i-th child element or nil.
func (e *Element) Child(i int) *Element {
	if i < 0 || i >= len(e.children) {
		return nil
	}
	el, _ := e.children[i].(*Element)
	return el
}

// ReferencedType resolves a reference element lazily through the builder.
// Nothing is cached, so a later definition of the same name is picked up.
func (e *Element) ReferencedType() (Type, error) {
	switch e.kind {
	case KindSelfReference, KindStaticReference:
		if t := EnclosingType(e); t != nil {
			return t, nil
		}
		return nil, nil
	case KindParentReference:
		class, ok := EnclosingType(e).(*Class)
		if !ok {
			return nil, nil
		}
		parent, err := class.ParentClass()
		if err != nil || parent == nil {
			return nil, err
		}
		return parent, nil
	}
	if e.ctx == nil {
		return nil, nil
	}
	switch e.kind {
	case KindClassReference:
		return e.ctx.GetClass(e.image), nil
	case KindClassOrInterfaceReference:
		return e.ctx.GetClassOrInterface(e.image), nil
	case KindTraitReference:
		return e.ctx.GetTrait(e.image), nil
	}
	return nil, nil
}

// IsOptional reports whether a formal parameter has a default value or is variadic.
func (e *Element) IsOptional() bool {
	return e.kind == KindFormalParameter && (e.Has(FlagOptional) || e.Has(FlagVariadic))
}

// TypeHint returns the declared type of a formal parameter or property.
func (e *Element) TypeHint() *Element {
	for _, child := range e.children {
		if el, ok := child.(*Element); ok && el.kind.IsType() {
			return el
		}
	}
	return nil
}

// FirstChildOfKind returns the first direct child of the given kind.
func FirstChildOfKind(n Node, kind Kind) *Element {
	for _, child := range n.Children() {
		if el, ok := child.(*Element); ok && el.kind == kind {
			return el
		}
	}
	return nil
}

// ChildrenOfKind returns all direct children of the given kind.
func ChildrenOfKind(n Node, kind Kind) []*Element {
	var out []*Element
	for _, child := range n.Children() {
		if el, ok := child.(*Element); ok && el.kind == kind {
			out = append(out, el)
		}
	}
	return out
}

// FindAll returns every descendant element of the given kinds in pre-order.
func FindAll(n Node, kinds ...Kind) []*Element {
	var out []*Element
	Inspect(n, func(c Node) bool {
		if c == n {
			return true
		}
		if el, ok := c.(*Element); ok {
			for _, k := range kinds {
				if el.kind == k {
					out = append(out, el)
					break
				}
			}
		}
		return true
	})
	return out
}

// EnclosingType returns the nearest class, interface or trait above n.
func EnclosingType(n Node) Type {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if t, ok := p.(Type); ok {
			return t
		}
	}
	return nil
}

// EnclosingUnit returns the compilation unit owning n.
func EnclosingUnit(n Node) *CompilationUnit {
	for p := Node(n); p != nil; p = p.Parent() {
		if u, ok := p.(*CompilationUnit); ok {
			return u
		}
	}
	return nil
}

// CheckPositions verifies that every node's span is well formed and lies
// within its parent's span.
func CheckPositions(n Node) error {
	var err error
	Inspect(n, func(c Node) bool {
		if err != nil {
			return false
		}
		p := c.Position()
		if !p.IsZero() && (p.EndLine < p.StartLine || (p.EndLine == p.StartLine && p.EndColumn < p.StartColumn)) {
			err = fmt.Errorf("%s %s: end before start %s", c.Kind(), c.ID(), p)
			return false
		}
		for _, child := range c.Children() {
			if !p.Encloses(child.Position()) {
				err = fmt.Errorf("%s %s %s does not enclose %s %s %s", c.Kind(), c.ID(), p, child.Kind(), child.ID(), child.Position())
				return false
			}
		}
		return true
	})
	return err
}
