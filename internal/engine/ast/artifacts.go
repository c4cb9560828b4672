package ast

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"strings"
)

// DefaultNamespace holds declarations outside any namespace block.
const DefaultNamespace = "+global"

// AnonymousClassName is the name given to `new class {}` declarations. They
// are never registered with the builder.
const AnonymousClassName = "class@anonymous"

// Context resolves names lazily. The builder implements it; nodes never hold
// direct pointers to the types they reference.
type Context interface {
	GetClass(name string) *Class
	GetInterface(name string) *Interface
	GetTrait(name string) *Trait
	GetClassOrInterface(name string) Type
	GetFunction(name string) *Function
	RestoreClass(*Class) error
	RestoreInterface(*Interface) error
	RestoreTrait(*Trait) error
	RestoreFunction(*Function) error
}

// QualifiedName joins a namespace and a local name. Reserved namespaces
// starting with '+' are not part of the qualified name.
func QualifiedName(namespace, name string) string {
	if namespace == "" || strings.HasPrefix(namespace, "+") {
		return name
	}
	return namespace + `\` + name
}

// SplitName splits a qualified name into namespace and local part. A
// leading backslash is ignored.
func SplitName(qualified string) (namespace, name string) {
	qualified = strings.TrimPrefix(qualified, `\`)
	if i := strings.LastIndex(qualified, `\`); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}

// CompilationUnit is the root of one file's tree.
type CompilationUnit struct {
	node
	fileName    string
	checksum    string
	counter     int
	cached      bool
	tokens      []tokenizer.Token
	tokenLoader func() ([]tokenizer.Token, error)
	errors      []error
}

func NewCompilationUnit(id, fileName string) *CompilationUnit {
	u := &CompilationUnit{fileName: fileName}
	u.self = u
	u.id = id
	return u
}

func (u *CompilationUnit) Kind() Kind           { return KindCompilationUnit }
func (u *CompilationUnit) Image() string        { return u.fileName }
func (u *CompilationUnit) FileName() string     { return u.fileName }
func (u *CompilationUnit) Checksum() string     { return u.checksum }
func (u *CompilationUnit) SetChecksum(s string) { u.checksum = s }
func (u *CompilationUnit) Accept(v Visitor)     { v.VisitCompilationUnit(u) }

// IsCached reports whether the unit was restored from a snapshot.
func (u *CompilationUnit) IsCached() bool { return u.cached }

// NextID hands out node ids that are stable for identical file content.
func (u *CompilationUnit) NextID() string {
	u.counter++
	return fmt.Sprintf("%s-%d", u.id, u.counter)
}

func (u *CompilationUnit) SetTokens(tokens []tokenizer.Token) { u.tokens = tokens }

// SetTokenLoader installs a fallback used when the unit has no tokens in
// memory, for example after it was restored from a snapshot.
func (u *CompilationUnit) SetTokenLoader(load func() ([]tokenizer.Token, error)) {
	u.tokenLoader = load
}

func (u *CompilationUnit) Tokens() ([]tokenizer.Token, error) {
	if u.tokens == nil && u.tokenLoader != nil {
		tokens, err := u.tokenLoader()
		if err != nil {
			return nil, err
		}
		u.tokens = tokens
	}
	return u.tokens, nil
}

// Errors lists the syntax errors recovered from in tolerant mode.
func (u *CompilationUnit) Errors() []error    { return u.errors }
func (u *CompilationUnit) AddError(err error) { u.errors = append(u.errors, err) }

// Types returns all classes, interfaces and traits declared in the unit.
func (u *CompilationUnit) Types() []Type {
	var out []Type
	Inspect(u, func(n Node) bool {
		if t, ok := n.(Type); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Functions returns all functions declared in the unit.
func (u *CompilationUnit) Functions() []*Function {
	var out []*Function
	Inspect(u, func(n Node) bool {
		if f, ok := n.(*Function); ok {
			out = append(out, f)
		}
		return true
	})
	return out
}

// Namespace groups types and functions across files. It is not part of any
// compilation unit tree.
type Namespace struct {
	name      string
	types     []Type
	functions []*Function
}

func NewNamespace(name string) *Namespace {
	if name == "" {
		name = DefaultNamespace
	}
	return &Namespace{name: name}
}

func (ns *Namespace) ID() string   { return "namespace:" + ns.name }
func (ns *Namespace) Name() string { return ns.name }

// IsUserDefined is false for the reserved extension namespaces.
func (ns *Namespace) IsUserDefined() bool {
	return ns.name == DefaultNamespace || !strings.HasPrefix(ns.name, "+")
}

func (ns *Namespace) Accept(v Visitor) { v.VisitNamespace(ns) }

func (ns *Namespace) Types() []Type          { return ns.types }
func (ns *Namespace) Functions() []*Function { return ns.functions }
func (ns *Namespace) IsEmpty() bool          { return len(ns.types) == 0 && len(ns.functions) == 0 }

func (ns *Namespace) AddType(t Type) {
	for _, existing := range ns.types {
		if existing == t {
			return
		}
	}
	ns.types = append(ns.types, t)
	t.SetNamespace(ns)
}

func (ns *Namespace) RemoveType(t Type) {
	for i, existing := range ns.types {
		if existing == t {
			ns.types = append(ns.types[:i], ns.types[i+1:]...)
			return
		}
	}
}

func (ns *Namespace) AddFunction(f *Function) {
	for _, existing := range ns.functions {
		if existing == f {
			return
		}
	}
	ns.functions = append(ns.functions, f)
	f.ns = ns
}

func (ns *Namespace) RemoveFunction(f *Function) {
	for i, existing := range ns.functions {
		if existing == f {
			ns.functions = append(ns.functions[:i], ns.functions[i+1:]...)
			return
		}
	}
}

func (ns *Namespace) Classes() []*Class {
	var out []*Class
	for _, t := range ns.types {
		if c, ok := t.(*Class); ok {
			out = append(out, c)
		}
	}
	return out
}

func (ns *Namespace) Interfaces() []*Interface {
	var out []*Interface
	for _, t := range ns.types {
		if i, ok := t.(*Interface); ok {
			out = append(out, i)
		}
	}
	return out
}

func (ns *Namespace) Traits() []*Trait {
	var out []*Trait
	for _, t := range ns.types {
		if tr, ok := t.(*Trait); ok {
			out = append(out, tr)
		}
	}
	return out
}

// Type is implemented by classes, interfaces and traits.
type Type interface {
	Node
	Name() string
	NamespaceName() string
	QualifiedName() string
	Namespace() *Namespace
	SetNamespace(*Namespace)
	Modifiers() Flags
	IsAbstract() bool
	IsDummy() bool
	Methods() []*Method
	CompilationUnit() *CompilationUnit
	SetCompilationUnit(*CompilationUnit)
	Context() Context
	SetContext(Context)
	base() *AbstractType
}

// AbstractType carries the state shared by classes, interfaces and traits.
type AbstractType struct {
	node
	name      string
	nsName    string
	modifiers Flags
	dummy     bool
	ns        *Namespace
	ctx       Context
	unit      *CompilationUnit
}

func (t *AbstractType) Name() string                          { return t.name }
func (t *AbstractType) Image() string                         { return t.name }
func (t *AbstractType) NamespaceName() string                 { return t.nsName }
func (t *AbstractType) QualifiedName() string                 { return QualifiedName(t.nsName, t.name) }
func (t *AbstractType) Namespace() *Namespace                 { return t.ns }
func (t *AbstractType) SetNamespace(ns *Namespace)            { t.ns = ns; t.nsName = ns.Name() }
func (t *AbstractType) Modifiers() Flags                      { return t.modifiers }
func (t *AbstractType) AddModifiers(f Flags)                  { t.modifiers |= f }
func (t *AbstractType) IsDummy() bool                         { return t.dummy }
func (t *AbstractType) MarkDummy()                            { t.dummy = true }
func (t *AbstractType) CompilationUnit() *CompilationUnit     { return t.unit }
func (t *AbstractType) SetCompilationUnit(u *CompilationUnit) { t.unit = u }
func (t *AbstractType) Context() Context                      { return t.ctx }
func (t *AbstractType) SetContext(ctx Context)                { t.ctx = ctx }
func (t *AbstractType) base() *AbstractType                   { return t }
func (t *AbstractType) IsFinal() bool                         { return t.modifiers.Has(FlagFinal) }

func (t *AbstractType) IsAbstract() bool {
	return t.modifiers.Has(FlagAbstract)
}

func (t *AbstractType) Methods() []*Method {
	var out []*Method
	for _, child := range t.children {
		if m, ok := child.(*Method); ok {
			out = append(out, m)
		}
	}
	return out
}

// Method finds a method by case-insensitive name.
func (t *AbstractType) Method(name string) *Method {
	for _, m := range t.Methods() {
		if strings.EqualFold(m.name, name) {
			return m
		}
	}
	return nil
}

func (t *AbstractType) Constants() []*Element {
	return ChildrenOfKind(t.self, KindConstantDefinition)
}

func (t *AbstractType) Properties() []*Element {
	return ChildrenOfKind(t.self, KindFieldDeclaration)
}

func (t *AbstractType) TraitUses() []*Element {
	return ChildrenOfKind(t.self, KindTraitUseStatement)
}

// InterfaceReferences lists the implemented (or, for interfaces, extended)
// interface names.
func (t *AbstractType) InterfaceReferences() []*Element {
	return ChildrenOfKind(t.self, KindClassOrInterfaceReference)
}

type Class struct {
	AbstractType
}

func NewClass(namespace, name string) *Class {
	c := &Class{}
	c.self = c
	c.name, c.nsName = name, namespace
	return c
}

func (c *Class) Kind() Kind        { return KindClass }
func (c *Class) Accept(v Visitor)  { v.VisitClass(c) }
func (c *Class) IsEnum() bool      { return c.modifiers.Has(FlagEnum) }
func (c *Class) IsAnonymous() bool { return c.name == AnonymousClassName }

// ParentReference returns the `extends` reference or nil.
func (c *Class) ParentReference() *Element {
	return FirstChildOfKind(c, KindClassReference)
}

func (c *Class) rawParent() *Class {
	ref := c.ParentReference()
	if ref == nil || c.ctx == nil {
		return nil
	}
	return c.ctx.GetClass(ref.image)
}

// ParentClass resolves the direct parent. A cycle anywhere in the chain is
// reported as a *RecursiveInheritanceError.
func (c *Class) ParentClass() (*Class, error) {
	parent := c.rawParent()
	seen := map[*Class]bool{c: true}
	for p := parent; p != nil; p = p.rawParent() {
		if seen[p] {
			return nil, &RecursiveInheritanceError{Type: c.QualifiedName()}
		}
		seen[p] = true
	}
	return parent, nil
}

// ParentClasses returns the full ancestor chain, nearest first.
func (c *Class) ParentClasses() ([]*Class, error) {
	var out []*Class
	parent, err := c.ParentClass()
	if err != nil {
		return nil, err
	}
	for p := parent; p != nil; p = p.rawParent() {
		out = append(out, p)
	}
	return out, nil
}

// Interfaces returns every interface implemented directly, through
// ancestors or through interface inheritance.
func (c *Class) Interfaces() ([]*Interface, error) {
	chain, err := c.ParentClasses()
	if err != nil {
		return nil, err
	}
	collector := newInterfaceCollector()
	for _, t := range append([]*Class{c}, chain...) {
		if err := collector.collect(t.ctx, t.InterfaceReferences(), c.QualifiedName()); err != nil {
			return nil, err
		}
	}
	return collector.out, nil
}

type Interface struct {
	AbstractType
}

func NewInterface(namespace, name string) *Interface {
	i := &Interface{}
	i.self = i
	i.name, i.nsName = name, namespace
	return i
}

func (i *Interface) Kind() Kind       { return KindInterface }
func (i *Interface) Accept(v Visitor) { v.VisitInterface(i) }
func (i *Interface) IsAbstract() bool { return true }

// Interfaces returns every extended interface, transitively.
func (i *Interface) Interfaces() ([]*Interface, error) {
	collector := newInterfaceCollector()
	collector.stack[i] = true
	if err := collector.collect(i.ctx, i.InterfaceReferences(), i.QualifiedName()); err != nil {
		return nil, err
	}
	return collector.out, nil
}

type interfaceCollector struct {
	out   []*Interface
	seen  map[*Interface]bool
	stack map[*Interface]bool
}

func newInterfaceCollector() *interfaceCollector {
	return &interfaceCollector{seen: map[*Interface]bool{}, stack: map[*Interface]bool{}}
}

func (ic *interfaceCollector) collect(ctx Context, refs []*Element, origin string) error {
	if ctx == nil {
		return nil
	}
	for _, ref := range refs {
		iface := ctx.GetInterface(ref.image)
		if iface == nil {
			continue
		}
		if ic.stack[iface] {
			return &RecursiveInheritanceError{Type: origin}
		}
		if ic.seen[iface] {
			continue
		}
		ic.seen[iface] = true
		ic.out = append(ic.out, iface)
		ic.stack[iface] = true
		if err := ic.collect(iface.ctx, iface.InterfaceReferences(), origin); err != nil {
			return err
		}
		delete(ic.stack, iface)
	}
	return nil
}

type Trait struct {
	AbstractType
}

func NewTrait(namespace, name string) *Trait {
	t := &Trait{}
	t.self = t
	t.name, t.nsName = name, namespace
	return t
}

func (t *Trait) Kind() Kind       { return KindTrait }
func (t *Trait) Accept(v Visitor) { v.VisitTrait(t) }

// Callable is implemented by functions and methods.
type Callable interface {
	Node
	Name() string
	Parameters() []*Element
	ReturnType() *Element
	Body() *Element
	ReturnsReference() bool
	CompilationUnit() *CompilationUnit
}

// AbstractCallable is shared by functions and methods.
type AbstractCallable struct {
	node
	name  string
	flags Flags
}

func (c *AbstractCallable) Name() string           { return c.name }
func (c *AbstractCallable) Image() string          { return c.name }
func (c *AbstractCallable) Flags() Flags           { return c.flags }
func (c *AbstractCallable) AddFlags(f Flags)       { c.flags |= f }
func (c *AbstractCallable) ReturnsReference() bool { return c.flags.Has(FlagByReference) }

func (c *AbstractCallable) Parameters() []*Element {
	params := FirstChildOfKind(c.self, KindFormalParameters)
	if params == nil {
		return nil
	}
	return ChildrenOfKind(params, KindFormalParameter)
}

// ReturnType is the declared return type or nil.
func (c *AbstractCallable) ReturnType() *Element {
	for _, child := range c.children {
		if el, ok := child.(*Element); ok && el.kind.IsType() {
			return el
		}
	}
	return nil
}

// Body is the function body scope; nil for abstract and interface methods.
func (c *AbstractCallable) Body() *Element {
	return FirstChildOfKind(c.self, KindScope)
}

type Function struct {
	AbstractCallable
	nsName string
	ns     *Namespace
	ctx    Context
	unit   *CompilationUnit
	dummy  bool
}

func NewFunction(namespace, name string) *Function {
	f := &Function{}
	f.self = f
	f.name, f.nsName = name, namespace
	return f
}

func (f *Function) Kind() Kind                            { return KindFunction }
func (f *Function) Accept(v Visitor)                      { v.VisitFunction(f) }
func (f *Function) NamespaceName() string                 { return f.nsName }
func (f *Function) QualifiedName() string                 { return QualifiedName(f.nsName, f.name) }
func (f *Function) Namespace() *Namespace                 { return f.ns }
func (f *Function) Context() Context                      { return f.ctx }
func (f *Function) SetContext(ctx Context)                { f.ctx = ctx }
func (f *Function) CompilationUnit() *CompilationUnit     { return f.unit }
func (f *Function) SetCompilationUnit(u *CompilationUnit) { f.unit = u }

// IsDummy marks a placeholder the builder returned for an unresolved name.
func (f *Function) IsDummy() bool { return f.dummy }
func (f *Function) MarkDummy()    { f.dummy = true }

type Method struct {
	AbstractCallable
}

func NewMethod(name string) *Method {
	m := &Method{}
	m.self = m
	m.name = name
	return m
}

func (m *Method) Kind() Kind        { return KindMethod }
func (m *Method) Accept(v Visitor)  { v.VisitMethod(m) }
func (m *Method) IsStatic() bool    { return m.flags.Has(FlagStatic) }
func (m *Method) IsFinal() bool     { return m.flags.Has(FlagFinal) }
func (m *Method) IsPrivate() bool   { return m.flags.Has(FlagPrivate) }
func (m *Method) IsProtected() bool { return m.flags.Has(FlagProtected) }

// IsPublic is true for explicit public methods and methods without a
// visibility modifier.
func (m *Method) IsPublic() bool {
	return !m.flags.Has(FlagPrivate) && !m.flags.Has(FlagProtected)
}

func (m *Method) IsAbstract() bool {
	return m.flags.Has(FlagAbstract) || m.Body() == nil
}

// ParentType is the declaring class, interface or trait.
func (m *Method) ParentType() Type {
	t, _ := m.parent.(Type)
	return t
}

func (m *Method) CompilationUnit() *CompilationUnit {
	if t := m.ParentType(); t != nil {
		return t.CompilationUnit()
	}
	return EnclosingUnit(m)
}

// RecursiveInheritanceError reports a cycle in a parent or interface chain.
type RecursiveInheritanceError struct {
	Type string
}

func (e *RecursiveInheritanceError) Error() string {
	return fmt.Sprintf("class or interface %s is part of a recursive inheritance chain", e.Type)
}

func (e *RecursiveInheritanceError) ErrorCode() errors.ErrorCode {
	return errors.CodeRecursiveInheritance
}
