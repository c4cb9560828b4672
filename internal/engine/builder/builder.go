package builder

import (
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"log/slog"
	"strings"
	"sync"
)

type symbolKind int

const (
	kindClass symbolKind = iota
	kindInterface
	kindTrait
	kindFunction
)

func (k symbolKind) String() string {
	return [...]string{"class", "interface", "trait", "function"}[k]
}

type symbolKey struct {
	namespace string
	name      string
	kind      symbolKind
}

type nameKey struct {
	name string
	kind symbolKind
}

// Builder creates nodes and owns the symbol table. After GetNamespaces has
// been called the table is frozen and every build operation fails.
type Builder struct {
	mu         sync.Mutex
	frozen     bool
	logger     *slog.Logger
	namespaces map[string]*ast.Namespace
	order      []*ast.Namespace
	symbols    map[symbolKey]ast.Node
	byName     map[nameKey][]ast.Node
	dummies    map[symbolKey]ast.Node
	dummyNS    map[string]*ast.Namespace
	journal    []journalEntry
}

// journalEntry records a declaration node so a failed file can be undone.
type journalEntry struct {
	key        symbolKey
	node       ast.Node
	registered bool
}

type Option func(*Builder)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

func New(opts ...Option) *Builder {
	b := &Builder{
		logger:     slog.Default(),
		namespaces: make(map[string]*ast.Namespace),
		symbols:    make(map[symbolKey]ast.Node),
		byName:     make(map[nameKey][]ast.Node),
		dummies:    make(map[symbolKey]ast.Node),
		dummyNS:    make(map[string]*ast.Namespace),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func frozenError(operation string) error {
	return errors.AddContext(
		errors.New(errors.CodeFrozenState, "Cannot create new nodes, when internal state is frozen."),
		errors.CtxOperation, operation,
	)
}

// Frozen reports whether GetNamespaces has been called.
func (b *Builder) Frozen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frozen
}

func normalizeNamespace(name string) string {
	name = strings.Trim(name, `\`)
	if name == "" {
		return ast.DefaultNamespace
	}
	return name
}

func makeKey(qualified string, kind symbolKind) symbolKey {
	ns, name := ast.SplitName(qualified)
	return keyFor(ns, name, kind)
}

func keyFor(namespace, name string, kind symbolKind) symbolKey {
	namespace = strings.ToLower(normalizeNamespace(namespace))
	if kind != kindFunction {
		name = strings.ToLower(name)
	}
	return symbolKey{namespace: namespace, name: name, kind: kind}
}

func (b *Builder) namespace(name string) *ast.Namespace {
	name = normalizeNamespace(name)
	lower := strings.ToLower(name)
	if ns, ok := b.namespaces[lower]; ok {
		return ns
	}
	ns := ast.NewNamespace(name)
	b.namespaces[lower] = ns
	b.order = append(b.order, ns)
	return ns
}

// BuildNamespace interns a namespace by name. The empty name maps to the
// default namespace.
func (b *Builder) BuildNamespace(name string) (*ast.Namespace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, frozenError("BuildNamespace")
	}
	return b.namespace(name), nil
}

func (b *Builder) register(k symbolKey, n ast.Node) {
	b.symbols[k] = n
	nk := nameKey{name: k.name, kind: k.kind}
	b.byName[nk] = append(b.byName[nk], n)
}

func (b *Builder) build(qualified string, kind symbolKind) (ast.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, frozenError("build " + kind.String())
	}
	k := makeKey(qualified, kind)
	if existing, ok := b.symbols[k]; ok {
		return existing, nil
	}
	ns, name := ast.SplitName(qualified)
	n := b.create(ns, name, kind)
	b.register(k, n)
	b.attach(n)
	b.journal = append(b.journal, journalEntry{key: k, node: n, registered: true})
	return n, nil
}

func (b *Builder) create(ns, name string, kind symbolKind) ast.Node {
	ns = normalizeNamespace(ns)
	id := fmt.Sprintf("%s:%s", kind, strings.ToLower(ast.QualifiedName(ns, name)))
	var n ast.Node
	switch kind {
	case kindClass:
		c := ast.NewClass(ns, name)
		c.SetContext(b)
		n = c
	case kindInterface:
		i := ast.NewInterface(ns, name)
		i.SetContext(b)
		n = i
	case kindTrait:
		t := ast.NewTrait(ns, name)
		t.SetContext(b)
		n = t
	default:
		f := ast.NewFunction(ns, name)
		f.SetContext(b)
		n = f
	}
	n.SetID(id)
	return n
}

func (b *Builder) attach(n ast.Node) {
	switch x := n.(type) {
	case ast.Type:
		b.namespace(x.NamespaceName()).AddType(x)
	case *ast.Function:
		b.namespace(x.NamespaceName()).AddFunction(x)
	}
}

func (b *Builder) BuildClass(qualified string) (*ast.Class, error) {
	n, err := b.build(qualified, kindClass)
	if err != nil {
		return nil, err
	}
	return n.(*ast.Class), nil
}

func (b *Builder) BuildInterface(qualified string) (*ast.Interface, error) {
	n, err := b.build(qualified, kindInterface)
	if err != nil {
		return nil, err
	}
	return n.(*ast.Interface), nil
}

func (b *Builder) BuildTrait(qualified string) (*ast.Trait, error) {
	n, err := b.build(qualified, kindTrait)
	if err != nil {
		return nil, err
	}
	return n.(*ast.Trait), nil
}

// BuildFunction interns a function. Function names are case-sensitive.
func (b *Builder) BuildFunction(qualified string) (*ast.Function, error) {
	n, err := b.build(qualified, kindFunction)
	if err != nil {
		return nil, err
	}
	return n.(*ast.Function), nil
}

// Redeclare creates a fresh node for a second concrete declaration of an
// already registered name. The node joins its namespace but the symbol
// table keeps resolving to the first declaration.
func (b *Builder) Redeclare(kind ast.Kind, qualified string) (ast.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, frozenError("Redeclare")
	}
	var sk symbolKind
	switch kind {
	case ast.KindClass:
		sk = kindClass
	case ast.KindInterface:
		sk = kindInterface
	case ast.KindTrait:
		sk = kindTrait
	case ast.KindFunction:
		sk = kindFunction
	default:
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("cannot redeclare %s", kind))
	}
	b.logger.Debug("duplicate declaration, first one wins", "kind", sk.String(), "name", qualified)
	ns, name := ast.SplitName(qualified)
	n := b.create(ns, name, sk)
	n.SetID(n.ID() + ":redeclared")
	b.attach(n)
	b.journal = append(b.journal, journalEntry{key: makeKey(qualified, sk), node: n})
	return n, nil
}

// Savepoint marks the declarations made so far. Rolling back to it undoes
// every later Build and Redeclare.
type Savepoint struct {
	n int
}

func (b *Builder) Savepoint() Savepoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Savepoint{n: len(b.journal)}
}

// Rollback removes the declarations made after sp from the symbol table and
// their namespaces. Names they shadowed resolve to dummies again.
func (b *Builder) Rollback(sp Savepoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sp.n >= len(b.journal) {
		return
	}
	for i := len(b.journal) - 1; i >= sp.n; i-- {
		e := b.journal[i]
		if e.registered && b.symbols[e.key] == e.node {
			delete(b.symbols, e.key)
			nk := nameKey{name: e.key.name, kind: e.key.kind}
			b.byName[nk] = removeNode(b.byName[nk], e.node)
			if len(b.byName[nk]) == 0 {
				delete(b.byName, nk)
			}
		}
		switch x := e.node.(type) {
		case ast.Type:
			if ns := x.Namespace(); ns != nil {
				ns.RemoveType(x)
			}
		case *ast.Function:
			if ns := x.Namespace(); ns != nil {
				ns.RemoveFunction(x)
			}
		}
		b.logger.Debug("declaration rolled back", "id", e.node.ID())
	}
	b.journal = b.journal[:sp.n]
}

func removeNode(nodes []ast.Node, n ast.Node) []ast.Node {
	out := nodes[:0]
	for _, candidate := range nodes {
		if candidate != n {
			out = append(out, candidate)
		}
	}
	return out
}

func (b *Builder) BuildMethod(name string) (*ast.Method, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, frozenError("BuildMethod")
	}
	return ast.NewMethod(name), nil
}

func (b *Builder) buildReference(kind ast.Kind, image string) (*ast.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, frozenError("build " + kind.String())
	}
	e := ast.NewElement(kind, strings.TrimPrefix(image, `\`))
	e.SetContext(b)
	return e, nil
}

func (b *Builder) BuildClassReference(qualified string) (*ast.Element, error) {
	return b.buildReference(ast.KindClassReference, qualified)
}

func (b *Builder) BuildClassOrInterfaceReference(qualified string) (*ast.Element, error) {
	return b.buildReference(ast.KindClassOrInterfaceReference, qualified)
}

func (b *Builder) BuildTraitReference(qualified string) (*ast.Element, error) {
	return b.buildReference(ast.KindTraitReference, qualified)
}

func (b *Builder) BuildParentReference() (*ast.Element, error) {
	return b.buildReference(ast.KindParentReference, "parent")
}

func (b *Builder) BuildSelfReference() (*ast.Element, error) {
	return b.buildReference(ast.KindSelfReference, "self")
}

func (b *Builder) BuildStaticReference() (*ast.Element, error) {
	return b.buildReference(ast.KindStaticReference, "static")
}

func (b *Builder) restore(n ast.Node, namespace, name string, kind symbolKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return frozenError("restore " + kind.String())
	}
	k := keyFor(namespace, name, kind)
	existing, ok := b.symbols[k]
	switch {
	case !ok:
		b.register(k, n)
	case existing != n && existing.ID() == n.ID():
		// The snapshot was taken while this node won; another file won now.
		if owned, ok := n.(interface{ CompilationUnit() *ast.CompilationUnit }); ok && owned.CompilationUnit() != nil {
			n.SetID(n.ID() + ":redeclared@" + owned.CompilationUnit().ID())
		}
	}
	b.attach(n)
	return nil
}

// RestoreClass registers a class rebuilt from a snapshot. A concrete class
// already registered under the same name is never replaced.
func (b *Builder) RestoreClass(c *ast.Class) error {
	c.SetContext(b)
	return b.restore(c, c.NamespaceName(), c.Name(), kindClass)
}

func (b *Builder) RestoreInterface(i *ast.Interface) error {
	i.SetContext(b)
	return b.restore(i, i.NamespaceName(), i.Name(), kindInterface)
}

func (b *Builder) RestoreTrait(t *ast.Trait) error {
	t.SetContext(b)
	return b.restore(t, t.NamespaceName(), t.Name(), kindTrait)
}

func (b *Builder) RestoreFunction(f *ast.Function) error {
	f.SetContext(b)
	return b.restore(f, f.NamespaceName(), f.Name(), kindFunction)
}

func (b *Builder) lookup(qualified string, kind symbolKind) ast.Node {
	k := makeKey(qualified, kind)
	if n, ok := b.symbols[k]; ok {
		return n
	}
	if ns, _ := ast.SplitName(qualified); ns == "" {
		if candidates := b.byName[nameKey{name: k.name, kind: kind}]; len(candidates) > 0 {
			return candidates[0]
		}
	}
	return nil
}

func (b *Builder) dummy(qualified string, kind symbolKind) ast.Node {
	k := makeKey(qualified, kind)
	if d, ok := b.dummies[k]; ok {
		return d
	}
	ns, name := ast.SplitName(qualified)
	if ns == "" {
		if ext, ok := extensionOf(name); ok {
			ns = "+" + ext
		}
	}
	ns = normalizeNamespace(ns)
	n := b.create(ns, name, kind)
	n.SetID("dummy:" + n.ID())
	nsNode, ok := b.dummyNS[strings.ToLower(ns)]
	if !ok {
		nsNode = ast.NewNamespace(ns)
		b.dummyNS[strings.ToLower(ns)] = nsNode
	}
	switch x := n.(type) {
	case ast.Type:
		markDummy(x)
		nsNode.AddType(x)
	case *ast.Function:
		x.MarkDummy()
		nsNode.AddFunction(x)
	}
	b.dummies[k] = n
	return n
}

func markDummy(t ast.Type) {
	switch x := t.(type) {
	case *ast.Class:
		x.MarkDummy()
	case *ast.Interface:
		x.MarkDummy()
	case *ast.Trait:
		x.MarkDummy()
	}
}

// GetClass never fails: unknown names yield a cached placeholder flagged as
// a dummy.
func (b *Builder) GetClass(qualified string) *ast.Class {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.lookup(qualified, kindClass); n != nil {
		return n.(*ast.Class)
	}
	return b.dummy(qualified, kindClass).(*ast.Class)
}

func (b *Builder) GetInterface(qualified string) *ast.Interface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.lookup(qualified, kindInterface); n != nil {
		return n.(*ast.Interface)
	}
	return b.dummy(qualified, kindInterface).(*ast.Interface)
}

func (b *Builder) GetTrait(qualified string) *ast.Trait {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.lookup(qualified, kindTrait); n != nil {
		return n.(*ast.Trait)
	}
	return b.dummy(qualified, kindTrait).(*ast.Trait)
}

// GetClassOrInterface prefers a class, then an interface, and falls back to
// a dummy class.
func (b *Builder) GetClassOrInterface(qualified string) ast.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.lookup(qualified, kindClass); n != nil {
		return n.(ast.Type)
	}
	if n := b.lookup(qualified, kindInterface); n != nil {
		return n.(ast.Type)
	}
	return b.dummy(qualified, kindClass).(ast.Type)
}

// GetFunction resolves namespaced calls with a fallback to the global
// function of the same name.
func (b *Builder) GetFunction(qualified string) *ast.Function {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.symbols[makeKey(qualified, kindFunction)]; ok {
		return n.(*ast.Function)
	}
	_, name := ast.SplitName(qualified)
	if n, ok := b.symbols[keyFor("", name, kindFunction)]; ok {
		return n.(*ast.Function)
	}
	return b.dummy(qualified, kindFunction).(*ast.Function)
}

// GetNamespaces freezes the builder and returns every namespace holding at
// least one declaration, in creation order.
func (b *Builder) GetNamespaces() []*ast.Namespace {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
	b.journal = nil
	out := make([]*ast.Namespace, 0, len(b.order))
	for _, ns := range b.order {
		if !ns.IsEmpty() {
			out = append(out, ns)
		}
	}
	return out
}
