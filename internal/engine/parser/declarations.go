package parser

import (
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"strings"
)

var scalarTypes = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true, "bool": true,
	"boolean": true, "string": true, "void": true, "mixed": true, "never": true,
	"null": true, "false": true, "true": true, "object": true,
}

// atTypeDeclaration reports whether the current token starts a class,
// interface, trait or enum declaration.
func (p *fileParser) atTypeDeclaration() bool {
	i := 0
	for p.peekAt(i).Is(tokenizer.Abstract, tokenizer.Final, tokenizer.Readonly) {
		i++
	}
	switch p.peekAt(i).Kind {
	case tokenizer.Class, tokenizer.Interface, tokenizer.Trait:
		return true
	case tokenizer.Enum:
		return p.peekAt(i+1).Kind == tokenizer.Identifier
	}
	return false
}

// atFunctionDeclaration distinguishes `function name(` from closures.
func (p *fileParser) atFunctionDeclaration() bool {
	if !p.check(tokenizer.Function) {
		return false
	}
	i := 1
	if p.peekAt(i).Kind == tokenizer.Ampersand {
		i++
	}
	return isIdentifierLike(p.peekAt(i)) && p.peekAt(i+1).Kind == tokenizer.LParen
}

func (p *fileParser) parseTypeDeclaration() (ast.Node, error) {
	doc := p.docComment()
	startTok := p.peek()
	start := startOf(startTok)
	var modifiers ast.Flags
modifiers:
	for {
		switch p.peek().Kind {
		case tokenizer.Abstract:
			modifiers |= ast.FlagAbstract
		case tokenizer.Final:
			modifiers |= ast.FlagFinal
		case tokenizer.Readonly:
			modifiers |= ast.FlagReadonly
		default:
			break modifiers
		}
		p.next()
	}
	kw := p.next()
	nameTok, err := p.expectIdentifierLike()
	if err != nil {
		return nil, err
	}
	qualified := p.qualify(nameTok.Image)

	var t ast.Type
	switch kw.Kind {
	case tokenizer.Interface:
		t, err = p.declareInterface(qualified)
	case tokenizer.Trait:
		t, err = p.declareTrait(qualified)
	case tokenizer.Enum:
		modifiers |= ast.FlagEnum | ast.FlagFinal
		t, err = p.declareClass(qualified)
	default:
		t, err = p.declareClass(qualified)
	}
	if err != nil {
		return nil, err
	}
	t.SetDocComment(doc)
	t.SetCompilationUnit(p.unit)
	if m, ok := t.(interface{ AddModifiers(ast.Flags) }); ok {
		m.AddModifiers(modifiers)
	}

	if kw.Kind == tokenizer.Enum {
		if _, ok := p.accept(tokenizer.Colon); ok {
			if _, err := p.parseType(); err != nil {
				return nil, err
			}
		}
	}
	if _, ok := p.accept(tokenizer.Extends); ok {
		if kw.Kind == tokenizer.Interface {
			if err := p.parseInterfaceList(t); err != nil {
				return nil, err
			}
		} else {
			n, err := p.parseName()
			if err != nil {
				return nil, err
			}
			ref, err := p.builder.BuildClassReference(p.resolveClass(n))
			if err != nil {
				return nil, err
			}
			p.adopt(ref)
			p.finish(ref, startOf(n.start))
			t.AddChild(ref)
		}
	}
	if _, ok := p.accept(tokenizer.Implements); ok {
		if err := p.parseInterfaceList(t); err != nil {
			return nil, err
		}
	}
	if err := p.parseTypeBody(t); err != nil {
		return nil, err
	}
	p.finish(t, start)
	return t, nil
}

func (p *fileParser) declareClass(qualified string) (ast.Type, error) {
	c, err := p.builder.BuildClass(qualified)
	if err != nil {
		return nil, err
	}
	if c.CompilationUnit() == nil {
		return c, nil
	}
	n, err := p.redeclare(ast.KindClass, qualified)
	if err != nil {
		return nil, err
	}
	return n.(ast.Type), nil
}

func (p *fileParser) declareInterface(qualified string) (ast.Type, error) {
	i, err := p.builder.BuildInterface(qualified)
	if err != nil {
		return nil, err
	}
	if i.CompilationUnit() == nil {
		return i, nil
	}
	n, err := p.redeclare(ast.KindInterface, qualified)
	if err != nil {
		return nil, err
	}
	return n.(ast.Type), nil
}

func (p *fileParser) declareTrait(qualified string) (ast.Type, error) {
	t, err := p.builder.BuildTrait(qualified)
	if err != nil {
		return nil, err
	}
	if t.CompilationUnit() == nil {
		return t, nil
	}
	n, err := p.redeclare(ast.KindTrait, qualified)
	if err != nil {
		return nil, err
	}
	return n.(ast.Type), nil
}

func (p *fileParser) parseInterfaceList(parent ast.Node) error {
	for {
		n, err := p.parseName()
		if err != nil {
			return err
		}
		ref, err := p.builder.BuildClassOrInterfaceReference(p.resolveClass(n))
		if err != nil {
			return err
		}
		p.adopt(ref)
		p.finish(ref, startOf(n.start))
		parent.AddChild(ref)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			return nil
		}
	}
}

func (p *fileParser) parseTypeBody(t ast.Node) error {
	if _, err := p.expect(tokenizer.LBrace); err != nil {
		return err
	}
	for !p.check(tokenizer.RBrace) {
		if p.eof() {
			return p.unexpected()
		}
		start := p.pos
		member, err := p.parseMember()
		if err != nil {
			if !p.tolerant {
				return err
			}
			p.unit.AddError(err)
			p.synchronize(start)
			continue
		}
		if member != nil {
			t.AddChild(member)
		}
	}
	p.next()
	return nil
}

func (p *fileParser) parseMember() (ast.Node, error) {
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	doc := p.docComment()
	startTok := p.peek()
	start := startOf(startTok)

	switch startTok.Kind {
	case tokenizer.Use:
		return p.parseTraitUse()
	case tokenizer.Case:
		return p.parseEnumCase()
	}

	var modifiers ast.Flags
modifiers:
	for {
		switch p.peek().Kind {
		case tokenizer.Public:
			modifiers |= ast.FlagPublic
		case tokenizer.Protected:
			modifiers |= ast.FlagProtected
		case tokenizer.Private:
			modifiers |= ast.FlagPrivate
		case tokenizer.Static:
			modifiers |= ast.FlagStatic
		case tokenizer.Abstract:
			modifiers |= ast.FlagAbstract
		case tokenizer.Final:
			modifiers |= ast.FlagFinal
		case tokenizer.Readonly:
			modifiers |= ast.FlagReadonly
		case tokenizer.Var:
			modifiers |= ast.FlagPublic
		default:
			break modifiers
		}
		p.next()
	}

	switch p.peek().Kind {
	case tokenizer.Const:
		c, err := p.parseConstantDefinition(start)
		if err != nil {
			return nil, err
		}
		c.AddFlags(modifiers)
		c.SetDocComment(doc)
		return c, nil
	case tokenizer.Function:
		return p.parseMethod(start, modifiers, doc)
	}
	return p.parseFieldDeclaration(start, modifiers, doc)
}

func (p *fileParser) parseMethod(start ast.Position, modifiers ast.Flags, doc string) (ast.Node, error) {
	p.next()
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		modifiers |= ast.FlagByReference
	}
	nameTok, err := p.expectIdentifierLike()
	if err != nil {
		return nil, err
	}
	m, err := p.builder.BuildMethod(nameTok.Image)
	if err != nil {
		return nil, err
	}
	p.adopt(m)
	m.AddFlags(modifiers)
	m.SetDocComment(doc)
	if err := p.parseCallableSignature(m); err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokenizer.Semicolon); !ok {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		m.AddChild(body)
	}
	p.finish(m, start)
	return m, nil
}

// parseCallableSignature reads the parameter list and an optional return type.
func (p *fileParser) parseCallableSignature(parent ast.Node) error {
	params, err := p.parseFormalParameters()
	if err != nil {
		return err
	}
	parent.AddChild(params)
	if _, ok := p.accept(tokenizer.Colon); ok {
		rt, err := p.parseType()
		if err != nil {
			return err
		}
		parent.AddChild(rt)
	}
	return nil
}

func (p *fileParser) parseFunctionDeclaration() (ast.Node, error) {
	doc := p.docComment()
	start := startOf(p.next())
	var flags ast.Flags
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		flags |= ast.FlagByReference
	}
	nameTok, err := p.expectIdentifierLike()
	if err != nil {
		return nil, err
	}
	qualified := p.qualify(nameTok.Image)
	fn, err := p.builder.BuildFunction(qualified)
	if err != nil {
		return nil, err
	}
	if fn.CompilationUnit() != nil {
		n, err := p.redeclare(ast.KindFunction, qualified)
		if err != nil {
			return nil, err
		}
		fn = n.(*ast.Function)
	}
	fn.AddFlags(flags)
	fn.SetDocComment(doc)
	fn.SetCompilationUnit(p.unit)
	if err := p.parseCallableSignature(fn); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.AddChild(body)
	p.finish(fn, start)
	return fn, nil
}

func (p *fileParser) parseFormalParameters() (*ast.Element, error) {
	open, err := p.expect(tokenizer.LParen)
	if err != nil {
		return nil, err
	}
	params := p.element(ast.KindFormalParameters, "")
	for !p.check(tokenizer.RParen) {
		param, err := p.parseFormalParameter()
		if err != nil {
			return nil, err
		}
		params.AddChild(param)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	p.finish(params, startOf(open))
	return params, nil
}

func (p *fileParser) parseFormalParameter() (*ast.Element, error) {
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	start := startOf(p.peek())
	param := p.element(ast.KindFormalParameter, "")
promotion:
	for {
		switch p.peek().Kind {
		case tokenizer.Public:
			param.AddFlags(ast.FlagPromoted | ast.FlagPublic)
		case tokenizer.Protected:
			param.AddFlags(ast.FlagPromoted | ast.FlagProtected)
		case tokenizer.Private:
			param.AddFlags(ast.FlagPromoted | ast.FlagPrivate)
		case tokenizer.Readonly:
			param.AddFlags(ast.FlagPromoted | ast.FlagReadonly)
		default:
			break promotion
		}
		p.next()
	}
	if !p.check(tokenizer.Variable, tokenizer.Ampersand, tokenizer.Ellipsis) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		param.AddChild(t)
	}
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		param.AddFlags(ast.FlagByReference)
	}
	if _, ok := p.accept(tokenizer.Ellipsis); ok {
		param.AddFlags(ast.FlagVariadic)
	}
	v, err := p.expect(tokenizer.Variable)
	if err != nil {
		return nil, err
	}
	param.SetImage(v.Image)
	if _, ok := p.accept(tokenizer.Assign); ok {
		def, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		param.AddChild(def)
		param.AddFlags(ast.FlagOptional)
	}
	p.finish(param, start)
	return param, nil
}

// parseType reads a declared type including nullable, union, intersection
// and DNF forms.
func (p *fileParser) parseType() (*ast.Element, error) {
	startTok := p.peek()
	nullable := false
	if _, ok := p.accept(tokenizer.Question); ok {
		nullable = true
	}
	first, err := p.parseSingleType()
	if err != nil {
		return nil, err
	}
	if nullable {
		first.AddFlags(ast.FlagNullable)
		p.finish(first, startOf(startTok))
		return first, nil
	}
	var composite ast.Kind
	switch {
	case p.check(tokenizer.Pipe):
		composite = ast.KindUnionType
	case p.check(tokenizer.Ampersand) && !p.peekAt(1).Is(tokenizer.Variable, tokenizer.Ellipsis):
		composite = ast.KindIntersectionType
	default:
		return first, nil
	}
	sep := tokenizer.Pipe
	if composite == ast.KindIntersectionType {
		sep = tokenizer.Ampersand
	}
	union := p.element(composite, "")
	union.AddChild(first)
	for p.check(sep) && !(sep == tokenizer.Ampersand && p.peekAt(1).Is(tokenizer.Variable, tokenizer.Ellipsis)) {
		p.next()
		t, err := p.parseSingleType()
		if err != nil {
			return nil, err
		}
		union.AddChild(t)
	}
	p.finish(union, startOf(startTok))
	return union, nil
}

func (p *fileParser) parseSingleType() (*ast.Element, error) {
	tok := p.peek()
	switch tok.Kind {
	case tokenizer.LParen:
		p.next()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.RParen); err != nil {
			return nil, err
		}
		p.finish(inner, startOf(tok))
		return inner, nil
	case tokenizer.Array:
		p.next()
		return p.leaf(ast.KindTypeArray, tok), nil
	case tokenizer.Callable:
		p.next()
		return p.leaf(ast.KindTypeCallable, tok), nil
	case tokenizer.Static:
		p.next()
		return p.reference(ast.KindStaticReference, tok)
	}
	if !p.atName() {
		return nil, p.unexpected()
	}
	n, err := p.parseName()
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(n.text)
	switch {
	case n.isSpecial("self"):
		return p.referenceSpan(ast.KindSelfReference, n)
	case n.isSpecial("parent"):
		return p.referenceSpan(ast.KindParentReference, n)
	case n.isSpecial("iterable"):
		e := p.element(ast.KindTypeIterable, n.text)
		p.finish(e, startOf(n.start))
		return e, nil
	case !n.absolute && !n.relative && scalarTypes[lower]:
		e := p.element(ast.KindScalarType, lower)
		p.finish(e, startOf(n.start))
		return e, nil
	}
	ref, err := p.builder.BuildClassOrInterfaceReference(p.resolveClass(n))
	if err != nil {
		return nil, err
	}
	p.adopt(ref)
	p.finish(ref, startOf(n.start))
	return ref, nil
}

func (p *fileParser) reference(kind ast.Kind, tok tokenizer.Token) (*ast.Element, error) {
	var (
		ref *ast.Element
		err error
	)
	switch kind {
	case ast.KindSelfReference:
		ref, err = p.builder.BuildSelfReference()
	case ast.KindParentReference:
		ref, err = p.builder.BuildParentReference()
	default:
		ref, err = p.builder.BuildStaticReference()
	}
	if err != nil {
		return nil, err
	}
	p.adopt(ref)
	ref.SetPosition(ast.Position{
		StartLine: tok.StartLine, StartColumn: tok.StartColumn,
		EndLine: tok.EndLine, EndColumn: tok.EndColumn,
	})
	return ref, nil
}

func (p *fileParser) referenceSpan(kind ast.Kind, n name) (*ast.Element, error) {
	ref, err := p.reference(kind, n.start)
	if err != nil {
		return nil, err
	}
	p.finish(ref, startOf(n.start))
	return ref, nil
}

// classReference builds the reference used by `new`, static access and
// `instanceof`, mapping self/parent/static to their dedicated nodes.
func (p *fileParser) classReference(n name, kind ast.Kind) (*ast.Element, error) {
	switch {
	case n.isSpecial("self"):
		return p.referenceSpan(ast.KindSelfReference, n)
	case n.isSpecial("parent"):
		return p.referenceSpan(ast.KindParentReference, n)
	case n.isSpecial("static"):
		return p.referenceSpan(ast.KindStaticReference, n)
	}
	var (
		ref *ast.Element
		err error
	)
	if kind == ast.KindClassReference {
		ref, err = p.builder.BuildClassReference(p.resolveClass(n))
	} else {
		ref, err = p.builder.BuildClassOrInterfaceReference(p.resolveClass(n))
	}
	if err != nil {
		return nil, err
	}
	p.adopt(ref)
	p.finish(ref, startOf(n.start))
	return ref, nil
}

func (p *fileParser) parseFieldDeclaration(start ast.Position, modifiers ast.Flags, doc string) (ast.Node, error) {
	field := p.element(ast.KindFieldDeclaration, "")
	field.AddFlags(modifiers)
	field.SetDocComment(doc)
	if !p.check(tokenizer.Variable) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		field.AddChild(t)
	}
	for {
		v, err := p.expect(tokenizer.Variable)
		if err != nil {
			return nil, err
		}
		decl := p.leaf(ast.KindVariableDeclarator, v)
		if _, ok := p.accept(tokenizer.Assign); ok {
			def, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			decl.AddChild(def)
			p.finish(decl, startOf(v))
		}
		field.AddChild(decl)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.Semicolon); err != nil {
		return nil, err
	}
	p.finish(field, start)
	return field, nil
}

// parseConstantDefinition handles class constants and top-level `const`.
func (p *fileParser) parseConstantDefinition(start ast.Position) (*ast.Element, error) {
	p.next()
	def := p.element(ast.KindConstantDefinition, "")
	if isIdentifierLike(p.peek()) && isIdentifierLike(p.peekAt(1)) || p.check(tokenizer.Question) {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		def.AddChild(t)
	}
	for {
		nameTok, err := p.expectIdentifierLike()
		if err != nil {
			return nil, err
		}
		decl := p.element(ast.KindConstantDeclarator, nameTok.Image)
		if _, err := p.expect(tokenizer.Assign); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.AddChild(value)
		p.finish(decl, startOf(nameTok))
		def.AddChild(decl)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(def, start)
	return def, nil
}

func (p *fileParser) parseTraitUse() (ast.Node, error) {
	start := startOf(p.next())
	use := p.element(ast.KindTraitUseStatement, "")
	for {
		ref, err := p.parseTraitReference()
		if err != nil {
			return nil, err
		}
		use.AddChild(ref)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if p.check(tokenizer.LBrace) {
		block, err := p.parseTraitAdaptations()
		if err != nil {
			return nil, err
		}
		use.AddChild(block)
	} else if _, err := p.expect(tokenizer.Semicolon); err != nil {
		return nil, err
	}
	p.finish(use, start)
	return use, nil
}

// parseTraitAdaptations reads the `{ ... }` block of a trait use statement.
func (p *fileParser) parseTraitAdaptations() (*ast.Element, error) {
	start := startOf(p.next())
	block := p.element(ast.KindTraitAdaptation, "")
	for !p.check(tokenizer.RBrace) {
		if p.eof() {
			return nil, p.unexpected()
		}
		rule, err := p.parseTraitAdaptationRule()
		if err != nil {
			return nil, err
		}
		block.AddChild(rule)
	}
	p.next()
	p.finish(block, start)
	return block, nil
}

// parseTraitAdaptationRule reads `A::m insteadof B, C;` or
// `[A::]m as [visibility] [alias];`. The method name is the rule's image;
// named traits become trait reference children.
func (p *fileParser) parseTraitAdaptationRule() (*ast.Element, error) {
	start := startOf(p.peek())
	var trait *ast.Element
	if !(isIdentifierLike(p.peek()) && p.peekAt(1).Kind == tokenizer.As) {
		ref, err := p.parseTraitReference()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.DoubleColon); err != nil {
			return nil, err
		}
		trait = ref
	}
	method, err := p.expectIdentifierLike()
	if err != nil {
		return nil, err
	}

	var rule *ast.Element
	switch {
	case p.check(tokenizer.InsteadOf) && trait != nil:
		p.next()
		rule = p.element(ast.KindTraitAdaptationPrecedence, method.Image)
		rule.AddChild(trait)
		for {
			ref, err := p.parseTraitReference()
			if err != nil {
				return nil, err
			}
			rule.AddChild(ref)
			if _, ok := p.accept(tokenizer.Comma); !ok {
				break
			}
		}
	case p.check(tokenizer.As):
		p.next()
		rule = p.element(ast.KindTraitAdaptationAlias, method.Image)
		if trait != nil {
			rule.AddChild(trait)
		}
		switch p.peek().Kind {
		case tokenizer.Public:
			rule.AddFlags(ast.FlagPublic)
			p.next()
		case tokenizer.Protected:
			rule.AddFlags(ast.FlagProtected)
			p.next()
		case tokenizer.Private:
			rule.AddFlags(ast.FlagPrivate)
			p.next()
		}
		if !p.check(tokenizer.Semicolon) {
			alias, err := p.expectIdentifierLike()
			if err != nil {
				return nil, err
			}
			rule.AddChild(p.leaf(ast.KindIdentifier, alias))
		} else if rule.Flags() == 0 {
			return nil, p.unexpected()
		}
	default:
		return nil, p.unexpected()
	}
	if _, err := p.expect(tokenizer.Semicolon); err != nil {
		return nil, err
	}
	p.finish(rule, start)
	return rule, nil
}

func (p *fileParser) parseTraitReference() (*ast.Element, error) {
	n, err := p.parseName()
	if err != nil {
		return nil, err
	}
	ref, err := p.builder.BuildTraitReference(p.resolveClass(n))
	if err != nil {
		return nil, err
	}
	p.adopt(ref)
	p.finish(ref, startOf(n.start))
	return ref, nil
}

func (p *fileParser) parseEnumCase() (ast.Node, error) {
	start := startOf(p.next())
	nameTok, err := p.expectIdentifierLike()
	if err != nil {
		return nil, err
	}
	c := p.element(ast.KindEnumCase, nameTok.Image)
	if _, ok := p.accept(tokenizer.Assign); ok {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		c.AddChild(value)
	}
	if _, err := p.expect(tokenizer.Semicolon); err != nil {
		return nil, err
	}
	p.finish(c, start)
	return c, nil
}
