package parser

import (
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"strings"
)

// name is a possibly qualified identifier as written in the source.
type name struct {
	text     string
	absolute bool
	relative bool
	start    tokenizer.Token
}

func (n name) isSpecial(word string) bool {
	return !n.absolute && !n.relative && strings.EqualFold(n.text, word)
}

func (p *fileParser) atName() bool {
	tok := p.peek()
	switch tok.Kind {
	case tokenizer.Identifier, tokenizer.Backslash:
		return true
	case tokenizer.Namespace:
		return p.peekAt(1).Kind == tokenizer.Backslash
	}
	return false
}

// parseName reads `Foo`, `Foo\Bar`, `\Foo\Bar` or `namespace\Foo`.
func (p *fileParser) parseName() (name, error) {
	n := name{start: p.peek()}
	switch {
	case p.check(tokenizer.Backslash):
		p.next()
		n.absolute = true
	case p.check(tokenizer.Namespace) && p.peekAt(1).Kind == tokenizer.Backslash:
		p.next()
		p.next()
		n.relative = true
	}
	first, err := p.expectIdentifierLike()
	if err != nil {
		return n, err
	}
	parts := []string{first.Image}
	for p.check(tokenizer.Backslash) && isIdentifierLike(p.peekAt(1)) {
		p.next()
		parts = append(parts, p.next().Image)
	}
	n.text = strings.Join(parts, `\`)
	return n, nil
}

func (p *fileParser) qualify(local string) string {
	if p.namespace == "" {
		return local
	}
	return p.namespace + `\` + local
}

// resolveClass turns a written class name into a fully qualified one using
// the current namespace and `use` imports.
func (p *fileParser) resolveClass(n name) string {
	switch {
	case n.absolute:
		return n.text
	case n.relative:
		return p.qualify(n.text)
	}
	head, rest, qualified := strings.Cut(n.text, `\`)
	if target, ok := p.uses[strings.ToLower(head)]; ok {
		if qualified {
			return target + `\` + rest
		}
		return target
	}
	return p.qualify(n.text)
}

// resolveFunction qualifies a called function name. Unqualified names that
// are not imported stay in the current namespace; the builder falls back to
// the global function at lookup time.
func (p *fileParser) resolveFunction(n name) string {
	if !n.absolute && !n.relative && !strings.Contains(n.text, `\`) {
		if target, ok := p.useFuncs[n.text]; ok {
			return target
		}
	}
	return p.resolveClass(n)
}

// parseUse handles `use` imports at namespace level, including group use and
// the `function` and `const` forms. Imports produce no nodes.
func (p *fileParser) parseUse() error {
	p.next()
	kind := ""
	if p.check(tokenizer.Function) || (p.check(tokenizer.Const)) {
		kind = strings.ToLower(p.next().Image)
	}
	for {
		prefix, err := p.parseName()
		if err != nil {
			return err
		}
		if p.check(tokenizer.Backslash) && p.peekAt(1).Kind == tokenizer.LBrace {
			p.next()
			p.next()
			if err := p.parseGroupUse(prefix.text, kind); err != nil {
				return err
			}
		} else if err := p.addImport(prefix.text, kind); err != nil {
			return err
		}
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	return p.endStatement()
}

func (p *fileParser) parseGroupUse(prefix, kind string) error {
	for !p.check(tokenizer.RBrace) {
		itemKind := kind
		if p.check(tokenizer.Function) || p.check(tokenizer.Const) {
			itemKind = strings.ToLower(p.next().Image)
		}
		item, err := p.parseName()
		if err != nil {
			return err
		}
		if err := p.addImport(prefix+`\`+item.text, itemKind); err != nil {
			return err
		}
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	_, err := p.expect(tokenizer.RBrace)
	return err
}

func (p *fileParser) addImport(target, kind string) error {
	target = strings.TrimPrefix(target, `\`)
	alias := target
	if i := strings.LastIndex(target, `\`); i >= 0 {
		alias = target[i+1:]
	}
	if _, ok := p.accept(tokenizer.As); ok {
		tok, err := p.expectIdentifierLike()
		if err != nil {
			return err
		}
		alias = tok.Image
	}
	switch kind {
	case "function":
		p.useFuncs[alias] = target
	case "const":
	default:
		p.uses[strings.ToLower(alias)] = target
	}
	return nil
}

// parseNamespace handles both `namespace Foo;` and `namespace Foo { ... }`.
func (p *fileParser) parseNamespace() error {
	p.next()
	ns := ""
	if !p.check(tokenizer.LBrace) {
		n, err := p.parseName()
		if err != nil {
			return err
		}
		ns = n.text
	}
	p.namespace = ns
	p.resetImports()
	if _, err := p.builder.BuildNamespace(ns); err != nil {
		return err
	}
	if _, ok := p.accept(tokenizer.LBrace); ok {
		if err := p.parseStatementsUntil(p.unit, func() bool { return p.check(tokenizer.RBrace) }); err != nil {
			return err
		}
		if _, err := p.expect(tokenizer.RBrace); err != nil {
			return err
		}
		p.namespace = ""
		p.resetImports()
		return nil
	}
	return p.endStatement()
}
