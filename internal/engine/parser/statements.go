package parser

import (
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"strings"
)

// parseStatement parses one statement. Statements that only change parser
// state (imports, namespaces, empty statements) return a nil node.
func (p *fileParser) parseStatement() (ast.Node, error) {
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	tok := p.peek()
	switch tok.Kind {
	case tokenizer.InlineHTML:
		p.next()
		return p.leaf(ast.KindInlineHTML, tok), nil
	case tokenizer.OpenTagWithEcho:
		p.next()
		return p.parseExpressionList(ast.KindEchoStatement, startOf(tok))
	case tokenizer.CloseTag, tokenizer.Semicolon:
		p.next()
		return nil, nil
	case tokenizer.LBrace:
		return p.parseBlock()
	case tokenizer.Namespace:
		if p.peekAt(1).Kind != tokenizer.Backslash {
			return nil, p.parseNamespace()
		}
	case tokenizer.Use:
		return nil, p.parseUse()
	case tokenizer.Const:
		return p.parseConstantDefinition(startOf(tok))
	case tokenizer.If:
		p.next()
		return p.parseIf(ast.KindIfStatement, startOf(tok))
	case tokenizer.While:
		return p.parseWhile()
	case tokenizer.Do:
		return p.parseDoWhile()
	case tokenizer.For:
		return p.parseFor()
	case tokenizer.Foreach:
		return p.parseForeach()
	case tokenizer.Switch:
		return p.parseSwitch()
	case tokenizer.Try:
		return p.parseTry()
	case tokenizer.Return:
		p.next()
		return p.parseOptionalExpression(ast.KindReturnStatement, startOf(tok))
	case tokenizer.Break:
		p.next()
		return p.parseOptionalExpression(ast.KindBreakStatement, startOf(tok))
	case tokenizer.Continue:
		p.next()
		return p.parseOptionalExpression(ast.KindContinueStatement, startOf(tok))
	case tokenizer.Throw:
		p.next()
		return p.parseExpressionList(ast.KindThrowStatement, startOf(tok))
	case tokenizer.Echo:
		p.next()
		return p.parseExpressionList(ast.KindEchoStatement, startOf(tok))
	case tokenizer.Global:
		p.next()
		return p.parseExpressionList(ast.KindGlobalStatement, startOf(tok))
	case tokenizer.Static:
		if p.peekAt(1).Kind == tokenizer.Variable {
			return p.parseStaticVariables()
		}
	case tokenizer.Unset:
		if p.peekAt(1).Kind == tokenizer.LParen {
			return p.parseUnset()
		}
	case tokenizer.Goto:
		p.next()
		label, err := p.expect(tokenizer.Identifier)
		if err != nil {
			return nil, err
		}
		stmt := p.element(ast.KindGotoStatement, label.Image)
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		p.finish(stmt, startOf(tok))
		return stmt, nil
	case tokenizer.Declare:
		return p.parseDeclare()
	case tokenizer.Identifier:
		if p.peekAt(1).Kind == tokenizer.Colon {
			p.next()
			p.next()
			stmt := p.element(ast.KindLabelStatement, tok.Image)
			p.finish(stmt, startOf(tok))
			return stmt, nil
		}
		if strings.EqualFold(tok.Image, "__halt_compiler") {
			p.haltCompiler()
			return nil, nil
		}
	}
	if p.atFunctionDeclaration() {
		return p.parseFunctionDeclaration()
	}
	if p.atTypeDeclaration() {
		return p.parseTypeDeclaration()
	}
	return p.parseExpressionStatement()
}

// endStatement accepts the statement terminator. A closing tag or the end
// of input also terminates a statement.
func (p *fileParser) endStatement() error {
	switch {
	case p.check(tokenizer.Semicolon), p.check(tokenizer.CloseTag):
		p.next()
		return nil
	case p.eof():
		return nil
	}
	return p.unexpected()
}

// haltCompiler stops parsing; everything after __halt_compiler() is data.
func (p *fileParser) haltCompiler() {
	for !p.eof() {
		p.next()
	}
}

func (p *fileParser) parseExpressionStatement() (ast.Node, error) {
	start := startOf(p.peek())
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	stmt := p.element(ast.KindStatement, "")
	stmt.AddChild(expr)
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

// parseExpressionList parses `kw expr, expr;` shaped statements.
func (p *fileParser) parseExpressionList(kind ast.Kind, start ast.Position) (ast.Node, error) {
	stmt := p.element(kind, "")
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.AddChild(expr)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

// parseOptionalExpression parses return, break and continue.
func (p *fileParser) parseOptionalExpression(kind ast.Kind, start ast.Position) (ast.Node, error) {
	stmt := p.element(kind, "")
	if !p.check(tokenizer.Semicolon, tokenizer.CloseTag) && !p.eof() {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.AddChild(expr)
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseBlock() (*ast.Element, error) {
	open, err := p.expect(tokenizer.LBrace)
	if err != nil {
		return nil, err
	}
	scope := p.element(ast.KindScope, "")
	if err := p.parseStatementsUntil(scope, func() bool { return p.check(tokenizer.RBrace) }); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenizer.RBrace); err != nil {
		return nil, err
	}
	p.finish(scope, startOf(open))
	return scope, nil
}

// parseAlternativeBlock parses the statements of a `:` ... `endxxx;` body up
// to, but not including, one of the stop tokens.
func (p *fileParser) parseAlternativeBlock(colon tokenizer.Token, stops ...tokenizer.Kind) (*ast.Element, error) {
	scope := p.element(ast.KindScope, "")
	scope.AddFlags(ast.FlagAlternative)
	if err := p.parseStatementsUntil(scope, func() bool { return p.check(stops...) }); err != nil {
		return nil, err
	}
	if p.eof() {
		return nil, p.unexpected()
	}
	p.finish(scope, startOf(colon))
	return scope, nil
}

// parseBody parses the body of a control structure: a block, a single
// statement or, after a colon, an alternative-syntax block closed by end.
func (p *fileParser) parseBody(end tokenizer.Kind) (ast.Node, bool, error) {
	if colon, ok := p.accept(tokenizer.Colon); ok {
		scope, err := p.parseAlternativeBlock(colon, end)
		if err != nil {
			return nil, false, err
		}
		p.next()
		return scope, true, p.endStatement()
	}
	return p.parseEmbeddedStatement()
}

func (p *fileParser) parseEmbeddedStatement() (ast.Node, bool, error) {
	tok := p.peek()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, false, err
	}
	if stmt == nil {
		empty := p.element(ast.KindScope, "")
		p.finish(empty, startOf(tok))
		return empty, false, nil
	}
	return stmt, false, nil
}

func (p *fileParser) parseParenthesized() (*ast.Element, error) {
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseIf parses if and elseif clauses. The else branch of an elseif chain
// is nested into the preceding clause.
func (p *fileParser) parseIf(kind ast.Kind, start ast.Position) (ast.Node, error) {
	stmt := p.element(kind, "")
	cond, err := p.parseParenthesized()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(cond)

	if colon, ok := p.accept(tokenizer.Colon); ok {
		stmt.AddFlags(ast.FlagAlternative)
		then, err := p.parseAlternativeBlock(colon, tokenizer.ElseIf, tokenizer.Else, tokenizer.EndIf)
		if err != nil {
			return nil, err
		}
		stmt.AddChild(then)
		switch tok := p.peek(); tok.Kind {
		case tokenizer.ElseIf:
			p.next()
			elseIf, err := p.parseIf(ast.KindElseIfStatement, startOf(tok))
			if err != nil {
				return nil, err
			}
			stmt.AddChild(elseIf)
			stmt.AddFlags(ast.FlagHasElse)
		case tokenizer.Else:
			p.next()
			colon, err := p.expect(tokenizer.Colon)
			if err != nil {
				return nil, err
			}
			els, err := p.parseAlternativeBlock(colon, tokenizer.EndIf)
			if err != nil {
				return nil, err
			}
			stmt.AddChild(els)
			stmt.AddFlags(ast.FlagHasElse)
		}
		if kind == ast.KindIfStatement {
			if _, err := p.expect(tokenizer.EndIf); err != nil {
				return nil, err
			}
			if err := p.endStatement(); err != nil {
				return nil, err
			}
		}
		p.finish(stmt, start)
		return stmt, nil
	}

	then, _, err := p.parseEmbeddedStatement()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(then)
	switch tok := p.peek(); tok.Kind {
	case tokenizer.ElseIf:
		p.next()
		elseIf, err := p.parseIf(ast.KindElseIfStatement, startOf(tok))
		if err != nil {
			return nil, err
		}
		stmt.AddChild(elseIf)
		stmt.AddFlags(ast.FlagHasElse)
	case tokenizer.Else:
		p.next()
		els, _, err := p.parseEmbeddedStatement()
		if err != nil {
			return nil, err
		}
		stmt.AddChild(els)
		stmt.AddFlags(ast.FlagHasElse)
	}
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseWhile() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindWhileStatement, "")
	cond, err := p.parseParenthesized()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(cond)
	body, alt, err := p.parseBody(tokenizer.EndWhile)
	if err != nil {
		return nil, err
	}
	if alt {
		stmt.AddFlags(ast.FlagAlternative)
	}
	stmt.AddChild(body)
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseDoWhile() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindDoWhileStatement, "")
	body, _, err := p.parseEmbeddedStatement()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(body)
	if _, err := p.expect(tokenizer.While); err != nil {
		return nil, err
	}
	cond, err := p.parseParenthesized()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(cond)
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

// parseForClause parses the comma separated expressions of one for clause
// into an element of the given kind. Empty clauses yield nil.
func (p *fileParser) parseForClause(kind ast.Kind, end tokenizer.Kind) (*ast.Element, error) {
	if p.check(end) {
		p.next()
		return nil, nil
	}
	start := startOf(p.peek())
	clause := p.element(kind, "")
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		clause.AddChild(expr)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	p.finish(clause, start)
	if _, err := p.expect(end); err != nil {
		return nil, err
	}
	return clause, nil
}

func (p *fileParser) parseFor() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindForStatement, "")
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	clauses := []struct {
		kind ast.Kind
		end  tokenizer.Kind
	}{
		{ast.KindForInit, tokenizer.Semicolon},
		{ast.KindExpression, tokenizer.Semicolon},
		{ast.KindForUpdate, tokenizer.RParen},
	}
	for _, c := range clauses {
		clause, err := p.parseForClause(c.kind, c.end)
		if err != nil {
			return nil, err
		}
		if clause != nil {
			stmt.AddChild(clause)
		}
	}
	body, alt, err := p.parseBody(tokenizer.EndFor)
	if err != nil {
		return nil, err
	}
	if alt {
		stmt.AddFlags(ast.FlagAlternative)
	}
	stmt.AddChild(body)
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseForeach() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindForeachStatement, "")
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(subject)
	if _, err := p.expect(tokenizer.As); err != nil {
		return nil, err
	}
	value, err := p.parseForeachTarget()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokenizer.DoubleArrow); ok {
		stmt.AddChild(value)
		if value, err = p.parseForeachTarget(); err != nil {
			return nil, err
		}
	}
	stmt.AddChild(value)
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	body, alt, err := p.parseBody(tokenizer.EndForeach)
	if err != nil {
		return nil, err
	}
	if alt {
		stmt.AddFlags(ast.FlagAlternative)
	}
	stmt.AddChild(body)
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseForeachTarget() (*ast.Element, error) {
	byRef := false
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		byRef = true
	}
	target, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if byRef {
		target.AddFlags(ast.FlagByReference)
	}
	return target, nil
}

func (p *fileParser) parseSwitch() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindSwitchStatement, "")
	subject, err := p.parseParenthesized()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(subject)

	end := tokenizer.RBrace
	if _, ok := p.accept(tokenizer.Colon); ok {
		end = tokenizer.EndSwitch
		stmt.AddFlags(ast.FlagAlternative)
	} else if _, err := p.expect(tokenizer.LBrace); err != nil {
		return nil, err
	}
	for !p.check(end) {
		if p.eof() {
			return nil, p.unexpected()
		}
		label, err := p.parseSwitchLabel(end)
		if err != nil {
			return nil, err
		}
		stmt.AddChild(label)
	}
	p.next()
	if end == tokenizer.EndSwitch {
		if err := p.endStatement(); err != nil {
			return nil, err
		}
	}
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseSwitchLabel(end tokenizer.Kind) (*ast.Element, error) {
	tok := p.peek()
	label := p.element(ast.KindSwitchLabel, "")
	switch tok.Kind {
	case tokenizer.Case:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		label.AddChild(expr)
	case tokenizer.Default:
		p.next()
		label.AddFlags(ast.FlagDefault)
	default:
		return nil, p.unexpected()
	}
	if _, ok := p.accept(tokenizer.Colon); !ok {
		if _, err := p.expect(tokenizer.Semicolon); err != nil {
			return nil, err
		}
	}
	stop := func() bool { return p.check(tokenizer.Case, tokenizer.Default, end) }
	if err := p.parseStatementsUntil(label, stop); err != nil {
		return nil, err
	}
	p.finish(label, startOf(tok))
	return label, nil
}

func (p *fileParser) parseTry() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindTryStatement, "")
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt.AddChild(body)
	for p.check(tokenizer.Catch) {
		catch, err := p.parseCatch()
		if err != nil {
			return nil, err
		}
		stmt.AddChild(catch)
	}
	if tok, ok := p.accept(tokenizer.Finally); ok {
		finally := p.element(ast.KindFinallyStatement, "")
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		finally.AddChild(block)
		p.finish(finally, startOf(tok))
		stmt.AddChild(finally)
	}
	if len(stmt.Children()) == 1 {
		return nil, p.unexpected()
	}
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseCatch() (*ast.Element, error) {
	start := startOf(p.next())
	catch := p.element(ast.KindCatchStatement, "")
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	for {
		n, err := p.parseName()
		if err != nil {
			return nil, err
		}
		ref, err := p.classReference(n, ast.KindClassOrInterfaceReference)
		if err != nil {
			return nil, err
		}
		catch.AddChild(ref)
		if _, ok := p.accept(tokenizer.Pipe); !ok {
			break
		}
	}
	if v, ok := p.accept(tokenizer.Variable); ok {
		catch.AddChild(p.leaf(ast.KindVariable, v))
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	catch.AddChild(block)
	p.finish(catch, start)
	return catch, nil
}

func (p *fileParser) parseStaticVariables() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindStaticVariableDeclaration, "")
	for {
		v, err := p.expect(tokenizer.Variable)
		if err != nil {
			return nil, err
		}
		decl := p.leaf(ast.KindVariableDeclarator, v)
		if _, ok := p.accept(tokenizer.Assign); ok {
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			decl.AddChild(value)
			p.finish(decl, startOf(v))
		}
		stmt.AddChild(decl)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

func (p *fileParser) parseUnset() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindUnsetStatement, "")
	p.next()
	for !p.check(tokenizer.RParen) {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.AddChild(expr)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	p.finish(stmt, start)
	return stmt, nil
}

// parseDeclare handles `declare(strict_types=1);` and the block forms.
func (p *fileParser) parseDeclare() (ast.Node, error) {
	start := startOf(p.next())
	stmt := p.element(ast.KindDeclareStatement, "")
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	var directives []string
	for {
		nameTok, err := p.expect(tokenizer.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.Assign); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl := p.element(ast.KindConstantDeclarator, nameTok.Image)
		decl.AddChild(value)
		p.finish(decl, startOf(nameTok))
		stmt.AddChild(decl)
		directives = append(directives, nameTok.Image)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	stmt.SetImage(strings.Join(directives, ","))
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	if p.check(tokenizer.Semicolon, tokenizer.CloseTag) || p.eof() {
		if err := p.endStatement(); err != nil {
			return nil, err
		}
	} else {
		body, alt, err := p.parseBody(tokenizer.EndDeclare)
		if err != nil {
			return nil, err
		}
		if alt {
			stmt.AddFlags(ast.FlagAlternative)
		}
		stmt.AddChild(body)
	}
	p.finish(stmt, start)
	return stmt, nil
}
