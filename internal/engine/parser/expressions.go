package parser

import (
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"strings"
)

const (
	precAssignment  = 4
	precTernary     = 5
	precCoalesce    = 6
	precNot         = 18
	precUnary       = 19
	precExponential = 20
)

type binaryOperator struct {
	prec  int
	right bool
	kind  ast.Kind
}

var binaryOperators = map[tokenizer.Kind]binaryOperator{
	tokenizer.Or:           {1, false, ast.KindLogicalOrExpression},
	tokenizer.Xor:          {2, false, ast.KindLogicalXorExpression},
	tokenizer.And:          {3, false, ast.KindLogicalAndExpression},
	tokenizer.Coalesce:     {precCoalesce, true, ast.KindBinaryExpression},
	tokenizer.BooleanOr:    {7, false, ast.KindBooleanOrExpression},
	tokenizer.BooleanAnd:   {8, false, ast.KindBooleanAndExpression},
	tokenizer.Pipe:         {9, false, ast.KindBinaryExpression},
	tokenizer.Caret:        {10, false, ast.KindBinaryExpression},
	tokenizer.Ampersand:    {11, false, ast.KindBinaryExpression},
	tokenizer.Equal:        {12, false, ast.KindBinaryExpression},
	tokenizer.NotEqual:     {12, false, ast.KindBinaryExpression},
	tokenizer.Identical:    {12, false, ast.KindBinaryExpression},
	tokenizer.NotIdentical: {12, false, ast.KindBinaryExpression},
	tokenizer.Spaceship:    {12, false, ast.KindBinaryExpression},
	tokenizer.Less:         {13, false, ast.KindBinaryExpression},
	tokenizer.LessEqual:    {13, false, ast.KindBinaryExpression},
	tokenizer.Greater:      {13, false, ast.KindBinaryExpression},
	tokenizer.GreaterEqual: {13, false, ast.KindBinaryExpression},
	tokenizer.Dot:          {14, false, ast.KindBinaryExpression},
	tokenizer.Shl:          {15, false, ast.KindBinaryExpression},
	tokenizer.Shr:          {15, false, ast.KindBinaryExpression},
	tokenizer.Plus:         {16, false, ast.KindBinaryExpression},
	tokenizer.Minus:        {16, false, ast.KindBinaryExpression},
	tokenizer.Mul:          {17, false, ast.KindBinaryExpression},
	tokenizer.Div:          {17, false, ast.KindBinaryExpression},
	tokenizer.Mod:          {17, false, ast.KindBinaryExpression},
	tokenizer.InstanceOf:   {18, false, ast.KindInstanceOfExpression},
	tokenizer.Pow:          {precExponential, true, ast.KindBinaryExpression},
}

var assignmentOperators = map[tokenizer.Kind]bool{
	tokenizer.Assign: true, tokenizer.PlusAssign: true, tokenizer.MinusAssign: true,
	tokenizer.MulAssign: true, tokenizer.DivAssign: true, tokenizer.ConcatAssign: true,
	tokenizer.ModAssign: true, tokenizer.PowAssign: true, tokenizer.AndAssign: true,
	tokenizer.OrAssign: true, tokenizer.XorAssign: true, tokenizer.ShlAssign: true,
	tokenizer.ShrAssign: true, tokenizer.CoalesceAssign: true,
}

func startFrom(n ast.Node) ast.Position {
	pos := n.Position()
	return ast.Position{StartLine: pos.StartLine, StartColumn: pos.StartColumn}
}

func (p *fileParser) parseExpression() (*ast.Element, error) {
	return p.parseExpressionLevel(0)
}

// parseExpressionLevel is a precedence climbing parser over binary and
// ternary operators. Operands are parsed by parseUnary.
func (p *fileParser) parseExpressionLevel(minPrec int) (*ast.Element, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind == tokenizer.Question && minPrec <= precTernary {
			if lhs, err = p.parseConditional(lhs); err != nil {
				return nil, err
			}
			continue
		}
		op, ok := binaryOperators[tok.Kind]
		if !ok || op.prec < minPrec {
			return lhs, nil
		}
		p.next()
		var rhs *ast.Element
		if op.kind == ast.KindInstanceOfExpression {
			rhs, err = p.parseInstanceOfTarget()
		} else {
			next := op.prec + 1
			if op.right {
				next = op.prec
			}
			rhs, err = p.parseExpressionLevel(next)
		}
		if err != nil {
			return nil, err
		}
		bin := p.element(op.kind, tok.Image)
		bin.AddChild(lhs)
		bin.AddChild(rhs)
		p.finish(bin, startFrom(lhs))
		lhs = bin
	}
}

// parseConditional parses `cond ? a : b` and the short `cond ?: b`.
func (p *fileParser) parseConditional(cond *ast.Element) (*ast.Element, error) {
	p.next()
	expr := p.element(ast.KindConditionalExpression, "?")
	expr.AddChild(cond)
	if _, ok := p.accept(tokenizer.Colon); ok {
		expr.AddFlags(ast.FlagElvis)
	} else {
		then, err := p.parseExpressionLevel(precAssignment)
		if err != nil {
			return nil, err
		}
		expr.AddChild(then)
		if _, err := p.expect(tokenizer.Colon); err != nil {
			return nil, err
		}
	}
	els, err := p.parseExpressionLevel(precCoalesce)
	if err != nil {
		return nil, err
	}
	expr.AddChild(els)
	p.finish(expr, startFrom(cond))
	return expr, nil
}

func (p *fileParser) parseInstanceOfTarget() (*ast.Element, error) {
	tok := p.peek()
	switch {
	case tok.Kind == tokenizer.Static:
		p.next()
		return p.reference(ast.KindStaticReference, tok)
	case p.atName():
		n, err := p.parseName()
		if err != nil {
			return nil, err
		}
		return p.classReference(n, ast.KindClassOrInterfaceReference)
	}
	return p.parseUnary()
}

// parseUnary parses prefix operators, the postfix chain of a primary and a
// trailing assignment.
func (p *fileParser) parseUnary() (*ast.Element, error) {
	if err := p.skipAttributes(); err != nil {
		return nil, err
	}
	tok := p.peek()
	start := startOf(tok)
	switch {
	case tok.Kind == tokenizer.Not:
		p.next()
		return p.prefix(ast.KindUnaryExpression, tok, precNot)
	case tok.Is(tokenizer.Minus, tokenizer.Plus, tokenizer.Tilde, tokenizer.At):
		p.next()
		return p.prefix(ast.KindUnaryExpression, tok, precUnary)
	case tok.Kind.IsCast():
		p.next()
		return p.prefix(ast.KindCastExpression, tok, precUnary)
	case tok.Kind == tokenizer.Clone:
		p.next()
		return p.prefix(ast.KindCloneExpression, tok, precUnary)
	case tok.Kind == tokenizer.Print:
		p.next()
		return p.prefix(ast.KindPrintExpression, tok, precAssignment)
	case tok.Kind == tokenizer.Throw:
		p.next()
		return p.prefix(ast.KindThrowExpression, tok, precAssignment)
	case tok.Is(tokenizer.Include, tokenizer.IncludeOnce, tokenizer.Require, tokenizer.RequireOnce):
		p.next()
		kind := ast.KindIncludeExpression
		if tok.Is(tokenizer.Require, tokenizer.RequireOnce) {
			kind = ast.KindRequireExpression
		}
		expr, err := p.prefix(kind, tok, precAssignment)
		if err != nil {
			return nil, err
		}
		if tok.Is(tokenizer.IncludeOnce, tokenizer.RequireOnce) {
			expr.AddFlags(ast.FlagOnce)
		}
		return expr, nil
	case tok.Is(tokenizer.Inc, tokenizer.Dec):
		p.next()
		operand, err := p.parsePostfixExpression()
		if err != nil {
			return nil, err
		}
		expr := p.element(ast.KindIncrementExpression, tok.Image)
		expr.AddChild(operand)
		p.finish(expr, start)
		return expr, nil
	case tok.Kind == tokenizer.Yield:
		return p.parseYield()
	}

	expr, err := p.parsePostfixExpression()
	if err != nil {
		return nil, err
	}
	if op := p.peek(); assignmentOperators[op.Kind] && isAssignable(expr) {
		p.next()
		assign := p.element(ast.KindAssignmentExpression, op.Image)
		if op.Kind == tokenizer.Assign {
			if _, ok := p.accept(tokenizer.Ampersand); ok {
				assign.AddFlags(ast.FlagByReference)
			}
		}
		value, err := p.parseExpressionLevel(precAssignment)
		if err != nil {
			return nil, err
		}
		assign.AddChild(expr)
		assign.AddChild(value)
		p.finish(assign, startFrom(expr))
		return assign, nil
	}
	return expr, nil
}

func (p *fileParser) prefix(kind ast.Kind, op tokenizer.Token, prec int) (*ast.Element, error) {
	operand, err := p.parseExpressionLevel(prec)
	if err != nil {
		return nil, err
	}
	expr := p.element(kind, op.Image)
	expr.AddChild(operand)
	p.finish(expr, startOf(op))
	return expr, nil
}

func isAssignable(e *ast.Element) bool {
	switch e.Kind() {
	case ast.KindVariable, ast.KindVariableVariable, ast.KindCompoundVariable,
		ast.KindArrayIndexExpression, ast.KindStringIndexExpression,
		ast.KindListExpression, ast.KindArray:
		return true
	case ast.KindMemberPrimaryPrefix:
		last := e.Child(len(e.Children()) - 1)
		return last != nil && last.Kind() == ast.KindPropertyPostfix
	}
	return false
}

func (p *fileParser) parseYield() (*ast.Element, error) {
	tok := p.next()
	expr := p.element(ast.KindYieldExpression, tok.Image)
	if next := p.peek(); next.Kind == tokenizer.Identifier && strings.EqualFold(next.Image, "from") {
		p.next()
		expr.SetImage("yield from")
		value, err := p.parseExpressionLevel(precAssignment)
		if err != nil {
			return nil, err
		}
		expr.AddChild(value)
		p.finish(expr, startOf(tok))
		return expr, nil
	}
	if !p.check(tokenizer.Semicolon, tokenizer.RParen, tokenizer.Comma, tokenizer.RBracket, tokenizer.CloseTag) && !p.eof() {
		value, err := p.parseExpressionLevel(precAssignment)
		if err != nil {
			return nil, err
		}
		expr.AddChild(value)
		if _, ok := p.accept(tokenizer.DoubleArrow); ok {
			value, err := p.parseExpressionLevel(precAssignment)
			if err != nil {
				return nil, err
			}
			expr.AddChild(value)
		}
	}
	p.finish(expr, startOf(tok))
	return expr, nil
}

// parsePostfixExpression parses a primary followed by member access, calls,
// indexing and postfix increments.
func (p *fileParser) parsePostfixExpression() (*ast.Element, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Kind {
		case tokenizer.LBracket, tokenizer.LBrace:
			if tok.Kind == tokenizer.LBrace && !isAssignable(expr) {
				return expr, nil
			}
			if expr, err = p.parseIndex(expr); err != nil {
				return nil, err
			}
		case tokenizer.Arrow, tokenizer.NullsafeArrow:
			if expr, err = p.parseMemberAccess(expr); err != nil {
				return nil, err
			}
		case tokenizer.DoubleColon:
			if expr, err = p.parseStaticAccess(expr); err != nil {
				return nil, err
			}
		case tokenizer.LParen:
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			call := p.element(ast.KindFunctionPostfix, expr.Image())
			call.AddChild(expr)
			call.AddChild(args)
			p.finish(call, startFrom(expr))
			expr = call
		case tokenizer.Inc, tokenizer.Dec:
			p.next()
			inc := p.element(ast.KindIncrementExpression, tok.Image)
			inc.AddFlags(ast.FlagPostfix)
			inc.AddChild(expr)
			p.finish(inc, startFrom(expr))
			expr = inc
		default:
			return expr, nil
		}
	}
}

func (p *fileParser) parseIndex(base *ast.Element) (*ast.Element, error) {
	open := p.next()
	kind, closer := ast.KindArrayIndexExpression, tokenizer.RBracket
	if open.Kind == tokenizer.LBrace {
		kind, closer = ast.KindStringIndexExpression, tokenizer.RBrace
	}
	idx := p.element(kind, "")
	idx.AddChild(base)
	if !p.check(closer) {
		key, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		idx.AddChild(key)
	}
	if _, err := p.expect(closer); err != nil {
		return nil, err
	}
	p.finish(idx, startFrom(base))
	return idx, nil
}

// parseMemberName reads the member after `->` or `::`: an identifier, a
// variable or a braced expression.
func (p *fileParser) parseMemberName() (string, *ast.Element, error) {
	tok := p.peek()
	switch {
	case tok.Kind == tokenizer.Variable:
		p.next()
		return tok.Image, p.leaf(ast.KindVariable, tok), nil
	case tok.Kind == tokenizer.LBrace:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return "", nil, err
		}
		if _, err := p.expect(tokenizer.RBrace); err != nil {
			return "", nil, err
		}
		return "", expr, nil
	case isIdentifierLike(tok):
		p.next()
		return tok.Image, nil, nil
	}
	return "", nil, p.unexpected()
}

func (p *fileParser) parseMemberAccess(base *ast.Element) (*ast.Element, error) {
	op := p.next()
	prefix := p.element(ast.KindMemberPrimaryPrefix, op.Image)
	if op.Kind == tokenizer.NullsafeArrow {
		prefix.AddFlags(ast.FlagNullsafe)
	}
	prefix.AddChild(base)
	memberStart := startOf(p.peek())
	image, inner, err := p.parseMemberName()
	if err != nil {
		return nil, err
	}
	kind := ast.KindPropertyPostfix
	if p.check(tokenizer.LParen) {
		kind = ast.KindMethodPostfix
	}
	postfix, err := p.postfix(kind, image, inner, memberStart)
	if err != nil {
		return nil, err
	}
	prefix.AddChild(postfix)
	p.finish(prefix, startFrom(base))
	return prefix, nil
}

func (p *fileParser) parseStaticAccess(base *ast.Element) (*ast.Element, error) {
	p.next()
	prefix := p.element(ast.KindMemberPrimaryPrefix, "::")
	prefix.AddChild(base)
	memberStart := startOf(p.peek())
	variable := p.check(tokenizer.Variable)
	image, inner, err := p.parseMemberName()
	if err != nil {
		return nil, err
	}
	var kind ast.Kind
	switch {
	case p.check(tokenizer.LParen):
		kind = ast.KindMethodPostfix
	case variable:
		kind = ast.KindPropertyPostfix
	default:
		kind = ast.KindConstantPostfix
	}
	postfix, err := p.postfix(kind, image, inner, memberStart)
	if err != nil {
		return nil, err
	}
	prefix.AddChild(postfix)
	p.finish(prefix, startFrom(base))
	return prefix, nil
}

func (p *fileParser) postfix(kind ast.Kind, image string, inner *ast.Element, start ast.Position) (*ast.Element, error) {
	postfix := p.element(kind, image)
	if inner != nil {
		postfix.AddChild(inner)
	}
	if kind == ast.KindMethodPostfix {
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		postfix.AddChild(args)
	}
	p.finish(postfix, start)
	return postfix, nil
}

// parseArguments parses a call argument list including named arguments,
// unpacking and the first-class callable syntax `f(...)`.
func (p *fileParser) parseArguments() (*ast.Element, error) {
	open, err := p.expect(tokenizer.LParen)
	if err != nil {
		return nil, err
	}
	args := p.element(ast.KindArguments, "")
	if p.check(tokenizer.Ellipsis) && p.peekAt(1).Kind == tokenizer.RParen {
		p.next()
		args.AddFlags(ast.FlagVariadic)
	}
	for !p.check(tokenizer.RParen) {
		if isIdentifierLike(p.peek()) && p.peekAt(1).Kind == tokenizer.Colon {
			p.next()
			p.next()
		}
		spread := false
		if _, ok := p.accept(tokenizer.Ellipsis); ok {
			spread = true
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if spread {
			arg.AddFlags(ast.FlagVariadic)
		}
		args.AddChild(arg)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	p.finish(args, startOf(open))
	return args, nil
}

func (p *fileParser) parsePrimary() (*ast.Element, error) {
	tok := p.peek()
	start := startOf(tok)
	switch tok.Kind {
	case tokenizer.Variable:
		p.next()
		return p.leaf(ast.KindVariable, tok), nil
	case tokenizer.Dollar:
		return p.parseVariableVariable()
	case tokenizer.IntegerLiteral, tokenizer.FloatLiteral:
		p.next()
		return p.leaf(ast.KindLiteral, tok), nil
	case tokenizer.StringLiteral, tokenizer.Heredoc, tokenizer.Nowdoc:
		p.next()
		return p.leaf(ast.KindStringLiteral, tok), nil
	case tokenizer.InterpolatedString:
		p.next()
		lit := p.leaf(ast.KindStringLiteral, tok)
		lit.AddFlags(ast.FlagInterpolated)
		return lit, nil
	case tokenizer.ShellExec:
		p.next()
		return p.leaf(ast.KindShellExec, tok), nil
	case tokenizer.LParen:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	case tokenizer.LBracket:
		return p.parseArray(tokenizer.RBracket)
	case tokenizer.Array:
		if p.peekAt(1).Kind == tokenizer.LParen {
			p.next()
			return p.parseArray(tokenizer.RParen)
		}
	case tokenizer.List:
		if p.peekAt(1).Kind == tokenizer.LParen {
			p.next()
			list, err := p.parseArray(tokenizer.RParen)
			if err != nil {
				return nil, err
			}
			out := p.element(ast.KindListExpression, "list")
			for _, child := range list.Children() {
				out.AddChild(child)
			}
			p.finish(out, start)
			return out, nil
		}
	case tokenizer.Isset, tokenizer.Empty, tokenizer.Eval:
		p.next()
		kinds := map[tokenizer.Kind]ast.Kind{
			tokenizer.Isset: ast.KindIssetExpression,
			tokenizer.Empty: ast.KindEmptyExpression,
			tokenizer.Eval:  ast.KindEvalExpression,
		}
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		expr := p.element(kinds[tok.Kind], tok.Image)
		for _, child := range args.Children() {
			expr.AddChild(child)
		}
		p.finish(expr, start)
		return expr, nil
	case tokenizer.Exit:
		p.next()
		expr := p.element(ast.KindExitExpression, tok.Image)
		if p.check(tokenizer.LParen) {
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			for _, child := range args.Children() {
				expr.AddChild(child)
			}
		}
		p.finish(expr, start)
		return expr, nil
	case tokenizer.New:
		return p.parseAllocation()
	case tokenizer.Function, tokenizer.Fn:
		return p.parseClosure(start, false)
	case tokenizer.Static:
		switch p.peekAt(1).Kind {
		case tokenizer.Function, tokenizer.Fn:
			p.next()
			return p.parseClosure(start, true)
		case tokenizer.DoubleColon:
			p.next()
			return p.reference(ast.KindStaticReference, tok)
		}
	case tokenizer.Match:
		if p.peekAt(1).Kind == tokenizer.LParen {
			return p.parseMatch()
		}
	}
	if p.atName() {
		return p.parseNamePrimary()
	}
	return nil, p.unexpected()
}

func (p *fileParser) parseVariableVariable() (*ast.Element, error) {
	tok := p.next()
	if _, ok := p.accept(tokenizer.LBrace); ok {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenizer.RBrace); err != nil {
			return nil, err
		}
		compound := p.element(ast.KindCompoundVariable, "$")
		compound.AddChild(expr)
		p.finish(compound, startOf(tok))
		return compound, nil
	}
	inner, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	vv := p.element(ast.KindVariableVariable, "$")
	vv.AddChild(inner)
	p.finish(vv, startOf(tok))
	return vv, nil
}

// parseNamePrimary handles function calls, class names before `::` and
// constants.
func (p *fileParser) parseNamePrimary() (*ast.Element, error) {
	n, err := p.parseName()
	if err != nil {
		return nil, err
	}
	switch p.peek().Kind {
	case tokenizer.LParen:
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		call := p.element(ast.KindFunctionPostfix, p.resolveFunction(n))
		call.AddChild(args)
		p.finish(call, startOf(n.start))
		return call, nil
	case tokenizer.DoubleColon:
		return p.classReference(n, ast.KindClassOrInterfaceReference)
	}
	lower := strings.ToLower(n.text)
	kind := ast.KindConstant
	if !n.absolute && !n.relative && (lower == "true" || lower == "false" || lower == "null") {
		kind = ast.KindLiteral
	}
	c := p.element(kind, n.text)
	p.finish(c, startOf(n.start))
	return c, nil
}

// parseArray parses `[...]`, `array(...)` and the element list of `list(...)`.
func (p *fileParser) parseArray(closer tokenizer.Kind) (*ast.Element, error) {
	open := p.next()
	arr := p.element(ast.KindArray, "")
	for !p.check(closer) {
		if tok, ok := p.accept(tokenizer.Comma); ok {
			empty := p.leaf(ast.KindArrayElement, tok)
			empty.SetImage("")
			arr.AddChild(empty)
			continue
		}
		el, err := p.parseArrayElement()
		if err != nil {
			return nil, err
		}
		arr.AddChild(el)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(closer); err != nil {
		return nil, err
	}
	p.finish(arr, startOf(open))
	return arr, nil
}

func (p *fileParser) parseArrayElement() (*ast.Element, error) {
	start := startOf(p.peek())
	el := p.element(ast.KindArrayElement, "")
	if _, ok := p.accept(tokenizer.Ellipsis); ok {
		el.AddFlags(ast.FlagVariadic)
	}
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		el.AddFlags(ast.FlagByReference)
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	el.AddChild(value)
	if _, ok := p.accept(tokenizer.DoubleArrow); ok {
		if _, ok := p.accept(tokenizer.Ampersand); ok {
			el.AddFlags(ast.FlagByReference)
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		el.AddChild(value)
	}
	p.finish(el, start)
	return el, nil
}

// parseAllocation parses `new` with a class name, a dynamic class
// expression or an anonymous class.
func (p *fileParser) parseAllocation() (*ast.Element, error) {
	start := startOf(p.next())
	alloc := p.element(ast.KindAllocationExpression, "new")
	tok := p.peek()
	switch {
	case tok.Kind == tokenizer.Class:
		class, args, err := p.parseAnonymousClass()
		if err != nil {
			return nil, err
		}
		alloc.AddChild(class)
		if args != nil {
			alloc.AddChild(args)
		}
		p.finish(alloc, start)
		return alloc, nil
	case tok.Kind == tokenizer.Static:
		p.next()
		ref, err := p.reference(ast.KindStaticReference, tok)
		if err != nil {
			return nil, err
		}
		alloc.AddChild(ref)
	case p.atName():
		n, err := p.parseName()
		if err != nil {
			return nil, err
		}
		ref, err := p.classReference(n, ast.KindClassReference)
		if err != nil {
			return nil, err
		}
		alloc.AddChild(ref)
	case tok.Kind == tokenizer.LParen:
		expr, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		alloc.AddChild(expr)
	default:
		expr, err := p.parseDynamicClassName()
		if err != nil {
			return nil, err
		}
		alloc.AddChild(expr)
	}
	if p.check(tokenizer.LParen) {
		args, err := p.parseArguments()
		if err != nil {
			return nil, err
		}
		alloc.AddChild(args)
	}
	p.finish(alloc, start)
	return alloc, nil
}

// parseDynamicClassName parses `new $a->b['c']` without treating a
// following argument list as a call.
func (p *fileParser) parseDynamicClassName() (*ast.Element, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case tokenizer.LBracket:
			expr, err = p.parseIndex(expr)
		case tokenizer.Arrow, tokenizer.NullsafeArrow:
			op := p.next()
			prefix := p.element(ast.KindMemberPrimaryPrefix, op.Image)
			prefix.AddChild(expr)
			memberStart := startOf(p.peek())
			image, inner, merr := p.parseMemberName()
			if merr != nil {
				return nil, merr
			}
			postfix, perr := p.postfix(ast.KindPropertyPostfix, image, inner, memberStart)
			if perr != nil {
				return nil, perr
			}
			prefix.AddChild(postfix)
			p.finish(prefix, startFrom(expr))
			expr = prefix
		case tokenizer.DoubleColon:
			p.next()
			prefix := p.element(ast.KindMemberPrimaryPrefix, "::")
			prefix.AddChild(expr)
			v, verr := p.expect(tokenizer.Variable)
			if verr != nil {
				return nil, verr
			}
			postfix := p.leaf(ast.KindPropertyPostfix, v)
			prefix.AddChild(postfix)
			p.finish(prefix, startFrom(expr))
			expr = prefix
		default:
			return expr, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseAnonymousClass builds an unregistered class node for `new class`
// together with its constructor arguments.
func (p *fileParser) parseAnonymousClass() (*ast.Class, *ast.Element, error) {
	tok := p.next()
	class := ast.NewClass(p.namespace, ast.AnonymousClassName)
	p.adopt(class)
	class.SetContext(p.builder)
	class.SetCompilationUnit(p.unit)
	var args *ast.Element
	if p.check(tokenizer.LParen) {
		var err error
		if args, err = p.parseArguments(); err != nil {
			return nil, nil, err
		}
	}
	if _, ok := p.accept(tokenizer.Extends); ok {
		n, err := p.parseName()
		if err != nil {
			return nil, nil, err
		}
		ref, err := p.classReference(n, ast.KindClassReference)
		if err != nil {
			return nil, nil, err
		}
		class.AddChild(ref)
	}
	if _, ok := p.accept(tokenizer.Implements); ok {
		if err := p.parseInterfaceList(class); err != nil {
			return nil, nil, err
		}
	}
	if err := p.parseTypeBody(class); err != nil {
		return nil, nil, err
	}
	p.finish(class, startOf(tok))
	return class, args, nil
}

// parseClosure parses `function (...) use (...) {}` and `fn (...) => expr`.
func (p *fileParser) parseClosure(start ast.Position, static bool) (*ast.Element, error) {
	kw := p.next()
	closure := p.element(ast.KindClosure, "")
	if static {
		closure.AddFlags(ast.FlagStatic)
	}
	if _, ok := p.accept(tokenizer.Ampersand); ok {
		closure.AddFlags(ast.FlagByReference)
	}
	params, err := p.parseFormalParameters()
	if err != nil {
		return nil, err
	}
	closure.AddChild(params)
	if kw.Kind == tokenizer.Function {
		if useTok, ok := p.accept(tokenizer.Use); ok {
			use, err := p.parseClosureUse(useTok)
			if err != nil {
				return nil, err
			}
			closure.AddChild(use)
		}
	}
	if _, ok := p.accept(tokenizer.Colon); ok {
		rt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		closure.AddChild(rt)
	}
	if kw.Kind == tokenizer.Fn {
		closure.AddFlags(ast.FlagArrow)
		if _, err := p.expect(tokenizer.DoubleArrow); err != nil {
			return nil, err
		}
		body, err := p.parseExpressionLevel(precAssignment)
		if err != nil {
			return nil, err
		}
		closure.AddChild(body)
	} else {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		closure.AddChild(body)
	}
	p.finish(closure, start)
	return closure, nil
}

func (p *fileParser) parseClosureUse(useTok tokenizer.Token) (*ast.Element, error) {
	use := p.element(ast.KindClosureUse, "")
	if _, err := p.expect(tokenizer.LParen); err != nil {
		return nil, err
	}
	for !p.check(tokenizer.RParen) {
		byRef := false
		if _, ok := p.accept(tokenizer.Ampersand); ok {
			byRef = true
		}
		v, err := p.expect(tokenizer.Variable)
		if err != nil {
			return nil, err
		}
		variable := p.leaf(ast.KindVariable, v)
		if byRef {
			variable.AddFlags(ast.FlagByReference)
		}
		use.AddChild(variable)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.RParen); err != nil {
		return nil, err
	}
	p.finish(use, startOf(useTok))
	return use, nil
}

func (p *fileParser) parseMatch() (*ast.Element, error) {
	start := startOf(p.next())
	match := p.element(ast.KindMatchExpression, "match")
	subject, err := p.parseParenthesized()
	if err != nil {
		return nil, err
	}
	match.AddChild(subject)
	if _, err := p.expect(tokenizer.LBrace); err != nil {
		return nil, err
	}
	for !p.check(tokenizer.RBrace) {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		match.AddChild(arm)
		if _, ok := p.accept(tokenizer.Comma); !ok {
			break
		}
	}
	if _, err := p.expect(tokenizer.RBrace); err != nil {
		return nil, err
	}
	p.finish(match, start)
	return match, nil
}

func (p *fileParser) parseMatchArm() (*ast.Element, error) {
	start := startOf(p.peek())
	arm := p.element(ast.KindMatchArm, "")
	if _, ok := p.accept(tokenizer.Default); ok {
		arm.AddFlags(ast.FlagDefault)
		p.accept(tokenizer.Comma)
	} else {
		for !p.check(tokenizer.DoubleArrow) {
			cond, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			arm.AddChild(cond)
			if _, ok := p.accept(tokenizer.Comma); !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokenizer.DoubleArrow); err != nil {
		return nil, err
	}
	result, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	arm.AddChild(result)
	p.finish(arm, start)
	return arm, nil
}
