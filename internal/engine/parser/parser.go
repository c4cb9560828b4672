// # internal/engine/parser/parser.go
package parser

import (
	"github.com/tvbeek/pdepend/internal/engine/ast"
	"github.com/tvbeek/pdepend/internal/engine/builder"
	"github.com/tvbeek/pdepend/internal/engine/tokenizer"
	"log/slog"
)

// Parser turns token streams into compilation unit trees. Declarations are
// interned through the shared builder.
type Parser struct {
	builder  *builder.Builder
	tolerant bool
	logger   *slog.Logger
}

type Option func(*Parser)

// WithTolerant makes the parser skip broken statements and class members
// instead of aborting the file. Skipped errors are kept on the unit.
func WithTolerant(tolerant bool) Option {
	return func(p *Parser) { p.tolerant = tolerant }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

func New(b *builder.Builder, opts ...Option) *Parser {
	p := &Parser{builder: b, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseSource tokenizes src and parses it.
func (p *Parser) ParseSource(unitID, fileName string, src []byte) (*ast.CompilationUnit, error) {
	return p.Parse(unitID, fileName, tokenizer.Tokenize(src))
}

// Parse builds the tree for one file. In strict mode the first syntax error
// is returned and the unit is discarded together with every declaration it
// had already made in the builder.
func (p *Parser) Parse(unitID, fileName string, tokens []tokenizer.Token) (*ast.CompilationUnit, error) {
	sp := p.builder.Savepoint()
	fp := newFileParser(p, unitID, fileName, tokens)
	unit, err := fp.parseUnit()
	if err != nil {
		p.builder.Rollback(sp)
		p.logger.Debug("parse failed", "file", fileName, "error", err)
		return nil, err
	}
	if n := len(unit.Errors()); n > 0 {
		p.logger.Debug("parsed with recovered errors", "file", fileName, "errors", n)
	}
	return unit, nil
}

type fileParser struct {
	*Parser
	unit      *ast.CompilationUnit
	file      string
	tokens    []tokenizer.Token
	sig       []tokenizer.Token
	docs      []string
	pos       int
	prev      tokenizer.Token
	namespace string
	uses      map[string]string
	useFuncs  map[string]string
}

func newFileParser(p *Parser, unitID, fileName string, tokens []tokenizer.Token) *fileParser {
	fp := &fileParser{
		Parser: p,
		unit:   ast.NewCompilationUnit(unitID, fileName),
		file:   fileName,
		tokens: tokens,
	}
	fp.unit.SetTokens(tokens)
	doc := ""
	for _, tok := range tokens {
		switch {
		case tok.Kind == tokenizer.DocComment:
			doc = tok.Image
		case tok.Kind.IsTrivia():
		default:
			fp.sig = append(fp.sig, tok)
			fp.docs = append(fp.docs, doc)
			doc = ""
		}
	}
	fp.resetImports()
	return fp
}

func (p *fileParser) resetImports() {
	p.uses = make(map[string]string)
	p.useFuncs = make(map[string]string)
}

func (p *fileParser) parseUnit() (*ast.CompilationUnit, error) {
	if len(p.tokens) > 0 {
		first, last := p.tokens[0], p.tokens[len(p.tokens)-1]
		p.unit.SetPosition(ast.Position{
			StartLine:   first.StartLine,
			StartColumn: first.StartColumn,
			EndLine:     last.EndLine,
			EndColumn:   last.EndColumn,
		})
	}
	if err := p.parseStatementsUntil(p.unit, func() bool { return false }); err != nil {
		return nil, err
	}
	return p.unit, nil
}

// parseStatementsUntil parses statements into parent until stop reports true
// or the input ends. Tolerant mode records failures and resynchronizes.
func (p *fileParser) parseStatementsUntil(parent ast.Node, stop func() bool) error {
	for !p.eof() && !stop() {
		start := p.pos
		n, err := p.parseStatement()
		if err != nil {
			if !p.tolerant {
				return err
			}
			p.unit.AddError(err)
			p.synchronize(start)
			continue
		}
		if n != nil {
			parent.AddChild(n)
		}
	}
	return nil
}

// synchronize skips to the end of the broken statement: a ';' or the '}'
// closing the enclosing block.
func (p *fileParser) synchronize(start int) {
	depth := 0
	for !p.eof() {
		switch p.peek().Kind {
		case tokenizer.LBrace:
			depth++
		case tokenizer.RBrace:
			if depth == 0 {
				if p.pos == start {
					p.next()
				}
				return
			}
			depth--
			if depth == 0 {
				p.next()
				return
			}
		case tokenizer.Semicolon:
			if depth == 0 {
				p.next()
				return
			}
		}
		p.next()
	}
}

func (p *fileParser) eof() bool {
	return p.pos >= len(p.sig)
}

func (p *fileParser) peek() tokenizer.Token {
	return p.peekAt(0)
}

func (p *fileParser) peekAt(n int) tokenizer.Token {
	if p.pos+n < len(p.sig) {
		return p.sig[p.pos+n]
	}
	return tokenizer.Token{Kind: tokenizer.EOF, StartLine: p.prev.EndLine, StartColumn: p.prev.EndColumn}
}

func (p *fileParser) check(kinds ...tokenizer.Kind) bool {
	return p.peek().Is(kinds...)
}

func (p *fileParser) next() tokenizer.Token {
	tok := p.peek()
	if !p.eof() {
		p.prev = tok
		p.pos++
	}
	return tok
}

func (p *fileParser) accept(kind tokenizer.Kind) (tokenizer.Token, bool) {
	if p.check(kind) {
		return p.next(), true
	}
	return tokenizer.Token{}, false
}

func (p *fileParser) expect(kind tokenizer.Kind) (tokenizer.Token, error) {
	if p.check(kind) {
		return p.next(), nil
	}
	return tokenizer.Token{}, p.unexpected()
}

// unexpected reports the current token as a syntax error.
func (p *fileParser) unexpected() error {
	if p.eof() {
		return &TokenStreamEndError{File: p.file, Line: p.prev.EndLine, Column: p.prev.EndColumn}
	}
	tok := p.peek()
	return &UnexpectedTokenError{Image: tok.Image, File: p.file, Line: tok.StartLine, Column: tok.StartColumn}
}

// docComment returns the doc comment directly preceding the current token.
func (p *fileParser) docComment() string {
	if p.pos < len(p.docs) {
		return p.docs[p.pos]
	}
	return ""
}

func startOf(tok tokenizer.Token) ast.Position {
	return ast.Position{StartLine: tok.StartLine, StartColumn: tok.StartColumn}
}

// finish closes a node's span at the last consumed token.
func (p *fileParser) finish(n ast.Node, start ast.Position) {
	start.EndLine, start.EndColumn = p.prev.EndLine, p.prev.EndColumn
	n.SetPosition(start)
}

func (p *fileParser) element(kind ast.Kind, image string) *ast.Element {
	e := ast.NewElement(kind, image)
	e.SetID(p.unit.NextID())
	return e
}

// leaf builds an element spanning exactly one token.
func (p *fileParser) leaf(kind ast.Kind, tok tokenizer.Token) *ast.Element {
	e := p.element(kind, tok.Image)
	e.SetPosition(ast.Position{
		StartLine:   tok.StartLine,
		StartColumn: tok.StartColumn,
		EndLine:     tok.EndLine,
		EndColumn:   tok.EndColumn,
	})
	return e
}

// adopt registers an externally built node (references, declarations) with
// the unit's id sequence.
func (p *fileParser) adopt(n ast.Node) {
	n.SetID(p.unit.NextID())
}

// redeclare creates a duplicate declaration. Its id is drawn from this
// unit so duplicates in different files never share one.
func (p *fileParser) redeclare(kind ast.Kind, qualified string) (ast.Node, error) {
	n, err := p.builder.Redeclare(kind, qualified)
	if err != nil {
		return nil, err
	}
	n.SetID(n.ID() + "@" + p.unit.NextID())
	return n, nil
}

// isIdentifierLike accepts identifiers and reserved words, which PHP allows
// as member names.
func isIdentifierLike(tok tokenizer.Token) bool {
	return tok.Kind == tokenizer.Identifier || tok.Kind.IsKeyword()
}

func (p *fileParser) expectIdentifierLike() (tokenizer.Token, error) {
	if isIdentifierLike(p.peek()) {
		return p.next(), nil
	}
	return tokenizer.Token{}, p.unexpected()
}

// skipAttributes consumes `#[...]` groups.
func (p *fileParser) skipAttributes() error {
	for p.check(tokenizer.AttributeStart) {
		p.next()
		depth := 1
		for depth > 0 {
			if p.eof() {
				return p.unexpected()
			}
			switch p.next().Kind {
			case tokenizer.LBracket, tokenizer.AttributeStart:
				depth++
			case tokenizer.RBracket:
				depth--
			}
		}
	}
	return nil
}
