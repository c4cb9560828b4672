package tokenizer

import (
	"bytes"
	"iter"
	"strings"
)

// State captures a scanner position so scanning can restart from it.
type State struct {
	pos  int
	line int
	col  int
	php  bool
}

// Tokenizer lazily splits PHP source into tokens. Every input byte belongs to
// exactly one token.
type Tokenizer struct {
	src      []byte
	pos      int
	line     int
	col      int
	php      bool
	lastLine int
	lastCol  int
}

func NewTokenizer(src []byte) *Tokenizer {
	return &Tokenizer{src: src, line: 1, col: 1}
}

// Tokenize scans src completely. The trailing EOF token is not included.
func Tokenize(src []byte) []Token {
	t := NewTokenizer(src)
	var out []Token
	for tok := range t.All() {
		out = append(out, tok)
	}
	return out
}

func (t *Tokenizer) Mark() State {
	return State{pos: t.pos, line: t.line, col: t.col, php: t.php}
}

func (t *Tokenizer) Reset(s State) {
	t.pos, t.line, t.col, t.php = s.pos, s.line, s.col, s.php
}

func (t *Tokenizer) Peek() Token {
	s := t.Mark()
	tok := t.Next()
	t.Reset(s)
	return tok
}

// All yields the remaining tokens up to, but excluding, EOF.
func (t *Tokenizer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for {
			tok := t.Next()
			if tok.Kind == EOF || !yield(tok) {
				return
			}
		}
	}
}

// Next scans one token. At the end of input it keeps returning EOF.
func (t *Tokenizer) Next() Token {
	if t.pos >= len(t.src) {
		return Token{Kind: EOF, StartLine: t.line, StartColumn: t.col, EndLine: t.line, EndColumn: t.col}
	}
	start := t.Mark()
	kind := t.scan()
	return t.emit(kind, start)
}

func (t *Tokenizer) emit(kind Kind, start State) Token {
	return Token{
		Kind:        kind,
		Image:       string(t.src[start.pos:t.pos]),
		StartLine:   start.line,
		StartColumn: start.col,
		EndLine:     t.lastLine,
		EndColumn:   t.lastCol,
	}
}

func (t *Tokenizer) advance(n int) {
	for i := 0; i < n && t.pos < len(t.src); i++ {
		b := t.src[t.pos]
		t.pos++
		if b&0xC0 == 0x80 {
			t.lastLine, t.lastCol = t.line, t.col-1
			continue
		}
		t.lastLine, t.lastCol = t.line, t.col
		switch b {
		case '\n':
			t.line++
			t.col = 1
		case '\r':
			if t.pos < len(t.src) && t.src[t.pos] == '\n' {
				t.col++
			} else {
				t.line++
				t.col = 1
			}
		default:
			t.col++
		}
	}
}

func (t *Tokenizer) advanceTo(pos int) {
	if pos > len(t.src) {
		pos = len(t.src)
	}
	t.advance(pos - t.pos)
}

func (t *Tokenizer) rest() []byte {
	return t.src[t.pos:]
}

func (t *Tokenizer) at(i int) byte {
	if t.pos+i < len(t.src) {
		return t.src[t.pos+i]
	}
	return 0
}

func (t *Tokenizer) scan() Kind {
	if !t.php {
		return t.scanInline()
	}
	c := t.at(0)
	switch {
	case isSpace(c):
		i := t.pos
		for i < len(t.src) && isSpace(t.src[i]) {
			i++
		}
		t.advanceTo(i)
		return Whitespace
	case c == '?' && t.at(1) == '>':
		t.advance(2)
		if t.at(0) == '\n' {
			t.advance(1)
		} else if t.at(0) == '\r' && t.at(1) == '\n' {
			t.advance(2)
		}
		t.php = false
		return CloseTag
	case c == '#' && t.at(1) == '[':
		t.advance(2)
		return AttributeStart
	case c == '#' || (c == '/' && t.at(1) == '/'):
		t.scanLineComment()
		return Comment
	case c == '/' && t.at(1) == '*':
		return t.scanBlockComment()
	case c == '$' && isIdentStart(t.at(1)):
		t.advance(1)
		t.scanIdent()
		return Variable
	case isIdentStart(c):
		word := t.scanIdent()
		if kind, ok := keywords[strings.ToLower(word)]; ok {
			return kind
		}
		return Identifier
	case isDigit(c) || (c == '.' && isDigit(t.at(1))):
		return t.scanNumber()
	case c == '\'':
		t.advanceTo(t.scanQuoted(t.pos, '\''))
		return StringLiteral
	case c == '"':
		end, interpolated := t.scanInterpolated(t.pos, '"')
		t.advanceTo(end)
		if interpolated {
			return InterpolatedString
		}
		return StringLiteral
	case c == '`':
		end, _ := t.scanInterpolated(t.pos, '`')
		t.advanceTo(end)
		return ShellExec
	case c == '<' && bytes.HasPrefix(t.rest(), []byte("<<<")):
		if kind, ok := t.scanHeredoc(); ok {
			return kind
		}
	case c == '(':
		if kind, end, ok := t.scanCast(); ok {
			t.advanceTo(end)
			return kind
		}
	}
	rest := t.rest()
	for _, op := range operators {
		if bytes.HasPrefix(rest, []byte(op.image)) {
			t.advance(len(op.image))
			return op.kind
		}
	}
	t.advance(1)
	return Unknown
}

func (t *Tokenizer) scanInline() Kind {
	rest := t.rest()
	if k, n := openTagAt(rest); n > 0 {
		t.advance(n)
		t.php = true
		return k
	}
	for i := 1; i < len(rest); i++ {
		if rest[i] == '<' {
			if _, n := openTagAt(rest[i:]); n > 0 {
				t.advance(i)
				return InlineHTML
			}
		}
	}
	t.advance(len(rest))
	return InlineHTML
}

func openTagAt(b []byte) (Kind, int) {
	if bytes.HasPrefix(b, []byte("<?=")) {
		return OpenTagWithEcho, 3
	}
	if len(b) >= 5 && strings.EqualFold(string(b[:5]), "<?php") {
		if len(b) == 5 || isSpace(b[5]) {
			return OpenTag, 5
		}
	}
	return EOF, 0
}

func (t *Tokenizer) scanLineComment() {
	i := t.pos
	for i < len(t.src) {
		c := t.src[i]
		if c == '\n' || c == '\r' {
			break
		}
		if c == '?' && i+1 < len(t.src) && t.src[i+1] == '>' {
			break
		}
		i++
	}
	t.advanceTo(i)
}

func (t *Tokenizer) scanBlockComment() Kind {
	kind := Comment
	if t.at(2) == '*' && isSpace(t.at(3)) {
		kind = DocComment
	}
	end := bytes.Index(t.src[t.pos+2:], []byte("*/"))
	if end < 0 {
		t.advanceTo(len(t.src))
		return kind
	}
	t.advanceTo(t.pos + 2 + end + 2)
	return kind
}

func (t *Tokenizer) scanIdent() string {
	i := t.pos
	for i < len(t.src) && isIdentPart(t.src[i]) {
		i++
	}
	word := string(t.src[t.pos:i])
	t.advanceTo(i)
	return word
}

func (t *Tokenizer) scanNumber() Kind {
	i := t.pos
	src := t.src
	if src[i] == '0' && i+1 < len(src) {
		switch src[i+1] {
		case 'x', 'X':
			i += 2
			for i < len(src) && (isHex(src[i]) || src[i] == '_') {
				i++
			}
			t.advanceTo(i)
			return IntegerLiteral
		case 'b', 'B':
			i += 2
			for i < len(src) && (src[i] == '0' || src[i] == '1' || src[i] == '_') {
				i++
			}
			t.advanceTo(i)
			return IntegerLiteral
		case 'o', 'O':
			i += 2
			for i < len(src) && ((src[i] >= '0' && src[i] <= '7') || src[i] == '_') {
				i++
			}
			t.advanceTo(i)
			return IntegerLiteral
		}
	}
	kind := IntegerLiteral
	for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
		i++
	}
	if i < len(src) && src[i] == '.' && i+1 < len(src) && isDigit(src[i+1]) {
		kind = FloatLiteral
		i++
		for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			kind = FloatLiteral
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	t.advanceTo(i)
	return kind
}

// scanQuoted returns the offset after the closing quote, or len(src) when the
// literal is unterminated.
func (t *Tokenizer) scanQuoted(from int, quote byte) int {
	i := from + 1
	for i < len(t.src) {
		switch t.src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		}
		i++
	}
	return len(t.src)
}

func (t *Tokenizer) scanInterpolated(from int, quote byte) (int, bool) {
	interpolated := false
	i := from + 1
	for i < len(t.src) {
		c := t.src[i]
		switch {
		case c == '\\':
			i += 2
			continue
		case c == quote:
			return i + 1, interpolated
		case c == '$' && (isIdentStart(at(t.src, i+1)) || at(t.src, i+1) == '{'):
			interpolated = true
			if at(t.src, i+1) == '{' {
				i = t.skipBraces(i + 1)
				continue
			}
		case c == '{' && at(t.src, i+1) == '$':
			interpolated = true
			i = t.skipBraces(i)
			continue
		}
		i++
	}
	return len(t.src), interpolated
}

func (t *Tokenizer) skipBraces(from int) int {
	depth := 0
	i := from
	for i < len(t.src) {
		switch c := t.src[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '\'', '"':
			i = t.scanQuoted(i, c)
			continue
		}
		i++
	}
	return len(t.src)
}

func (t *Tokenizer) scanHeredoc() (Kind, bool) {
	src := t.src
	i := t.pos + 3
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	kind := Heredoc
	var quote byte
	if i < len(src) && (src[i] == '\'' || src[i] == '"') {
		quote = src[i]
		if quote == '\'' {
			kind = Nowdoc
		}
		i++
	}
	if i >= len(src) || !isIdentStart(src[i]) {
		return EOF, false
	}
	labelStart := i
	for i < len(src) && isIdentPart(src[i]) {
		i++
	}
	label := src[labelStart:i]
	if quote != 0 {
		if i >= len(src) || src[i] != quote {
			return EOF, false
		}
		i++
	}
	switch {
	case i < len(src) && src[i] == '\n':
		i++
	case i+1 < len(src) && src[i] == '\r' && src[i+1] == '\n':
		i += 2
	default:
		return EOF, false
	}
	for i < len(src) {
		j := i
		for j < len(src) && (src[j] == ' ' || src[j] == '\t') {
			j++
		}
		if bytes.HasPrefix(src[j:], label) && !isIdentPart(at(src, j+len(label))) {
			t.advanceTo(j + len(label))
			return kind, true
		}
		nl := bytes.IndexByte(src[i:], '\n')
		if nl < 0 {
			break
		}
		i += nl + 1
	}
	t.advanceTo(len(src))
	return kind, true
}

func (t *Tokenizer) scanCast() (Kind, int, bool) {
	i := t.pos + 1
	for i < len(t.src) && (t.src[i] == ' ' || t.src[i] == '\t') {
		i++
	}
	start := i
	for i < len(t.src) && isLetter(t.src[i]) {
		i++
	}
	word := strings.ToLower(string(t.src[start:i]))
	for i < len(t.src) && (t.src[i] == ' ' || t.src[i] == '\t') {
		i++
	}
	if i >= len(t.src) || t.src[i] != ')' {
		return EOF, 0, false
	}
	kind, ok := casts[word]
	return kind, i + 1, ok
}

func at(b []byte, i int) byte {
	if i < len(b) {
		return b[i]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func isIdentStart(c byte) bool { return isLetter(c) || c == '_' || c >= 0x80 }

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
