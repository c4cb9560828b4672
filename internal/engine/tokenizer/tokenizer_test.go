package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []Kind {
	out := make([]Kind, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind == Whitespace {
			continue
		}
		out = append(out, tok.Kind)
	}
	return out
}

func TestTokenizeCoversEveryByte(t *testing.T) {
	src := `<html><?php
namespace Foo\Bar;
/** doc */
final class Baz extends \Base implements I {
    public function run(int $a = 0x1F, ...$rest): ?string {
        $x = $a <=> 2.5e3 ?? "v{$rest["k"]}" . 'q\'s';
        $y ??= ` + "`ls`" + `;
        return $this?->name . <<<EOT
  body $x
  EOT;
    }
}
?>
tail`
	tokens := Tokenize([]byte(src))
	var sb strings.Builder
	for _, tok := range tokens {
		sb.WriteString(tok.Image)
		assert.NotEqual(t, Unknown, tok.Kind, "unexpected unknown token %v", tok)
	}
	assert.Equal(t, src, sb.String())
}

func TestTokenPositions(t *testing.T) {
	tokens := Tokenize([]byte("<?php\n$a = 1;\n"))
	require.Len(t, tokens, 9)

	assert.Equal(t, Token{Kind: OpenTag, Image: "<?php", StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 5}, tokens[0])
	assert.Equal(t, Token{Kind: Variable, Image: "$a", StartLine: 2, StartColumn: 1, EndLine: 2, EndColumn: 2}, tokens[2])
	assert.Equal(t, Token{Kind: IntegerLiteral, Image: "1", StartLine: 2, StartColumn: 6, EndLine: 2, EndColumn: 6}, tokens[6])
	assert.Equal(t, Token{Kind: Semicolon, Image: ";", StartLine: 2, StartColumn: 7, EndLine: 2, EndColumn: 7}, tokens[7])
}

func TestMultiLineTokenEnd(t *testing.T) {
	tokens := Tokenize([]byte("<?php /* a\nbb */ $x"))
	require.Len(t, tokens, 5)
	comment := tokens[2]
	assert.Equal(t, Comment, comment.Kind)
	assert.Equal(t, 1, comment.StartLine)
	assert.Equal(t, 7, comment.StartColumn)
	assert.Equal(t, 2, comment.EndLine)
	assert.Equal(t, 5, comment.EndColumn)
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	tokens := Tokenize([]byte("<?php CLASS Foo EXTENDS Bar {} Function fOo() {}"))
	assert.Equal(t, []Kind{OpenTag, Class, Identifier, Extends, Identifier, LBrace, RBrace,
		Function, Identifier, LParen, RParen, LBrace, RBrace}, kinds(tokens))
}

func TestCastsAndOperators(t *testing.T) {
	tokens := Tokenize([]byte("<?php (int) $a; ( string )$b; ($c); $d ??= $e?->f <=> $g ** 2;"))
	assert.Equal(t, []Kind{OpenTag,
		CastInt, Variable, Semicolon,
		CastString, Variable, Semicolon,
		LParen, Variable, RParen, Semicolon,
		Variable, CoalesceAssign, Variable, NullsafeArrow, Identifier, Spaceship, Variable, Pow, IntegerLiteral, Semicolon,
	}, kinds(tokens))
}

func TestStringsAndHeredoc(t *testing.T) {
	src := "<?php $a = \"x {$b[\"c\"]} y\"; $n = <<<'RAW'\nno $vars\nRAW;\n$h = <<<EOT\n  hi {$name}\n  EOT;"
	tokens := Tokenize([]byte(src))
	var strs []Token
	for _, tok := range tokens {
		if tok.Is(InterpolatedString, Nowdoc, Heredoc, StringLiteral) {
			strs = append(strs, tok)
		}
	}
	require.Len(t, strs, 3)
	assert.Equal(t, InterpolatedString, strs[0].Kind)
	assert.Equal(t, `"x {$b["c"]} y"`, strs[0].Image)
	assert.Equal(t, Nowdoc, strs[1].Kind)
	assert.Equal(t, "<<<'RAW'\nno $vars\nRAW", strs[1].Image)
	assert.Equal(t, Heredoc, strs[2].Kind)
	assert.Equal(t, 4, strs[2].StartLine)
	assert.Equal(t, 6, strs[2].EndLine)
}

func TestCommentsAndDocComments(t *testing.T) {
	tokens := Tokenize([]byte("<?php /** doc */ /**/ /* c */ // line\n# hash\n#[Attr]"))
	assert.Equal(t, []Kind{OpenTag, DocComment, Comment, Comment, Comment, Comment, AttributeStart, Identifier, RBracket}, kinds(tokens))
}

func TestInlineHTMLAndTags(t *testing.T) {
	tokens := Tokenize([]byte("<h1>x</h1><?php echo 1; ?>\n<p><?= $v ?>"))
	assert.Equal(t, []Kind{InlineHTML, OpenTag, Echo, IntegerLiteral, Semicolon, CloseTag, InlineHTML,
		OpenTagWithEcho, Variable, CloseTag}, kinds(tokens))
	assert.Equal(t, "?>\n", tokens[8].Image)
}

func TestNumbers(t *testing.T) {
	tokens := Tokenize([]byte("<?php 1_000 0b101 0o17 0xFF .5 1.25 3e8 7E-2 $a[0].$b"))
	assert.Equal(t, []Kind{OpenTag, IntegerLiteral, IntegerLiteral, IntegerLiteral, IntegerLiteral,
		FloatLiteral, FloatLiteral, FloatLiteral, FloatLiteral,
		Variable, LBracket, IntegerLiteral, RBracket, Dot, Variable}, kinds(tokens))
}

func TestMarkAndReset(t *testing.T) {
	tz := NewTokenizer([]byte("<?php foo(); bar();"))
	tz.Next()
	tz.Next()
	mark := tz.Mark()
	peeked := tz.Peek()
	first := tz.Next()
	assert.Equal(t, peeked, first)
	tz.Next()
	tz.Reset(mark)
	assert.Equal(t, first, tz.Next())

	for range tz.All() {
	}
	assert.Equal(t, EOF, tz.Next().Kind)
	assert.Equal(t, EOF, tz.Next().Kind)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tokens := Tokenize([]byte("<?php\nclass A { function b() { return $c ?: 1; } }\n"))
	data, err := Encode(tokens)
	require.NoError(t, err)
	restored, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, tokens, restored)

	_, err = Decode([]byte("{broken"))
	assert.Error(t, err)
}
