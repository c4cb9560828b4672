package tokenizer

import (
	"fmt"
	"strings"
)

// Kind identifies the lexical class of a token.
type Kind int

const (
	EOF Kind = iota
	Unknown
	InlineHTML
	OpenTag
	OpenTagWithEcho
	CloseTag
	Whitespace
	Comment
	DocComment

	Variable
	Identifier
	IntegerLiteral
	FloatLiteral
	StringLiteral
	InterpolatedString
	ShellExec
	Heredoc
	Nowdoc

	CastInt
	CastFloat
	CastString
	CastBool
	CastArray
	CastObject
	CastUnset

	keywordStart
	Abstract
	And
	Array
	As
	Break
	Callable
	Case
	Catch
	Class
	Clone
	Const
	Continue
	Declare
	Default
	Do
	Echo
	Else
	ElseIf
	Empty
	EndDeclare
	EndFor
	EndForeach
	EndIf
	EndSwitch
	EndWhile
	Enum
	Eval
	Exit
	Extends
	Final
	Finally
	Fn
	For
	Foreach
	Function
	Global
	Goto
	If
	Implements
	Include
	IncludeOnce
	InstanceOf
	InsteadOf
	Interface
	Isset
	List
	Match
	Namespace
	New
	Or
	Print
	Private
	Protected
	Public
	Readonly
	Require
	RequireOnce
	Return
	Static
	Switch
	Throw
	Trait
	Try
	Unset
	Use
	Var
	While
	Xor
	Yield
	keywordEnd

	Semicolon
	Comma
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Dot
	Arrow
	NullsafeArrow
	DoubleArrow
	DoubleColon
	Backslash
	Question
	Colon
	Ellipsis
	Dollar
	At
	Tilde
	Not
	AttributeStart

	Assign
	PlusAssign
	MinusAssign
	MulAssign
	DivAssign
	ConcatAssign
	ModAssign
	PowAssign
	AndAssign
	OrAssign
	XorAssign
	ShlAssign
	ShrAssign
	CoalesceAssign

	Plus
	Minus
	Mul
	Div
	Mod
	Pow
	Inc
	Dec
	BooleanAnd
	BooleanOr
	Coalesce
	Ampersand
	Pipe
	Caret
	Shl
	Shr
	Equal
	NotEqual
	Identical
	NotIdentical
	Less
	LessEqual
	Greater
	GreaterEqual
	Spaceship
)

var keywords = map[string]Kind{
	"abstract":     Abstract,
	"and":          And,
	"array":        Array,
	"as":           As,
	"break":        Break,
	"callable":     Callable,
	"case":         Case,
	"catch":        Catch,
	"class":        Class,
	"clone":        Clone,
	"const":        Const,
	"continue":     Continue,
	"declare":      Declare,
	"default":      Default,
	"die":          Exit,
	"do":           Do,
	"echo":         Echo,
	"else":         Else,
	"elseif":       ElseIf,
	"empty":        Empty,
	"enddeclare":   EndDeclare,
	"endfor":       EndFor,
	"endforeach":   EndForeach,
	"endif":        EndIf,
	"endswitch":    EndSwitch,
	"endwhile":     EndWhile,
	"enum":         Enum,
	"eval":         Eval,
	"exit":         Exit,
	"extends":      Extends,
	"final":        Final,
	"finally":      Finally,
	"fn":           Fn,
	"for":          For,
	"foreach":      Foreach,
	"function":     Function,
	"global":       Global,
	"goto":         Goto,
	"if":           If,
	"implements":   Implements,
	"include":      Include,
	"include_once": IncludeOnce,
	"instanceof":   InstanceOf,
	"insteadof":    InsteadOf,
	"interface":    Interface,
	"isset":        Isset,
	"list":         List,
	"match":        Match,
	"namespace":    Namespace,
	"new":          New,
	"or":           Or,
	"print":        Print,
	"private":      Private,
	"protected":    Protected,
	"public":       Public,
	"readonly":     Readonly,
	"require":      Require,
	"require_once": RequireOnce,
	"return":       Return,
	"static":       Static,
	"switch":       Switch,
	"throw":        Throw,
	"trait":        Trait,
	"try":          Try,
	"unset":        Unset,
	"use":          Use,
	"var":          Var,
	"while":        While,
	"xor":          Xor,
	"yield":        Yield,
}

var casts = map[string]Kind{
	"int":     CastInt,
	"integer": CastInt,
	"bool":    CastBool,
	"boolean": CastBool,
	"float":   CastFloat,
	"double":  CastFloat,
	"real":    CastFloat,
	"string":  CastString,
	"binary":  CastString,
	"array":   CastArray,
	"object":  CastObject,
	"unset":   CastUnset,
}

// operators is ordered longest first so the scanner can take the first prefix match.
var operators = []struct {
	image string
	kind  Kind
}{
	{"<=>", Spaceship}, {"===", Identical}, {"!==", NotIdentical}, {"**=", PowAssign},
	{"...", Ellipsis}, {"<<=", ShlAssign}, {">>=", ShrAssign}, {"??=", CoalesceAssign},
	{"?->", NullsafeArrow},
	{"->", Arrow}, {"=>", DoubleArrow}, {"::", DoubleColon}, {"++", Inc}, {"--", Dec},
	{"+=", PlusAssign}, {"-=", MinusAssign}, {"*=", MulAssign}, {"/=", DivAssign},
	{".=", ConcatAssign}, {"%=", ModAssign}, {"&=", AndAssign}, {"|=", OrAssign},
	{"^=", XorAssign}, {"&&", BooleanAnd}, {"||", BooleanOr}, {"??", Coalesce},
	{"<<", Shl}, {">>", Shr}, {"==", Equal}, {"!=", NotEqual}, {"<>", NotEqual},
	{"<=", LessEqual}, {">=", GreaterEqual}, {"**", Pow}, {"#[", AttributeStart},
	{";", Semicolon}, {",", Comma}, {"(", LParen}, {")", RParen}, {"[", LBracket},
	{"]", RBracket}, {"{", LBrace}, {"}", RBrace}, {".", Dot}, {"\\", Backslash},
	{"?", Question}, {":", Colon}, {"$", Dollar}, {"@", At}, {"~", Tilde}, {"!", Not},
	{"=", Assign}, {"+", Plus}, {"-", Minus}, {"*", Mul}, {"/", Div}, {"%", Mod},
	{"&", Ampersand}, {"|", Pipe}, {"^", Caret}, {"<", Less}, {">", Greater},
}

var kindNames = map[Kind]string{
	EOF: "EOF", Unknown: "Unknown", InlineHTML: "InlineHTML", OpenTag: "OpenTag",
	OpenTagWithEcho: "OpenTagWithEcho", CloseTag: "CloseTag", Whitespace: "Whitespace",
	Comment: "Comment", DocComment: "DocComment", Variable: "Variable",
	Identifier: "Identifier", IntegerLiteral: "IntegerLiteral", FloatLiteral: "FloatLiteral",
	StringLiteral: "StringLiteral", InterpolatedString: "InterpolatedString",
	ShellExec: "ShellExec", Heredoc: "Heredoc", Nowdoc: "Nowdoc",
	CastInt: "CastInt", CastFloat: "CastFloat", CastString: "CastString",
	CastBool: "CastBool", CastArray: "CastArray", CastObject: "CastObject",
	CastUnset: "CastUnset",
}

func init() {
	for word, kind := range keywords {
		if _, ok := kindNames[kind]; !ok {
			kindNames[kind] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	kindNames[Exit] = "Exit"
	for _, op := range operators {
		if _, ok := kindNames[op.kind]; !ok {
			kindNames[op.kind] = "'" + op.image + "'"
		}
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword reports whether k is a reserved word. Reserved words are still
// valid member names after `->` and `::` and in declarations of methods.
func (k Kind) IsKeyword() bool {
	return k > keywordStart && k < keywordEnd
}

// IsTrivia reports whether the parser skips tokens of this kind.
func (k Kind) IsTrivia() bool {
	switch k {
	case Whitespace, Comment, DocComment, OpenTag:
		return true
	}
	return false
}

// IsCast reports whether k is a `(type)` cast.
func (k Kind) IsCast() bool {
	return k >= CastInt && k <= CastUnset
}

// Token is an immutable lexeme with its 1-based source span. End positions
// point at the last character of the image.
type Token struct {
	Kind        Kind   `json:"k"`
	Image       string `json:"i"`
	StartLine   int    `json:"sl"`
	StartColumn int    `json:"sc"`
	EndLine     int    `json:"el"`
	EndColumn   int    `json:"ec"`
}

func (t Token) Is(kinds ...Kind) bool {
	for _, k := range kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Image, t.StartLine, t.StartColumn)
}
