package ast

import "fmt"

// Kind tags every node. Artifact kinds belong to the dedicated node structs,
// the remaining kinds are carried by *Element.
type Kind int

const (
	KindInvalid Kind = iota

	KindCompilationUnit
	KindClass
	KindInterface
	KindTrait
	KindFunction
	KindMethod

	// statements
	KindScope
	KindStatement
	KindIfStatement
	KindElseIfStatement
	KindWhileStatement
	KindDoWhileStatement
	KindForStatement
	KindForInit
	KindForUpdate
	KindForeachStatement
	KindSwitchStatement
	KindSwitchLabel
	KindTryStatement
	KindCatchStatement
	KindFinallyStatement
	KindReturnStatement
	KindBreakStatement
	KindContinueStatement
	KindThrowStatement
	KindEchoStatement
	KindGlobalStatement
	KindStaticVariableDeclaration
	KindUnsetStatement
	KindGotoStatement
	KindLabelStatement
	KindDeclareStatement
	KindInlineHTML
	KindConstantDefinition
	KindConstantDeclarator
	KindFieldDeclaration
	KindVariableDeclarator
	KindTraitUseStatement
	KindTraitAdaptation
	KindTraitAdaptationAlias
	KindTraitAdaptationPrecedence
	KindEnumCase

	// expressions
	KindExpression
	KindAssignmentExpression
	KindBooleanAndExpression
	KindBooleanOrExpression
	KindLogicalAndExpression
	KindLogicalOrExpression
	KindLogicalXorExpression
	KindConditionalExpression
	KindBinaryExpression
	KindUnaryExpression
	KindCastExpression
	KindIncrementExpression
	KindInstanceOfExpression
	KindCloneExpression
	KindAllocationExpression
	KindPrintExpression
	KindIncludeExpression
	KindRequireExpression
	KindEvalExpression
	KindExitExpression
	KindIssetExpression
	KindEmptyExpression
	KindListExpression
	KindArray
	KindArrayElement
	KindClosure
	KindClosureUse
	KindMatchExpression
	KindMatchArm
	KindYieldExpression
	KindThrowExpression
	KindShellExec

	// primaries and postfixes
	KindVariable
	KindVariableVariable
	KindCompoundVariable
	KindLiteral
	KindStringLiteral
	KindConstant
	KindIdentifier
	KindMemberPrimaryPrefix
	KindPropertyPostfix
	KindMethodPostfix
	KindFunctionPostfix
	KindConstantPostfix
	KindArguments
	KindArrayIndexExpression
	KindStringIndexExpression

	// references
	KindClassReference
	KindClassOrInterfaceReference
	KindTraitReference
	KindParentReference
	KindSelfReference
	KindStaticReference

	// types
	KindFormalParameters
	KindFormalParameter
	KindScalarType
	KindTypeArray
	KindTypeCallable
	KindTypeIterable
	KindUnionType
	KindIntersectionType
)

var kindNames = map[Kind]string{
	KindInvalid:                   "Invalid",
	KindCompilationUnit:           "CompilationUnit",
	KindClass:                     "Class",
	KindInterface:                 "Interface",
	KindTrait:                     "Trait",
	KindFunction:                  "Function",
	KindMethod:                    "Method",
	KindScope:                     "Scope",
	KindStatement:                 "Statement",
	KindIfStatement:               "IfStatement",
	KindElseIfStatement:           "ElseIfStatement",
	KindWhileStatement:            "WhileStatement",
	KindDoWhileStatement:          "DoWhileStatement",
	KindForStatement:              "ForStatement",
	KindForInit:                   "ForInit",
	KindForUpdate:                 "ForUpdate",
	KindForeachStatement:          "ForeachStatement",
	KindSwitchStatement:           "SwitchStatement",
	KindSwitchLabel:               "SwitchLabel",
	KindTryStatement:              "TryStatement",
	KindCatchStatement:            "CatchStatement",
	KindFinallyStatement:          "FinallyStatement",
	KindReturnStatement:           "ReturnStatement",
	KindBreakStatement:            "BreakStatement",
	KindContinueStatement:         "ContinueStatement",
	KindThrowStatement:            "ThrowStatement",
	KindEchoStatement:             "EchoStatement",
	KindGlobalStatement:           "GlobalStatement",
	KindStaticVariableDeclaration: "StaticVariableDeclaration",
	KindUnsetStatement:            "UnsetStatement",
	KindGotoStatement:             "GotoStatement",
	KindLabelStatement:            "LabelStatement",
	KindDeclareStatement:          "DeclareStatement",
	KindInlineHTML:                "InlineHTML",
	KindConstantDefinition:        "ConstantDefinition",
	KindConstantDeclarator:        "ConstantDeclarator",
	KindFieldDeclaration:          "FieldDeclaration",
	KindVariableDeclarator:        "VariableDeclarator",
	KindTraitUseStatement:         "TraitUseStatement",
	KindTraitAdaptation:           "TraitAdaptation",
	KindTraitAdaptationAlias:      "TraitAdaptationAlias",
	KindTraitAdaptationPrecedence: "TraitAdaptationPrecedence",
	KindEnumCase:                  "EnumCase",
	KindExpression:                "Expression",
	KindAssignmentExpression:      "AssignmentExpression",
	KindBooleanAndExpression:      "BooleanAndExpression",
	KindBooleanOrExpression:       "BooleanOrExpression",
	KindLogicalAndExpression:      "LogicalAndExpression",
	KindLogicalOrExpression:       "LogicalOrExpression",
	KindLogicalXorExpression:      "LogicalXorExpression",
	KindConditionalExpression:     "ConditionalExpression",
	KindBinaryExpression:          "BinaryExpression",
	KindUnaryExpression:           "UnaryExpression",
	KindCastExpression:            "CastExpression",
	KindIncrementExpression:       "IncrementExpression",
	KindInstanceOfExpression:      "InstanceOfExpression",
	KindCloneExpression:           "CloneExpression",
	KindAllocationExpression:      "AllocationExpression",
	KindPrintExpression:           "PrintExpression",
	KindIncludeExpression:         "IncludeExpression",
	KindRequireExpression:         "RequireExpression",
	KindEvalExpression:            "EvalExpression",
	KindExitExpression:            "ExitExpression",
	KindIssetExpression:           "IssetExpression",
	KindEmptyExpression:           "EmptyExpression",
	KindListExpression:            "ListExpression",
	KindArray:                     "Array",
	KindArrayElement:              "ArrayElement",
	KindClosure:                   "Closure",
	KindClosureUse:                "ClosureUse",
	KindMatchExpression:           "MatchExpression",
	KindMatchArm:                  "MatchArm",
	KindYieldExpression:           "YieldExpression",
	KindThrowExpression:           "ThrowExpression",
	KindShellExec:                 "ShellExec",
	KindVariable:                  "Variable",
	KindVariableVariable:          "VariableVariable",
	KindCompoundVariable:          "CompoundVariable",
	KindLiteral:                   "Literal",
	KindStringLiteral:             "StringLiteral",
	KindConstant:                  "Constant",
	KindIdentifier:                "Identifier",
	KindMemberPrimaryPrefix:       "MemberPrimaryPrefix",
	KindPropertyPostfix:           "PropertyPostfix",
	KindMethodPostfix:             "MethodPostfix",
	KindFunctionPostfix:           "FunctionPostfix",
	KindConstantPostfix:           "ConstantPostfix",
	KindArguments:                 "Arguments",
	KindArrayIndexExpression:      "ArrayIndexExpression",
	KindStringIndexExpression:     "StringIndexExpression",
	KindClassReference:            "ClassReference",
	KindClassOrInterfaceReference: "ClassOrInterfaceReference",
	KindTraitReference:            "TraitReference",
	KindParentReference:           "ParentReference",
	KindSelfReference:             "SelfReference",
	KindStaticReference:           "StaticReference",
	KindFormalParameters:          "FormalParameters",
	KindFormalParameter:           "FormalParameter",
	KindScalarType:                "ScalarType",
	KindTypeArray:                 "TypeArray",
	KindTypeCallable:              "TypeCallable",
	KindTypeIterable:              "TypeIterable",
	KindUnionType:                 "UnionType",
	KindIntersectionType:          "IntersectionType",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsReference reports whether elements of this kind resolve to a type.
func (k Kind) IsReference() bool {
	return k >= KindClassReference && k <= KindStaticReference
}

// IsType reports whether elements of this kind describe a declared type.
func (k Kind) IsType() bool {
	switch k {
	case KindScalarType, KindTypeArray, KindTypeCallable, KindTypeIterable,
		KindUnionType, KindIntersectionType, KindClassOrInterfaceReference,
		KindSelfReference, KindParentReference, KindStaticReference:
		return true
	}
	return false
}

// Flags is a bitset of modifiers and syntactic variants.
type Flags uint32

const (
	FlagAbstract Flags = 1 << iota
	FlagFinal
	FlagStatic
	FlagPublic
	FlagProtected
	FlagPrivate
	FlagReadonly
	FlagByReference
	FlagVariadic
	FlagElvis
	FlagHasElse
	FlagDefault
	FlagOnce
	FlagNullable
	FlagAlternative
	FlagPostfix
	FlagNullsafe
	FlagArrow
	FlagEnum
	FlagPromoted
	FlagInterpolated
	FlagOptional
)

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}
