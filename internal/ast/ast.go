// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ast defines the typed abstract syntax tree produced by the
// parser. Node variants are modeled as a closed sum type via the Node
// interface plus exhaustive type switches, rather than an inheritance
// hierarchy: each concrete struct carries its own fields and a
// Pos() for diagnostics.
package ast

import "github.com/minic-lang/minic/internal/types"

// Position is the source location a node originates from.
type Position struct {
	Line   int
	Column int
}

// Node is implemented by every AST variant.
type Node interface {
	Pos() Position
	node()
}

// Stmt is implemented by every statement variant.
type Stmt interface {
	Node
	stmt()
}

// Expr is implemented by every expression variant.
type Expr interface {
	Node
	expr()
}

type Base struct{ Position }

func (b Base) Pos() Position { return b.Position }
func (Base) node()           {}

// TypeSpecifier names a declared type: a base spelling plus pointer
// depth, as written in source (before struct-shape resolution).
type TypeSpecifier struct {
	Base
	BaseName     string
	PointerCount int
	StructName   string // set when BaseName == "struct"
}

// Program is the root of the tree: an ordered sequence of top-level
// declarations and function definitions.
type Program struct {
	Base
	Declarations []Node
}

// Parameter is one entry in a function's parameter list.
type Parameter struct {
	Base
	Name string
	Type TypeSpecifier
}

// FunctionDecl is both a prototype (Body == nil) and a definition
// (Body != nil).
type FunctionDecl struct {
	Base
	Name       string
	ReturnType TypeSpecifier
	Params     []Parameter
	Variadic   bool
	Body       *CompoundStmt
}

func (*FunctionDecl) stmt() {}

// StructMember is one field of a struct type definition.
type StructMember struct {
	Name string
	Type TypeSpecifier
}

// StructDecl declares (and optionally defines the shape of) a struct
// type, with optional trailing variable declarations of that type.
type StructDecl struct {
	Base
	Name    string
	Members []StructMember // nil for a forward/opaque reference
	Vars    []Declaration   // "struct Name { ... } a, b;"
}

func (*StructDecl) stmt() {}

// Declaration declares a local or global variable, with an optional
// initializer.
type Declaration struct {
	Base
	Name        string
	Type        TypeSpecifier
	Initializer Expr // nil if none
	IsGlobal    bool
}

func (*Declaration) stmt() {}

// CompoundStmt is a `{ ... }` block. Each compound statement
// introduces its own lexical scope.
type CompoundStmt struct {
	Base
	Statements []Stmt
}

func (*CompoundStmt) stmt() {}

// IfStmt is `if (Cond) Then [else Else]`.
type IfStmt struct {
	Base
	Cond Expr
	Then Stmt
	Else Stmt // nil if no else-branch
}

func (*IfStmt) stmt() {}

// WhileStmt is `while (Cond) Body`.
type WhileStmt struct {
	Base
	Cond Expr
	Body Stmt
}

func (*WhileStmt) stmt() {}

// ForStmt is `for (Init; Cond; Post) Body`. Init may be a Declaration
// or an ExpressionStmt; any of Init/Cond/Post may be nil.
func (*ForStmt) stmt() {}

type ForStmt struct {
	Base
	Init Stmt
	Cond Expr
	Post Stmt
	Body Stmt
}

// ReturnStmt is `return [Value];`.
type ReturnStmt struct {
	Base
	Value Expr // nil for bare `return;`
}

func (*ReturnStmt) stmt() {}

// BreakStmt is `break;`.
type BreakStmt struct{ Base }

func (*BreakStmt) stmt() {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{ Base }

func (*ContinueStmt) stmt() {}

// ExpressionStmt is a bare expression used as a statement.
type ExpressionStmt struct {
	Base
	X Expr
}

func (*ExpressionStmt) stmt() {}

// AsmStatement is a tolerated `asm(...)` statement; its contents are
// kept verbatim but never lowered.
type AsmStatement struct {
	Base
	Text string
}

func (*AsmStatement) stmt() {}

// Attribute is a tolerated opaque top-level call like
// `EXPORT_SYMBOL(name);` or a bare attribute identifier such as
// `__init`, kept so kernel-style input parses without loss.
type Attribute struct {
	Base
	Name string
	Args []string
}

func (*Attribute) stmt() {}

// Identifier is a name reference.
type Identifier struct {
	Base
	Name string
}

func (*Identifier) expr() {}

// NumberLiteral is a numeric constant, spelled exactly as lexed
// (suffix included) for later type classification.
type NumberLiteral struct {
	Base
	Lexeme string
}

func (*NumberLiteral) expr() {}

// StringLiteral is a string constant, quotes included.
type StringLiteral struct {
	Base
	Lexeme string
}

func (*StringLiteral) expr() {}

// CharLiteral is a character constant, quotes included.
type CharLiteral struct {
	Base
	Lexeme string
}

func (*CharLiteral) expr() {}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd // &&
	OpOr  // ||
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

// Binary is a binary expression `X Op Y`.
type Binary struct {
	Base
	Op   BinaryOp
	X, Y Expr
}

func (*Binary) expr() {}

// UnaryOp enumerates prefix unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota // -x
	OpNot                // !x
	OpAddr               // &x
	OpDeref              // *x
)

// Unary is a prefix unary expression.
type Unary struct {
	Base
	Op UnaryOp
	X  Expr
}

func (*Unary) expr() {}

// Assignment is `Target = Value`. Target is restricted to
// *Identifier, *MemberAccess, or *ArrayAccess by construction: the
// parser never produces any other concrete type here.
type Assignment struct {
	Base
	Target Expr
	Value  Expr
}

func (*Assignment) expr() {}

// Call is a function call `Callee(Args...)`.
type Call struct {
	Base
	Callee string
	Args   []Expr
}

func (*Call) expr() {}

// MemberAccess is `X.Member` (the parser also accepts `X->Member` and
// folds it to the same node with Arrow set).
type MemberAccess struct {
	Base
	X      Expr
	Member string
	Arrow  bool
}

func (*MemberAccess) expr() {}

// ArrayAccess is `X[Index]`.
type ArrayAccess struct {
	Base
	X     Expr
	Index Expr
}

func (*ArrayAccess) expr() {}

// Sizeof is `sizeof(Type)` or `sizeof Expr`.
type Sizeof struct {
	Base
	Type *TypeSpecifier // set when sizeof(Type)
	X    Expr           // set when sizeof expr
}

func (*Sizeof) expr() {}

// Cast is `(Type) X`.
type Cast struct {
	Base
	Type TypeSpecifier
	X    Expr
}

func (*Cast) expr() {}

// ToType converts a parsed TypeSpecifier into the analyzer's Type.
func (ts TypeSpecifier) ToType() types.Type {
	var b types.Base
	switch ts.BaseName {
	case "int":
		b = types.INT
	case "char":
		b = types.CHAR
	case "void":
		b = types.VOID
	case "long":
		b = types.LONG
	case "short":
		b = types.INT
	case "unsigned", "signed":
		b = types.INT
	case "float":
		b = types.FLOAT
	case "double":
		b = types.DOUBLE
	case "struct":
		b = types.STRUCT
	default:
		b = types.INT
	}
	return types.Type{Base: b, PointerCount: ts.PointerCount, StructName: ts.StructName}
}

// NewPosition is a convenience constructor used by the parser.
func NewPosition(line, col int) Position { return Position{Line: line, Column: col} }

// NewBase is used by the parser to stamp node positions.
func NewBase(pos Position) Base { return Base{pos} }
