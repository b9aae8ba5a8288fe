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

// Package sema validates an AST: it maintains a scoped symbol table
// and a function signature registry, and collects diagnostics into a
// batch rather than failing fast, so a single run surfaces every type
// error it can find.
package sema

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/minic-lang/minic/internal/ast"
	"github.com/minic-lang/minic/internal/types"
)

// Diagnostic is one collected semantic error.
type Diagnostic struct {
	Message string
	Line    int
	Column  int
	Node    ast.Node
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// Builtin describes a pre-registered compiler intrinsic the analyzer
// accepts without a matching source declaration.
type Builtin struct {
	Name       string
	Params     []types.Type
	ReturnType types.Type
	Variadic   bool
}

// Builtins lists the compiler intrinsics and small C-library helpers
// programs in the corpus commonly assume are available, so input
// using them still passes typechecking. Data, not code, per the
// teacher's own const-map idiom (supportedTypes, neon128Types, ...).
var Builtins = []Builtin{
	{Name: "__builtin_expect", Params: []types.Type{types.Long, types.Long}, ReturnType: types.Long},
	{Name: "__builtin_memcpy", Params: []types.Type{types.Void.Pointer(), types.Void.Pointer(), types.Long}, ReturnType: types.Void.Pointer()},
	{Name: "__builtin_memset", Params: []types.Type{types.Void.Pointer(), types.Int, types.Long}, ReturnType: types.Void.Pointer()},
	{Name: "__builtin_trap", ReturnType: types.Void},
	{Name: "min", Params: []types.Type{types.Int, types.Int}, ReturnType: types.Int},
	{Name: "max", Params: []types.Type{types.Int, types.Int}, ReturnType: types.Int},
	{Name: "BIT", Params: []types.Type{types.Int}, ReturnType: types.Long},
}

// StructRegistry records the member shape of every struct type with a
// full definition seen during analysis. Opaque/forward-only structs
// have no entry and fall back to the conservative compatibility rule
// in spec.md §4.3 (see DESIGN.md OQ-1).
type StructRegistry struct {
	members map[string][]ast.StructMember
}

func newStructRegistry() *StructRegistry {
	return &StructRegistry{members: make(map[string][]ast.StructMember)}
}

// Members returns the ordered member list of a recorded struct, so a
// caller (the IR generator, for member-offset arithmetic) can walk it
// in declaration order. Reports false for an opaque/forward-only
// struct.
func (r *StructRegistry) Members(name string) ([]ast.StructMember, bool) {
	members, ok := r.members[name]
	return members, ok
}

// MemberType resolves the type of member within struct name, if the
// struct's shape was recorded.
func (r *StructRegistry) MemberType(name, member string) (types.Type, bool) {
	members, ok := r.members[name]
	if !ok {
		return types.Type{}, false
	}
	for _, m := range members {
		if m.Name == member {
			return m.Type.ToType(), true
		}
	}
	return types.Type{}, false
}

// Result is the output of a successful or failed Analyze call.
type Result struct {
	Diagnostics []Diagnostic
	Structs     *StructRegistry
}

// OK reports whether the analysis found zero diagnostics; only then
// should the pipeline proceed to IR generation (spec.md §7).
func (r Result) OK() bool { return len(r.Diagnostics) == 0 }

// Analyzer performs the two-pass scope- and type-check over a Program.
type Analyzer struct {
	symbols     *SymbolTable
	structs     *StructRegistry
	diagnostics []Diagnostic
	curFunc     *ast.FunctionDecl
}

// New creates an Analyzer with its builtins pre-registered.
func New() *Analyzer {
	a := &Analyzer{symbols: NewSymbolTable(), structs: newStructRegistry()}
	for _, b := range Builtins {
		a.symbols.Declare(Symbol{
			Name: b.Name, Kind: KindFunction,
			ReturnType: b.ReturnType, Parameters: b.Params, Variadic: b.Variadic,
		})
	}
	return a
}

// Analyze validates prog and returns a Result. Pass one hoists every
// function declaration (and struct shape) into the global table; pass
// two analyzes each declaration's body in source order.
func Analyze(prog *ast.Program) Result {
	a := New()
	a.hoistDeclarations(prog)
	for _, decl := range prog.Declarations {
		a.analyzeTopLevel(decl)
	}
	return Result{Diagnostics: a.diagnostics, Structs: a.structs}
}

func (a *Analyzer) errorf(n ast.Node, format string, args ...any) {
	pos := n.Pos()
	a.diagnostics = append(a.diagnostics, Diagnostic{
		Message: fmt.Sprintf(format, args...),
		Line:    pos.Line,
		Column:  pos.Column,
		Node:    n,
	})
}

func (a *Analyzer) hoistDeclarations(prog *ast.Program) {
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.FunctionDecl:
			a.hoistFunction(d)
		case *ast.StructDecl:
			a.hoistStruct(d)
		case *ast.Declaration:
			a.hoistGlobal(d)
		}
	}
}

func (a *Analyzer) hoistFunction(fn *ast.FunctionDecl) {
	if a.symbols.DeclaredInCurrentScope(fn.Name) {
		if existing, ok := a.symbols.Lookup(fn.Name); ok && existing.Kind == KindFunction {
			return // repeated prototype/definition, tolerated
		}
		a.errorf(fn, "duplicate declaration of %q", fn.Name)
		return
	}
	params := lo.Map(fn.Params, func(p ast.Parameter, _ int) types.Type { return p.Type.ToType() })
	a.symbols.Declare(Symbol{
		Name: fn.Name, Kind: KindFunction,
		ReturnType: fn.ReturnType.ToType(), Parameters: params, Variadic: fn.Variadic,
		DeclLine: fn.Pos().Line, DeclColumn: fn.Pos().Column,
	})
}

func (a *Analyzer) hoistStruct(sd *ast.StructDecl) {
	if sd.Members != nil {
		a.structs.members[sd.Name] = sd.Members
	}
}

func (a *Analyzer) hoistGlobal(decl *ast.Declaration) {
	if a.symbols.DeclaredInCurrentScope(decl.Name) {
		a.errorf(decl, "duplicate declaration of %q", decl.Name)
		return
	}
	a.symbols.Declare(Symbol{
		Name: decl.Name, Kind: KindVariable, Type: decl.Type.ToType(),
		DeclLine: decl.Pos().Line, DeclColumn: decl.Pos().Column,
	})
}

func (a *Analyzer) analyzeTopLevel(decl ast.Node) {
	switch d := decl.(type) {
	case *ast.FunctionDecl:
		a.analyzeFunction(d)
	case *ast.Declaration:
		if d.Initializer != nil {
			a.analyzeExpr(d.Initializer)
		}
	case *ast.StructDecl:
		// shape already hoisted; nothing further to check.
	case *ast.Attribute:
		// tolerated opaque marker, nothing to check.
	}
}

func (a *Analyzer) analyzeFunction(fn *ast.FunctionDecl) {
	if fn.Body == nil {
		return // prototype only
	}
	a.curFunc = fn
	a.symbols.Enter()
	for _, p := range fn.Params {
		if a.symbols.DeclaredInCurrentScope(p.Name) {
			a.errorf(p, "duplicate declaration of %q", p.Name)
			continue
		}
		a.symbols.Declare(Symbol{Name: p.Name, Kind: KindParameter, Type: p.Type.ToType()})
	}
	a.analyzeCompound(fn.Body, false)
	a.symbols.Exit()
	a.curFunc = nil
}

// analyzeCompound analyzes a block's statements. When ownScope is
// true a new lexical scope is entered for the block itself (function
// bodies reuse the parameter scope instead).
func (a *Analyzer) analyzeCompound(block *ast.CompoundStmt, ownScope bool) {
	if ownScope {
		a.symbols.Enter()
		defer a.symbols.Exit()
	}
	for _, stmt := range block.Statements {
		a.analyzeStmt(stmt)
	}
}

func (a *Analyzer) analyzeStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Declaration:
		a.analyzeLocalDecl(s)
	case *ast.CompoundStmt:
		a.analyzeCompound(s, true)
	case *ast.IfStmt:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Then)
		if s.Else != nil {
			a.analyzeStmt(s.Else)
		}
	case *ast.WhileStmt:
		a.analyzeExpr(s.Cond)
		a.analyzeStmt(s.Body)
	case *ast.ForStmt:
		a.symbols.Enter()
		if s.Init != nil {
			a.analyzeStmt(s.Init)
		}
		if s.Cond != nil {
			a.analyzeExpr(s.Cond)
		}
		if s.Post != nil {
			a.analyzeStmt(s.Post)
		}
		a.analyzeStmt(s.Body)
		a.symbols.Exit()
	case *ast.ReturnStmt:
		a.analyzeReturn(s)
	case *ast.ExpressionStmt:
		a.analyzeExpr(s.X)
	case *ast.BreakStmt, *ast.ContinueStmt, *ast.AsmStatement:
		// nothing to check
	case *ast.StructDecl:
		a.hoistStruct(s)
		for i := range s.Vars {
			a.analyzeLocalDecl(&s.Vars[i])
		}
	case *ast.Attribute:
		// tolerated
	}
}

func (a *Analyzer) analyzeLocalDecl(decl *ast.Declaration) {
	if a.symbols.DeclaredInCurrentScope(decl.Name) {
		a.errorf(decl, "duplicate declaration of %q", decl.Name)
	} else {
		a.symbols.Declare(Symbol{Name: decl.Name, Kind: KindVariable, Type: decl.Type.ToType(),
			DeclLine: decl.Pos().Line, DeclColumn: decl.Pos().Column})
	}
	if decl.Initializer == nil {
		return
	}
	valType := a.analyzeExpr(decl.Initializer)
	if !a.assignable(decl.Type.ToType(), valType) {
		a.errorf(decl, "cannot initialize %q of type %s with value of type %s", decl.Name, decl.Type.ToType(), valType)
	}
}

func (a *Analyzer) analyzeReturn(ret *ast.ReturnStmt) {
	if a.curFunc == nil {
		a.errorf(ret, "return outside function")
		return
	}
	want := a.curFunc.ReturnType.ToType()
	if ret.Value == nil {
		if !want.Equal(types.Void) {
			a.errorf(ret, "function %q must return a value of type %s", a.curFunc.Name, want)
		}
		return
	}
	if want.Equal(types.Void) {
		a.errorf(ret, "function %q declared void cannot return a value", a.curFunc.Name)
		return
	}
	got := a.analyzeExpr(ret.Value)
	if !a.assignable(want, got) {
		a.errorf(ret, "cannot return value of type %s from function %q returning %s", got, a.curFunc.Name, want)
	}
}

// assignable implements the conservative compatibility rules of
// spec.md §4.3.
func (a *Analyzer) assignable(target, value types.Type) bool {
	if target.Equal(value) {
		return true
	}
	if target.IsPointer() && value.IsPointer() {
		if target.Base == types.VOID || value.Base == types.VOID {
			return true
		}
		if target.Base == types.STRUCT || value.Base == types.STRUCT {
			return true // conservative: no member-shape check, per spec
		}
		return false
	}
	if target.IsPointer() && !value.IsPointer() && value.IsNumeric() {
		return true // any numeric value assigns to any pointer; it is not checked to be the constant 0
	}
	if target.Base == types.STRUCT || value.Base == types.STRUCT {
		return true // struct<->struct or struct<->pointer, conservative per spec
	}
	if target.IsNumeric() && value.IsNumeric() {
		return true // any two numeric types are implicitly convertible
	}
	return false
}

// analyzeExpr type-checks x and returns its resulting type.
func (a *Analyzer) analyzeExpr(x ast.Expr) types.Type {
	switch e := x.(type) {
	case *ast.NumberLiteral:
		return numberLiteralType(e.Lexeme)
	case *ast.CharLiteral:
		return types.Char
	case *ast.StringLiteral:
		return types.Char.Pointer()
	case *ast.Identifier:
		sym, ok := a.symbols.Lookup(e.Name)
		if !ok {
			a.errorf(e, "Undeclared identifier '%s'", e.Name)
			return types.Int
		}
		return sym.Type
	case *ast.Unary:
		return a.analyzeUnary(e)
	case *ast.Binary:
		return a.analyzeBinary(e)
	case *ast.Assignment:
		return a.analyzeAssignment(e)
	case *ast.Call:
		return a.analyzeCall(e)
	case *ast.MemberAccess:
		return a.analyzeMemberAccess(e)
	case *ast.ArrayAccess:
		base := a.analyzeExpr(e.X)
		a.analyzeExpr(e.Index)
		if base.IsPointer() {
			return base.Deref()
		}
		a.errorf(e, "cannot index non-pointer type %s", base)
		return types.Int
	case *ast.Sizeof:
		if e.Type != nil {
			return types.Long
		}
		a.analyzeExpr(e.X)
		return types.Long
	case *ast.Cast:
		a.analyzeExpr(e.X)
		return e.Type.ToType()
	default:
		return types.Int
	}
}

func numberLiteralType(lexeme string) types.Type {
	hasDot, hasExp, hasF, hasL := false, false, false, false
	for i := 0; i < len(lexeme); i++ {
		switch lexeme[i] {
		case '.':
			hasDot = true
		case 'e', 'E':
			// hex literals never treat e/E as an exponent marker
			if len(lexeme) >= 2 && lexeme[0] == '0' && (lexeme[1] == 'x' || lexeme[1] == 'X') {
				continue
			}
			hasExp = true
		case 'f', 'F':
			if len(lexeme) >= 2 && lexeme[0] == '0' && (lexeme[1] == 'x' || lexeme[1] == 'X') {
				continue
			}
			hasF = true
		case 'l', 'L':
			hasL = true
		}
	}
	switch {
	case hasF:
		return types.Float
	case hasDot || hasExp:
		return types.Double
	case hasL:
		return types.Long
	default:
		return types.Int
	}
}

func (a *Analyzer) analyzeUnary(u *ast.Unary) types.Type {
	xt := a.analyzeExpr(u.X)
	switch u.Op {
	case ast.OpNot:
		return types.Int
	case ast.OpNeg:
		return xt
	case ast.OpAddr:
		return xt.Pointer()
	case ast.OpDeref:
		if xt.IsPointer() {
			return xt.Deref()
		}
		a.errorf(u, "cannot dereference non-pointer type %s", xt)
		return types.Int
	default:
		return types.Int
	}
}

func (a *Analyzer) analyzeBinary(b *ast.Binary) types.Type {
	xt := a.analyzeExpr(b.X)
	yt := a.analyzeExpr(b.Y)
	switch b.Op {
	case ast.OpAnd, ast.OpOr:
		return types.Int // logical && || ! always yield INT
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return types.Int // comparisons yield INT (0/1)
	case ast.OpShl, ast.OpShr, ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor:
		if !xt.IsNumeric() || !yt.IsNumeric() {
			a.errorf(b, "bitwise/shift operator requires numeric operands, got %s and %s", xt, yt)
		}
		return types.Int
	case ast.OpAdd, ast.OpSub:
		if xt.IsPointer() && yt.IsNumeric() {
			return xt
		}
		if yt.IsPointer() && xt.IsNumeric() && b.Op == ast.OpAdd {
			return yt
		}
		if xt.IsNumeric() && yt.IsNumeric() {
			return types.Promote(xt, yt)
		}
		a.errorf(b, "invalid operands to binary %s: %s and %s", binaryOpSymbol(b.Op), xt, yt)
		return xt
	default: // mul, div, mod
		if xt.IsNumeric() && yt.IsNumeric() {
			return types.Promote(xt, yt)
		}
		a.errorf(b, "invalid operands to binary %s: %s and %s", binaryOpSymbol(b.Op), xt, yt)
		return xt
	}
}

func binaryOpSymbol(op ast.BinaryOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	default:
		return "?"
	}
}

func (a *Analyzer) analyzeAssignment(asn *ast.Assignment) types.Type {
	targetType := a.analyzeExpr(asn.Target)
	valueType := a.analyzeExpr(asn.Value)
	if !a.assignable(targetType, valueType) {
		a.errorf(asn, "cannot assign value of type %s to target of type %s", valueType, targetType)
	}
	return targetType
}

func (a *Analyzer) analyzeCall(call *ast.Call) types.Type {
	sym, ok := a.symbols.Lookup(call.Callee)
	if !ok || sym.Kind != KindFunction {
		a.errorf(call, "call to undeclared function '%s'", call.Callee)
		lo.ForEach(call.Args, func(arg ast.Expr, _ int) { a.analyzeExpr(arg) })
		return types.Int
	}
	if !sym.Variadic && len(call.Args) != len(sym.Parameters) {
		a.errorf(call, "function %q expects %d argument(s), got %d", call.Callee, len(sym.Parameters), len(call.Args))
	}
	for i, arg := range call.Args {
		argType := a.analyzeExpr(arg)
		if i < len(sym.Parameters) && !a.assignable(sym.Parameters[i], argType) {
			a.errorf(arg, "argument %d to %q has type %s, want %s", i+1, call.Callee, argType, sym.Parameters[i])
		}
	}
	return sym.ReturnType
}

func (a *Analyzer) analyzeMemberAccess(m *ast.MemberAccess) types.Type {
	xt := a.analyzeExpr(m.X)
	base := xt
	if m.Arrow {
		if !xt.IsPointer() {
			a.errorf(m, "'->' requires a pointer operand, got %s", xt)
			return types.Int
		}
		base = xt.Deref()
	}
	if base.Base != types.STRUCT {
		a.errorf(m, "member access on non-struct type %s", base)
		return types.Int
	}
	if mt, ok := a.structs.MemberType(base.StructName, m.Member); ok {
		return mt
	}
	return types.Int // opaque struct shape: conservative fallback, per spec.md §4.3
}
