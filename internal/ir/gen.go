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

package ir

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/minic-lang/minic/internal/ast"
	"github.com/minic-lang/minic/internal/sema"
	"github.com/minic-lang/minic/internal/types"
)

// FloatKind records whether a C type is float (Float32) or double
// (Float64), beside the closed IR Type set (spec.md §3 fixes Type to
// {i8,i32,i64,void,ptr}). It is kept only in the generator's
// local-variable bookkeeping: IR instructions do not carry it and the
// assembly emitter does not read it, so float and double values are
// lowered through the same integer registers as every other value.
type FloatKind int

const (
	NotFloat FloatKind = iota
	Float32
	Float64
)

func cTypeToIRType(t types.Type) (Type, FloatKind) {
	if t.IsPointer() {
		return Ptr, NotFloat
	}
	switch t.Base {
	case types.CHAR:
		return I8, NotFloat
	case types.INT:
		return I32, NotFloat
	case types.LONG:
		return I64, NotFloat
	case types.FLOAT:
		return I32, Float32
	case types.DOUBLE:
		return I64, Float64
	case types.VOID:
		return Void, NotFloat
	case types.STRUCT:
		return I64, NotFloat // opaque; structs are passed/returned by reference in practice
	default:
		return I32, NotFloat
	}
}

type localVar struct {
	allocaID  int
	cType     types.Type
	irType    Type
	floatKind FloatKind
}

// Generator lowers a validated AST into an IR Module.
type Generator struct {
	module   Module
	valCtr   int
	labelCtr int

	fn         *Function
	blocks     []BasicBlock
	curBlock   int
	scopes     []map[string]localVar
	globals    map[string]types.Type
	structs    *sema.StructRegistry
	funcRets   map[string]types.Type // callee name -> declared C return type
	loopConts  []string              // continue targets, innermost last
	loopBreaks []string              // break targets, innermost last
}

// Generate lowers prog into an IR Module. prog must already be free of
// semantic diagnostics (res.OK()); Generate does not re-validate.
func Generate(prog *ast.Program, res sema.Result) (*Module, error) {
	g := &Generator{
		globals:  make(map[string]types.Type),
		structs:  res.Structs,
		funcRets: make(map[string]types.Type),
	}
	for _, b := range sema.Builtins {
		g.funcRets[b.Name] = b.ReturnType
	}
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.Declaration:
			g.globals[d.Name] = d.Type.ToType()
		case *ast.FunctionDecl:
			g.funcRets[d.Name] = d.ReturnType.ToType()
		}
	}
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *ast.Declaration:
			g.genGlobal(d)
		case *ast.FunctionDecl:
			if d.Body != nil {
				if err := g.genFunction(d); err != nil {
					return nil, err
				}
			}
		}
	}
	return &g.module, nil
}

func (g *Generator) genGlobal(d *ast.Declaration) {
	irType, _ := cTypeToIRType(d.Type.ToType())
	gv := GlobalVar{Name: d.Name, Type: irType}
	if d.Initializer != nil {
		if n, ok := d.Initializer.(*ast.NumberLiteral); ok {
			gv.Initializer = parseIntLexeme(n.Lexeme)
			gv.HasInit = true
		}
	}
	g.module.Globals = append(g.module.Globals, gv)
}

func parseIntLexeme(lexeme string) int64 {
	var v int64
	i := 0
	neg := false
	if i < len(lexeme) && lexeme[i] == '-' {
		neg = true
		i++
	}
	base := int64(10)
	if i+1 < len(lexeme) && lexeme[i] == '0' && (lexeme[i+1] == 'x' || lexeme[i+1] == 'X') {
		base = 16
		i += 2
	} else if i < len(lexeme) && lexeme[i] == '0' && i+1 < len(lexeme) && lexeme[i+1] >= '0' && lexeme[i+1] <= '7' {
		base = 8
		i++
	}
	for ; i < len(lexeme); i++ {
		c := lexeme[i]
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			// suffix (u/l/f) reached; stop.
			i = len(lexeme)
			continue
		}
		if d >= base {
			break
		}
		v = v*base + d
	}
	if neg {
		v = -v
	}
	return v
}

func (g *Generator) nextValue() int {
	g.valCtr++
	return g.valCtr
}

func (g *Generator) nextLabel(prefix string) string {
	g.labelCtr++
	return fmt.Sprintf("%s_%d", prefix, g.labelCtr)
}

func (g *Generator) emit(in Instruction) Value {
	if in.ID == 0 && in.Type != Void {
		in.ID = g.nextValue()
	}
	g.blocks[g.curBlock].Instructions = append(g.blocks[g.curBlock].Instructions, in)
	return Value{ID: in.ID, Type: in.Type}
}

// startBlock opens a new basic block and makes it current. It does
// not close the previous one: callers must ensure every block they
// stop touching already ends in a terminator.
func (g *Generator) startBlock(label string) {
	g.blocks = append(g.blocks, BasicBlock{Label: label})
	g.curBlock = len(g.blocks) - 1
}

func (g *Generator) pushScope()         { g.scopes = append(g.scopes, make(map[string]localVar)) }
func (g *Generator) popScope()          { g.scopes = g.scopes[:len(g.scopes)-1] }
func (g *Generator) declareLocal(name string, v localVar) {
	g.scopes[len(g.scopes)-1][name] = v
}

func (g *Generator) lookupLocal(name string) (localVar, bool) {
	for i := len(g.scopes) - 1; i >= 0; i-- {
		if v, ok := g.scopes[i][name]; ok {
			return v, true
		}
	}
	return localVar{}, false
}

func (g *Generator) genFunction(fn *ast.FunctionDecl) error {
	retIR, _ := cTypeToIRType(fn.ReturnType.ToType())
	g.fn = &Function{Name: fn.Name, ReturnType: retIR}
	g.blocks = nil
	g.curBlock = 0
	g.scopes = nil
	g.pushScope()

	g.startBlock("entry")

	params := lo.Map(fn.Params, func(p ast.Parameter, _ int) Local {
		irType, _ := cTypeToIRType(p.Type.ToType())
		return Local{Name: p.Name, Type: irType}
	})
	g.fn.Params = params

	for _, p := range fn.Params {
		irType, fk := cTypeToIRType(p.Type.ToType())
		id := g.nextValue()
		g.emit(Instruction{ID: id, Op: OpAlloca, Type: Ptr, AllocaOf: irType, Name: p.Name})
		g.fn.Locals = append(g.fn.Locals, Local{Name: p.Name, Type: irType})
		g.declareLocal(p.Name, localVar{allocaID: id, cType: p.Type.ToType(), irType: irType, floatKind: fk})
		g.emit(Instruction{Op: OpStore, Type: Void, Operands: []Value{paramValue(p.Name, irType), {ID: id, Type: Ptr}}})
	}

	if err := g.genStmt(fn.Body, false); err != nil {
		return err
	}

	// Guarantee every block ends in a terminator: a function whose
	// last statement is not a return needs an implicit one.
	if _, ok := g.blocks[g.curBlock].Terminator(); !ok {
		if retIR == Void {
			g.emit(Instruction{Op: OpRet, Type: Void})
		} else {
			g.emit(Instruction{Op: OpRet, Type: Void, Operands: []Value{ConstValue(0, retIR)}})
		}
	}

	g.fn.Body = g.blocks
	if err := g.fn.Verify(); err != nil {
		return err
	}
	g.popScope()
	g.module.Functions = append(g.module.Functions, *g.fn)
	return nil
}

// paramValue names the synthetic operand used to seed a parameter's
// alloca from its calling-convention register; the asm emitter
// recognizes it by the "%param." prefix of its global name and reads
// the register for that parameter's position.
func paramValue(name string, t Type) Value {
	return Value{IsGlobal: true, Global: "%param." + name, Type: t}
}

func (g *Generator) genStmt(stmt ast.Stmt, ownScope bool) error {
	switch s := stmt.(type) {
	case *ast.CompoundStmt:
		if ownScope {
			g.pushScope()
			defer g.popScope()
		}
		for _, inner := range s.Statements {
			if err := g.genStmt(inner, true); err != nil {
				return err
			}
			if _, ok := g.blocks[g.curBlock].Terminator(); ok {
				break // dead code after a terminator is never generated
			}
		}
		return nil
	case *ast.Declaration:
		return g.genLocalDecl(s)
	case *ast.IfStmt:
		return g.genIf(s)
	case *ast.WhileStmt:
		return g.genWhile(s)
	case *ast.ForStmt:
		return g.genFor(s)
	case *ast.ReturnStmt:
		return g.genReturn(s)
	case *ast.ExpressionStmt:
		_, err := g.genExpr(s.X)
		return err
	case *ast.BreakStmt:
		if len(g.loopBreaks) == 0 {
			return &Error{Message: "break outside loop"}
		}
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{g.loopBreaks[len(g.loopBreaks)-1]}})
		return nil
	case *ast.ContinueStmt:
		if len(g.loopConts) == 0 {
			return &Error{Message: "continue outside loop"}
		}
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{g.loopConts[len(g.loopConts)-1]}})
		return nil
	case *ast.AsmStatement, *ast.Attribute, *ast.StructDecl:
		return nil
	default:
		return &Error{Message: fmt.Sprintf("unsupported statement %T", stmt)}
	}
}

func (g *Generator) genLocalDecl(d *ast.Declaration) error {
	irType, fk := cTypeToIRType(d.Type.ToType())
	id := g.nextValue()
	alloca := Instruction{ID: id, Op: OpAlloca, Type: Ptr, AllocaOf: irType, Name: d.Name}
	entry := &g.blocks[0]
	if term, ok := entry.Terminator(); ok {
		n := len(entry.Instructions)
		entry.Instructions = append(entry.Instructions[:n-1:n-1], alloca, term)
	} else {
		entry.Instructions = append(entry.Instructions, alloca)
	}
	g.fn.Locals = append(g.fn.Locals, Local{Name: d.Name, Type: irType})
	g.declareLocal(d.Name, localVar{allocaID: id, cType: d.Type.ToType(), irType: irType, floatKind: fk})
	if d.Initializer != nil {
		val, err := g.genExpr(d.Initializer)
		if err != nil {
			return err
		}
		g.emit(Instruction{Op: OpStore, Type: Void, Operands: []Value{val, {ID: id, Type: Ptr}}})
	}
	return nil
}

func (g *Generator) genIf(s *ast.IfStmt) error {
	k := g.labelCtr + 1
	thenLabel := fmt.Sprintf("then_%d", k)
	mergeLabel := fmt.Sprintf("merge_%d", k)
	elseLabel := mergeLabel
	hasElse := s.Else != nil
	if hasElse {
		elseLabel = fmt.Sprintf("else_%d", k)
	}
	g.labelCtr = k

	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	g.emit(Instruction{Op: OpJumpIf, Type: Void, Operands: []Value{cond}, Targets: []string{thenLabel, elseLabel}})

	g.startBlock(thenLabel)
	if err := g.genStmt(s.Then, true); err != nil {
		return err
	}
	if _, ok := g.blocks[g.curBlock].Terminator(); !ok {
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{mergeLabel}})
	}

	if hasElse {
		g.startBlock(elseLabel)
		if err := g.genStmt(s.Else, true); err != nil {
			return err
		}
		if _, ok := g.blocks[g.curBlock].Terminator(); !ok {
			g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{mergeLabel}})
		}
	}

	g.startBlock(mergeLabel)
	return nil
}

func (g *Generator) genWhile(s *ast.WhileStmt) error {
	condLabel, bodyLabel, afterLabel := "while.cond", "while.body", "while.after"
	g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{condLabel}})

	g.startBlock(condLabel)
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	g.emit(Instruction{Op: OpJumpIf, Type: Void, Operands: []Value{cond}, Targets: []string{bodyLabel, afterLabel}})

	g.loopConts = append(g.loopConts, condLabel)
	g.loopBreaks = append(g.loopBreaks, afterLabel)
	g.startBlock(bodyLabel)
	if err := g.genStmt(s.Body, true); err != nil {
		return err
	}
	if _, ok := g.blocks[g.curBlock].Terminator(); !ok {
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{condLabel}})
	}
	g.loopConts = g.loopConts[:len(g.loopConts)-1]
	g.loopBreaks = g.loopBreaks[:len(g.loopBreaks)-1]

	g.startBlock(afterLabel)
	return nil
}

func (g *Generator) genFor(s *ast.ForStmt) error {
	g.pushScope()
	defer g.popScope()

	if s.Init != nil {
		if err := g.genStmt(s.Init, false); err != nil {
			return err
		}
	}

	condLabel, bodyLabel, incLabel, afterLabel := "for.cond", "for.body", "for.inc", "for.after"
	g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{condLabel}})

	g.startBlock(condLabel)
	if s.Cond != nil {
		cond, err := g.genExpr(s.Cond)
		if err != nil {
			return err
		}
		g.emit(Instruction{Op: OpJumpIf, Type: Void, Operands: []Value{cond}, Targets: []string{bodyLabel, afterLabel}})
	} else {
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{bodyLabel}})
	}

	g.loopConts = append(g.loopConts, incLabel)
	g.loopBreaks = append(g.loopBreaks, afterLabel)
	g.startBlock(bodyLabel)
	if err := g.genStmt(s.Body, true); err != nil {
		return err
	}
	if _, ok := g.blocks[g.curBlock].Terminator(); !ok {
		g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{incLabel}})
	}
	g.loopConts = g.loopConts[:len(g.loopConts)-1]
	g.loopBreaks = g.loopBreaks[:len(g.loopBreaks)-1]

	g.startBlock(incLabel)
	if s.Post != nil {
		if err := g.genStmt(s.Post, false); err != nil {
			return err
		}
	}
	g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{condLabel}})

	g.startBlock(afterLabel)
	return nil
}

func (g *Generator) genReturn(s *ast.ReturnStmt) error {
	if s.Value == nil {
		g.emit(Instruction{Op: OpRet, Type: Void})
		return nil
	}
	val, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	g.emit(Instruction{Op: OpRet, Type: Void, Operands: []Value{val}})
	return nil
}

// genExpr lowers x and returns the Value holding its result (already
// loaded, never an address, except where the address itself is the
// requested value as in &x).
func (g *Generator) genExpr(x ast.Expr) (Value, error) {
	switch e := x.(type) {
	case *ast.NumberLiteral:
		t, _ := cTypeToIRType(sema_numberLiteralType(e.Lexeme))
		return ConstValue(parseIntLexeme(e.Lexeme), t), nil
	case *ast.CharLiteral:
		return ConstValue(int64(charLiteralValue(e.Lexeme)), I8), nil
	case *ast.StringLiteral:
		// string literals are not module-level deduplicated in this
		// lowering; each use addresses its own anonymous global.
		name := fmt.Sprintf("str.%d", g.nextValue())
		g.module.Globals = append(g.module.Globals, GlobalVar{Name: name, Type: Ptr})
		return GlobalValue(name, Ptr), nil
	case *ast.Identifier:
		return g.genIdentLoad(e.Name)
	case *ast.Unary:
		return g.genUnary(e)
	case *ast.Binary:
		return g.genBinary(e)
	case *ast.Assignment:
		return g.genAssignment(e)
	case *ast.Call:
		return g.genCall(e)
	case *ast.Sizeof:
		return ConstValue(8, I64), nil
	case *ast.Cast:
		return g.genExpr(e.X)
	case *ast.MemberAccess, *ast.ArrayAccess:
		return g.genAddressableLoad(e)
	default:
		return Value{}, &Error{Message: fmt.Sprintf("unsupported expression %T", x)}
	}
}

// sema_numberLiteralType mirrors sema's literal-typing rule locally so
// the generator stays independent of the analyzer's diagnostic
// machinery; only Analyze's Result (for struct shapes) crosses the
// package boundary.
func sema_numberLiteralType(lexeme string) types.Type {
	hasDot, hasExp, hasF, hasL := false, false, false, false
	isHex := len(lexeme) >= 2 && lexeme[0] == '0' && (lexeme[1] == 'x' || lexeme[1] == 'X')
	for i := 0; i < len(lexeme); i++ {
		switch lexeme[i] {
		case '.':
			hasDot = true
		case 'e', 'E':
			if !isHex {
				hasExp = true
			}
		case 'f', 'F':
			if !isHex {
				hasF = true
			}
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

func charLiteralValue(lexeme string) byte {
	inner := lexeme[1 : len(lexeme)-1]
	if len(inner) == 0 {
		return 0
	}
	if inner[0] == '\\' && len(inner) > 1 {
		switch inner[1] {
		case 'n':
			return '\n'
		case 't':
			return '\t'
		case '0':
			return 0
		default:
			return inner[1]
		}
	}
	return inner[0]
}

func (g *Generator) genIdentLoad(name string) (Value, error) {
	if lv, ok := g.lookupLocal(name); ok {
		return g.emit(Instruction{Op: OpLoad, Type: lv.irType, Operands: []Value{{ID: lv.allocaID, Type: Ptr}}}), nil
	}
	if ct, ok := g.globals[name]; ok {
		irType, _ := cTypeToIRType(ct)
		return g.emit(Instruction{Op: OpLoad, Type: irType, Operands: []Value{GlobalValue(name, Ptr)}}), nil
	}
	return Value{}, &Error{Message: fmt.Sprintf("unresolved identifier %q reached IR generation", name)}
}

// addressOf returns the pointer Value for an lvalue expression,
// without loading through it.
func (g *Generator) addressOf(x ast.Expr) (Value, error) {
	switch e := x.(type) {
	case *ast.Identifier:
		if lv, ok := g.lookupLocal(e.Name); ok {
			return Value{ID: lv.allocaID, Type: Ptr}, nil
		}
		if _, ok := g.globals[e.Name]; ok {
			return GlobalValue(e.Name, Ptr), nil
		}
		return Value{}, &Error{Message: fmt.Sprintf("unresolved identifier %q reached IR generation", e.Name)}
	case *ast.ArrayAccess:
		base, err := g.genExpr(e.X)
		if err != nil {
			return Value{}, err
		}
		idx, err := g.genExpr(e.Index)
		if err != nil {
			return Value{}, err
		}
		elemType := types.Int
		if baseType := g.typeOf(e.X); baseType.IsPointer() {
			elemType = baseType.Deref()
		}
		scaledIdx := idx
		if elemSize := g.sizeOf(elemType); elemSize != 1 {
			scaledIdx = g.emit(Instruction{Op: OpMul, Type: I64, Operands: []Value{idx, ConstValue(elemSize, I64)}})
		}
		return g.emit(Instruction{Op: OpAdd, Type: Ptr, Operands: []Value{base, scaledIdx}}), nil
	case *ast.MemberAccess:
		var base Value
		var err error
		structType := g.typeOf(e.X)
		if e.Arrow {
			base, err = g.genExpr(e.X) // already a pointer value
			if structType.IsPointer() {
				structType = structType.Deref()
			}
		} else {
			base, err = g.addressOf(e.X) // address of the struct's own storage
		}
		if err != nil {
			return Value{}, err
		}
		offset := g.memberOffset(structType.StructName, e.Member)
		return g.emit(Instruction{Op: OpAdd, Type: Ptr, Operands: []Value{base, ConstValue(offset, I64)}}), nil
	default:
		return Value{}, &Error{Message: fmt.Sprintf("expression %T is not addressable", x)}
	}
}

// memberOffset computes member's byte offset within structName by
// summing the sizes of every member declared before it. An opaque
// struct (shape never recorded) conservatively offsets to 0, per
// spec.md §4.3's fallback rule.
func (g *Generator) memberOffset(structName, member string) int64 {
	members, ok := g.structs.Members(structName)
	if !ok {
		return 0
	}
	var offset int64
	for _, m := range members {
		if m.Name == member {
			return offset
		}
		offset += g.sizeOf(m.Type.ToType())
	}
	return offset
}

// sizeOf returns t's size in bytes for offset and index-scaling
// arithmetic, matching the IR's fixed-width types (i8=1, i32/float=4,
// i64/double/ptr=8).
func (g *Generator) sizeOf(t types.Type) int64 {
	if t.IsPointer() {
		return 8
	}
	switch t.Base {
	case types.CHAR:
		return 1
	case types.INT, types.FLOAT:
		return 4
	case types.LONG, types.DOUBLE:
		return 8
	case types.STRUCT:
		members, ok := g.structs.Members(t.StructName)
		if !ok {
			return 8 // opaque struct: conservative pointer-sized fallback
		}
		var total int64
		for _, m := range members {
			total += g.sizeOf(m.Type.ToType())
		}
		return total
	default:
		return 4
	}
}

// typeOf infers the C type of an already-validated expression, the
// way sema's analyzeExpr does, minus diagnostic collection: Generate's
// input is guaranteed free of semantic errors, so every lookup here is
// expected to succeed.
func (g *Generator) typeOf(x ast.Expr) types.Type {
	switch e := x.(type) {
	case *ast.NumberLiteral:
		return sema_numberLiteralType(e.Lexeme)
	case *ast.CharLiteral:
		return types.Char
	case *ast.StringLiteral:
		return types.Char.Pointer()
	case *ast.Identifier:
		if lv, ok := g.lookupLocal(e.Name); ok {
			return lv.cType
		}
		if ct, ok := g.globals[e.Name]; ok {
			return ct
		}
		return types.Int
	case *ast.Unary:
		xt := g.typeOf(e.X)
		switch e.Op {
		case ast.OpAddr:
			return xt.Pointer()
		case ast.OpDeref:
			if xt.IsPointer() {
				return xt.Deref()
			}
			return types.Int
		case ast.OpNot:
			return types.Int
		default:
			return xt
		}
	case *ast.Binary:
		if isComparison(e.Op) || e.Op == ast.OpAnd || e.Op == ast.OpOr {
			return types.Int
		}
		xt, yt := g.typeOf(e.X), g.typeOf(e.Y)
		if xt.IsPointer() {
			return xt
		}
		if yt.IsPointer() && e.Op == ast.OpAdd {
			return yt
		}
		return types.Promote(xt, yt)
	case *ast.Assignment:
		return g.typeOf(e.Target)
	case *ast.Call:
		if rt, ok := g.funcRets[e.Callee]; ok {
			return rt
		}
		return types.Int
	case *ast.MemberAccess:
		base := g.typeOf(e.X)
		if e.Arrow && base.IsPointer() {
			base = base.Deref()
		}
		if base.Base == types.STRUCT {
			if mt, ok := g.structs.MemberType(base.StructName, e.Member); ok {
				return mt
			}
		}
		return types.Int
	case *ast.ArrayAccess:
		base := g.typeOf(e.X)
		if base.IsPointer() {
			return base.Deref()
		}
		return types.Int
	case *ast.Sizeof:
		return types.Long
	case *ast.Cast:
		return e.Type.ToType()
	default:
		return types.Int
	}
}

func (g *Generator) genAddressableLoad(x ast.Expr) (Value, error) {
	addr, err := g.addressOf(x)
	if err != nil {
		return Value{}, err
	}
	elemIR, _ := cTypeToIRType(g.typeOf(x))
	return g.emit(Instruction{Op: OpLoad, Type: elemIR, Operands: []Value{addr}}), nil
}

func (g *Generator) genUnary(u *ast.Unary) (Value, error) {
	if u.Op == ast.OpAddr {
		return g.addressOf(u.X)
	}
	if u.Op == ast.OpDeref {
		addr, err := g.genExpr(u.X)
		if err != nil {
			return Value{}, err
		}
		pointee := types.Int
		if xt := g.typeOf(u.X); xt.IsPointer() {
			pointee = xt.Deref()
		}
		elemIR, _ := cTypeToIRType(pointee)
		return g.emit(Instruction{Op: OpLoad, Type: elemIR, Operands: []Value{addr}}), nil
	}
	x, err := g.genExpr(u.X)
	if err != nil {
		return Value{}, err
	}
	switch u.Op {
	case ast.OpNeg:
		return g.emit(Instruction{Op: OpSub, Type: x.Type, Operands: []Value{ConstValue(0, x.Type), x}}), nil
	case ast.OpNot:
		return g.emit(Instruction{Op: OpNot, Type: I32, Operands: []Value{x}}), nil
	default:
		return Value{}, &Error{Message: "unsupported unary operator"}
	}
}

var binaryOpMap = map[ast.BinaryOp]Op{
	ast.OpAdd: OpAdd, ast.OpSub: OpSub, ast.OpMul: OpMul, ast.OpDiv: OpDiv, ast.OpMod: OpMod,
	ast.OpEq: OpEq, ast.OpNe: OpNe, ast.OpLt: OpLt, ast.OpLe: OpLe, ast.OpGt: OpGt, ast.OpGe: OpGe,
	ast.OpBitAnd: OpBitAnd, ast.OpBitOr: OpBitOr, ast.OpBitXor: OpBitXor, ast.OpShl: OpShl, ast.OpShr: OpShr,
}

func isComparison(op ast.BinaryOp) bool {
	switch op {
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return true
	default:
		return false
	}
}

func (g *Generator) genBinary(b *ast.Binary) (Value, error) {
	if b.Op == ast.OpAnd || b.Op == ast.OpOr {
		return g.genShortCircuit(b)
	}
	x, err := g.genExpr(b.X)
	if err != nil {
		return Value{}, err
	}
	y, err := g.genExpr(b.Y)
	if err != nil {
		return Value{}, err
	}
	op := binaryOpMap[b.Op]
	resultType := I32
	if !isComparison(b.Op) {
		resultType = x.Type
		if x.Type == Ptr {
			resultType = Ptr
		}
	}
	return g.emit(Instruction{Op: op, Type: resultType, Operands: []Value{x, y}}), nil
}

// genShortCircuit lowers && / || into branches with two blocks and a
// merge block that materializes the i32 0/1 result through a
// temporary alloca, per spec.md §4.4.
func (g *Generator) genShortCircuit(b *ast.Binary) (Value, error) {
	k := g.labelCtr + 1
	g.labelCtr = k
	rhsLabel := fmt.Sprintf("logic.rhs_%d", k)
	mergeLabel := fmt.Sprintf("logic.merge_%d", k)

	resultID := g.nextValue()
	g.emit(Instruction{ID: resultID, Op: OpAlloca, Type: Ptr, AllocaOf: I32, Name: "logic.tmp"})

	x, err := g.genExpr(b.X)
	if err != nil {
		return Value{}, err
	}
	shortValue := int64(0)
	if b.Op == ast.OpOr {
		shortValue = 1
	}
	g.emit(Instruction{Op: OpStore, Type: Void, Operands: []Value{ConstValue(shortValue, I32), {ID: resultID, Type: Ptr}}})
	if b.Op == ast.OpAnd {
		g.emit(Instruction{Op: OpJumpIf, Type: Void, Operands: []Value{x}, Targets: []string{rhsLabel, mergeLabel}})
	} else {
		g.emit(Instruction{Op: OpJumpIf, Type: Void, Operands: []Value{x}, Targets: []string{mergeLabel, rhsLabel}})
	}

	g.startBlock(rhsLabel)
	y, err := g.genExpr(b.Y)
	if err != nil {
		return Value{}, err
	}
	normalized := g.emit(Instruction{Op: OpNe, Type: I32, Operands: []Value{y, ConstValue(0, I32)}})
	g.emit(Instruction{Op: OpStore, Type: Void, Operands: []Value{normalized, {ID: resultID, Type: Ptr}}})
	g.emit(Instruction{Op: OpJump, Type: Void, Targets: []string{mergeLabel}})

	g.startBlock(mergeLabel)
	return g.emit(Instruction{Op: OpLoad, Type: I32, Operands: []Value{{ID: resultID, Type: Ptr}}}), nil
}

func (g *Generator) genAssignment(a *ast.Assignment) (Value, error) {
	val, err := g.genExpr(a.Value)
	if err != nil {
		return Value{}, err
	}
	addr, err := g.addressOf(a.Target)
	if err != nil {
		return Value{}, err
	}
	g.emit(Instruction{Op: OpStore, Type: Void, Operands: []Value{val, addr}})
	return val, nil
}

func (g *Generator) genCall(c *ast.Call) (Value, error) {
	args := make([]Value, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := g.genExpr(a)
		if err != nil {
			return Value{}, err
		}
		args = append(args, v)
	}
	retType := I32 // unreachable in a validated program: every callee is in g.funcRets
	if rt, ok := g.funcRets[c.Callee]; ok {
		retType, _ = cTypeToIRType(rt)
	}
	return g.emit(Instruction{Op: OpCall, Type: retType, Name: c.Callee, Args: args}), nil
}
