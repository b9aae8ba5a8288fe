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

package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/ast"
	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/token"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := Parse(toks)
	require.NoError(t, err)
	return prog
}

func TestParse_MinimalFunction(t *testing.T) {
	prog := parse(t, "int main() { return 42; }")
	require.Len(t, prog.Declarations, 1)
	fn, ok := prog.Declarations[0].(*ast.FunctionDecl)
	require.True(t, ok)
	require.Equal(t, "main", fn.Name)
	require.NotNil(t, fn.Body)
	require.Len(t, fn.Body.Statements, 1)
	ret, ok := fn.Body.Statements[0].(*ast.ReturnStmt)
	require.True(t, ok)
	num, ok := ret.Value.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, "42", num.Lexeme)
}

func TestParse_ParametersAndCall(t *testing.T) {
	src := `
int add(int a, int b) { return a + b; }
int main() { int result = add(5, 3); return result; }
`
	prog := parse(t, src)
	require.Len(t, prog.Declarations, 2)
	main := prog.Declarations[1].(*ast.FunctionDecl)
	decl := main.Body.Statements[0].(*ast.Declaration)
	call := decl.Initializer.(*ast.Call)
	require.Equal(t, "add", call.Callee)
	require.Len(t, call.Args, 2)
}

func TestParse_VoidParameterList(t *testing.T) {
	prog := parse(t, "int foo(void) { return 0; }")
	fn := prog.Declarations[0].(*ast.FunctionDecl)
	require.Empty(t, fn.Params)
}

func TestParse_IfElse(t *testing.T) {
	prog := parse(t, "int main() { int x = 5; if (x > 0) { return 1; } else { return 0; } }")
	fn := prog.Declarations[0].(*ast.FunctionDecl)
	ifStmt := fn.Body.Statements[1].(*ast.IfStmt)
	require.NotNil(t, ifStmt.Then)
	require.NotNil(t, ifStmt.Else)
	cmp := ifStmt.Cond.(*ast.Binary)
	require.Equal(t, ast.OpGt, cmp.Op)
}

func TestParse_ForLoop(t *testing.T) {
	src := "int main() { int sum = 0; for (int i = 0; i < 5; i = i + 1) { sum = sum + i; } return sum; }"
	prog := parse(t, src)
	fn := prog.Declarations[0].(*ast.FunctionDecl)
	forStmt := fn.Body.Statements[1].(*ast.ForStmt)
	require.NotNil(t, forStmt.Init)
	require.NotNil(t, forStmt.Cond)
	require.NotNil(t, forStmt.Post)
}

func TestParse_AssignmentTargetRestriction(t *testing.T) {
	_, err := Parse(tokenize(t, "int main() { 1 = 2; }"))
	require.Error(t, err)
}

func TestParse_StructDeclaration(t *testing.T) {
	src := `
struct Point { int x; int y; };
int main() { struct Point p; return 0; }
`
	prog := parse(t, src)
	sd := prog.Declarations[0].(*ast.StructDecl)
	require.Equal(t, "Point", sd.Name)
	require.Len(t, sd.Members, 2)
}

func TestParse_ArrayDeclaratorPromotesToPointer(t *testing.T) {
	prog := parse(t, "int buf[16]; int main() { return 0; }")
	decl := prog.Declarations[0].(*ast.Declaration)
	require.Equal(t, 1, decl.Type.PointerCount)
}

func TestParse_CastDisambiguation(t *testing.T) {
	prog := parse(t, "int main() { int x = (int)(1 + 2); return x; }")
	fn := prog.Declarations[0].(*ast.FunctionDecl)
	decl := fn.Body.Statements[0].(*ast.Declaration)
	cast, ok := decl.Initializer.(*ast.Cast)
	require.True(t, ok)
	require.Equal(t, "int", cast.Type.BaseName)
}

func TestParse_AsmAndAttributeTolerance(t *testing.T) {
	src := `
__init
EXPORT_SYMBOL(my_func);
int my_func() { asm volatile ("nop"); return 0; }
`
	prog := parse(t, src)
	require.IsType(t, &ast.Attribute{}, prog.Declarations[0])
	require.IsType(t, &ast.Attribute{}, prog.Declarations[1])
	fn := prog.Declarations[2].(*ast.FunctionDecl)
	require.IsType(t, &ast.AsmStatement{}, fn.Body.Statements[0])
}

func TestParse_MissingTokenProducesParseError(t *testing.T) {
	_, err := Parse(tokenize(t, "int main() { return 42 }"))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	return toks
}
