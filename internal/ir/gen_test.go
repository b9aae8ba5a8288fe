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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/parser"
	"github.com/minic-lang/minic/internal/sema"
)

func genModule(t *testing.T, src string) *Module {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	res := sema.Analyze(prog)
	require.True(t, res.OK(), "%v", res.Diagnostics)
	mod, err := Generate(prog, res)
	require.NoError(t, err)
	return mod
}

func findFunc(t *testing.T, mod *Module, name string) Function {
	t.Helper()
	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}
	t.Fatalf("function %q not found", name)
	return Function{}
}

func blockLabels(fn Function) []string {
	labels := make([]string, len(fn.Body))
	for i, b := range fn.Body {
		labels[i] = b.Label
	}
	return labels
}

func TestGenerate_MinimalFunctionReturnsConstant(t *testing.T) {
	mod := genModule(t, "int main() { return 42; }")
	fn := findFunc(t, mod, "main")
	require.Equal(t, []string{"entry"}, blockLabels(fn))
	term, ok := fn.Body[0].Terminator()
	require.True(t, ok)
	require.Equal(t, OpRet, term.Op)
	require.True(t, term.Operands[0].IsConst)
	require.Equal(t, int64(42), term.Operands[0].Const)
	require.NoError(t, fn.Verify())
}

func TestGenerate_ParametersLowerToAllocaAndStore(t *testing.T) {
	mod := genModule(t, "int add(int a, int b) { return a + b; }")
	fn := findFunc(t, mod, "add")
	require.Equal(t, []Local{{Name: "a", Type: I32}, {Name: "b", Type: I32}}, fn.Params)

	var allocas, stores int
	for _, in := range fn.Body[0].Instructions {
		switch in.Op {
		case OpAlloca:
			allocas++
		case OpStore:
			stores++
		}
	}
	require.Equal(t, 2, allocas)
	require.Equal(t, 2, stores)
	require.NoError(t, fn.Verify())
}

func TestGenerate_IfElseProducesThenElseMergeBlocks(t *testing.T) {
	mod := genModule(t, `
int choose(int x) {
	if (x) {
		return 1;
	} else {
		return 2;
	}
}`)
	fn := findFunc(t, mod, "choose")
	require.Equal(t, []string{"entry", "then_1", "else_1", "merge_1"}, blockLabels(fn))
	require.NoError(t, fn.Verify())
}

func TestGenerate_IfWithoutElseSkipsElseBlock(t *testing.T) {
	mod := genModule(t, `
int choose(int x) {
	if (x) {
		x = 1;
	}
	return x;
}`)
	fn := findFunc(t, mod, "choose")
	require.Equal(t, []string{"entry", "then_1", "merge_1"}, blockLabels(fn))
	require.NoError(t, fn.Verify())
}

func TestGenerate_WhileLoopBlockLabels(t *testing.T) {
	mod := genModule(t, `
int count(int n) {
	int i = 0;
	while (i < n) {
		i = i + 1;
	}
	return i;
}`)
	fn := findFunc(t, mod, "count")
	require.Equal(t, []string{"entry", "while.cond", "while.body", "while.after"}, blockLabels(fn))
	require.NoError(t, fn.Verify())
}

func TestGenerate_ForLoopBlockLabels(t *testing.T) {
	mod := genModule(t, `
int sum(int n) {
	int s = 0;
	for (int i = 0; i < n; i = i + 1) {
		s = s + i;
	}
	return s;
}`)
	fn := findFunc(t, mod, "sum")
	require.Equal(t, []string{"entry", "for.cond", "for.body", "for.inc", "for.after"}, blockLabels(fn))
	require.NoError(t, fn.Verify())
}

func TestGenerate_GlobalVariableEmitted(t *testing.T) {
	mod := genModule(t, "int counter = 7; int main() { return counter; }")
	require.Len(t, mod.Globals, 1)
	require.Equal(t, "counter", mod.Globals[0].Name)
	require.True(t, mod.Globals[0].HasInit)
	require.Equal(t, int64(7), mod.Globals[0].Initializer)
}

func TestGenerate_RecursiveCallLowersToCallInstruction(t *testing.T) {
	mod := genModule(t, `
int fact(int n) {
	if (n <= 1) {
		return 1;
	}
	return n * fact(n - 1);
}`)
	fn := findFunc(t, mod, "fact")
	var foundCall bool
	for _, b := range fn.Body {
		for _, in := range b.Instructions {
			if in.Op == OpCall && in.Name == "fact" {
				foundCall = true
				require.Len(t, in.Args, 1)
			}
		}
	}
	require.True(t, foundCall)
	require.NoError(t, fn.Verify())
}

func TestGenerate_MissingReturnGetsImplicitZero(t *testing.T) {
	mod := genModule(t, "int f() { int x = 1; }")
	fn := findFunc(t, mod, "f")
	last := fn.Body[len(fn.Body)-1]
	term, ok := last.Terminator()
	require.True(t, ok)
	require.Equal(t, OpRet, term.Op)
	require.Len(t, term.Operands, 1)
	require.True(t, term.Operands[0].IsConst)
	require.Equal(t, int64(0), term.Operands[0].Const)
	require.NoError(t, fn.Verify())
}

func TestPrint_RendersGlobalAndFunction(t *testing.T) {
	mod := genModule(t, "int main() { return 1; }")
	text := Print(mod)
	require.Contains(t, text, "define i32 @main()")
	require.Contains(t, text, "entry:")
	require.Contains(t, text, "ret i32 1")
}

func findOp(t *testing.T, fn Function, op Op) Instruction {
	t.Helper()
	for _, b := range fn.Body {
		for _, in := range b.Instructions {
			if in.Op == op {
				return in
			}
		}
	}
	t.Fatalf("no %v instruction found in %s", op, fn.Name)
	return Instruction{}
}

func TestGenerate_ArrayElementAddressScalesByElementSize(t *testing.T) {
	mod := genModule(t, `
int get(int *arr, int i) {
	return arr[i];
}`)
	fn := findFunc(t, mod, "get")
	mul := findOp(t, fn, OpMul)
	require.True(t, mul.Operands[1].IsConst)
	require.Equal(t, int64(4), mul.Operands[1].Const, "int elements are 4 bytes, so the index must be scaled by 4")
	require.NoError(t, fn.Verify())
}

func TestGenerate_CharArrayElementAddressIsNotScaled(t *testing.T) {
	mod := genModule(t, `
char getc(char *s, int i) {
	return s[i];
}`)
	fn := findFunc(t, mod, "getc")
	for _, b := range fn.Body {
		for _, in := range b.Instructions {
			require.NotEqual(t, OpMul, in.Op, "single-byte elements need no scaling")
		}
	}
	require.NoError(t, fn.Verify())
}

func TestGenerate_StructMemberAccessUsesFieldOffset(t *testing.T) {
	mod := genModule(t, `
struct Point { int x; int y; };
int gety(struct Point *p) {
	return p->y;
}`)
	fn := findFunc(t, mod, "gety")
	add := findOp(t, fn, OpAdd)
	require.True(t, add.Operands[1].IsConst)
	require.Equal(t, int64(4), add.Operands[1].Const, "y follows a 4-byte int x, so its offset must be 4")
	require.NoError(t, fn.Verify())
}

func TestGenerate_StructFirstMemberHasZeroOffset(t *testing.T) {
	mod := genModule(t, `
struct Point { int x; int y; };
int getx(struct Point *p) {
	return p->x;
}`)
	fn := findFunc(t, mod, "getx")
	add := findOp(t, fn, OpAdd)
	require.True(t, add.Operands[1].IsConst)
	require.Equal(t, int64(0), add.Operands[1].Const)
	require.NoError(t, fn.Verify())
}

func TestGenerate_CallResultTypedByCalleeReturnType(t *testing.T) {
	mod := genModule(t, `
long widen(long x) {
	return x;
}
int main() {
	long v = widen(5);
	return 0;
}`)
	fn := findFunc(t, mod, "main")
	call := findOp(t, fn, OpCall)
	require.Equal(t, I64, call.Type)
	require.NoError(t, fn.Verify())
}

func TestGenerate_VoidCallProducesNoResultID(t *testing.T) {
	mod := genModule(t, `
void noop() {}
int main() {
	noop();
	return 0;
}`)
	fn := findFunc(t, mod, "main")
	call := findOp(t, fn, OpCall)
	require.Equal(t, Void, call.Type)
	require.Equal(t, 0, call.ID)
	require.NoError(t, fn.Verify())
}

func TestGenerate_ShortCircuitAndOr(t *testing.T) {
	mod := genModule(t, `
int both(int a, int b) {
	return a && b;
}
int either(int a, int b) {
	return a || b;
}`)
	fn := findFunc(t, mod, "both")
	require.NoError(t, fn.Verify())
	fn2 := findFunc(t, mod, "either")
	require.NoError(t, fn2.Verify())
}
