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

package asmgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/ir"
	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/parser"
	"github.com/minic-lang/minic/internal/sema"
)

func compileToAsm(t *testing.T, src string) string {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	res := sema.Analyze(prog)
	require.True(t, res.OK(), "%v", res.Diagnostics)
	mod, err := ir.Generate(prog, res)
	require.NoError(t, err)
	asm, err := Emit(mod)
	require.NoError(t, err)
	return asm.Render()
}

func TestEmit_MinimumProgram(t *testing.T) {
	text := compileToAsm(t, "int main() { return 42; }")
	for _, want := range []string{".text", ".globl main", "main:", "push rbp", "mov $42, rax", "pop rbp", "ret"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_ParametersAndCalls(t *testing.T) {
	text := compileToAsm(t, `
int add(int a, int b) { return a + b; }
int main() { int result = add(5, 3); return result; }
`)
	for _, want := range []string{".globl add", "call add", "mov $5, rdi", "mov $3, rsi"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_ControlFlowEmitsComparisonAndBranches(t *testing.T) {
	text := compileToAsm(t, "int main() { int x = 5; if (x > 0) { return 1; } else { return 0; } }")
	for _, want := range []string{"cmp", "jne", "jmp", "then_", "else_", "merge_"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_ForLoopLabels(t *testing.T) {
	text := compileToAsm(t, "int main() { int sum = 0; for (int i = 0; i < 5; i = i + 1) { sum = sum + i; } return sum; }")
	for _, want := range []string{"for.cond", "for.body", "for.inc", "for.after"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_GlobalDataSection(t *testing.T) {
	text := compileToAsm(t, "int global_var = 12345; int main() { return global_var; }")
	for _, want := range []string{".data", ".globl global_var", "global_var:", ".long 12345"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_RecursionUsesImulAndCall(t *testing.T) {
	text := compileToAsm(t, `
int factorial(int n) {
	if (n <= 1) {
		return 1;
	}
	return n * factorial(n - 1);
}`)
	for _, want := range []string{"factorial:", "call factorial", "imul", "sub"} {
		require.Contains(t, text, want)
	}
}

func TestEmit_DeterministicAcrossRuns(t *testing.T) {
	src := "int main() { return 7; }"
	first := compileToAsm(t, src)
	second := compileToAsm(t, src)
	require.Equal(t, first, second)
}
