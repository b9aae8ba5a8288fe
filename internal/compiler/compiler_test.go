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

package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/ir"
)

func TestCompile_S1_MinimumProgram(t *testing.T) {
	res, err := Compile([]byte("int main() { return 42; }"))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, ".text")
	require.Contains(t, res.Assembly, ".globl main")
	require.Contains(t, res.Assembly, "main:")
	require.Contains(t, res.Assembly, "push rbp")
	require.Contains(t, res.Assembly, "mov $42, rax")
	require.Contains(t, res.Assembly, "pop rbp")
	require.Contains(t, res.Assembly, "ret")

	require.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, res.Object[0:4])
	require.Equal(t, byte(2), res.Object[4])
	require.Equal(t, byte(1), res.Object[5])
	require.Equal(t, byte(0x01), res.Object[16])
	require.Equal(t, byte(0x00), res.Object[17])
	require.Equal(t, byte(0x3E), res.Object[18])
}

func TestCompile_S2_ParametersAndCalls(t *testing.T) {
	res, err := Compile([]byte(`
int add(int a, int b) { return a + b; }
int main() { int result = add(5, 3); return result; }
`))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, ".globl add")
	require.Contains(t, res.Assembly, "call add")
	require.Contains(t, res.Assembly, "mov $5, rdi")
	require.Contains(t, res.Assembly, "mov $3, rsi")
	require.Len(t, res.IR.Functions, 2)

	var main ir.Function
	for _, fn := range res.IR.Functions {
		if fn.Name == "main" {
			main = fn
		}
	}
	var callArgs int
	for _, b := range main.Body {
		for _, in := range b.Instructions {
			if in.Op == ir.OpCall {
				callArgs = len(in.Args)
			}
		}
	}
	require.Equal(t, 2, callArgs)
}

func TestCompile_S3_ControlFlow(t *testing.T) {
	res, err := Compile([]byte("int main() { int x = 5; if (x > 0) { return 1; } else { return 0; } }"))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, "cmp")
	require.Contains(t, res.Assembly, "jne")
	require.Contains(t, res.Assembly, "jmp")
	require.Contains(t, res.Assembly, "then_")
	require.Contains(t, res.Assembly, "else_")
	require.Contains(t, res.Assembly, "merge_")

	var main ir.Function
	for _, fn := range res.IR.Functions {
		if fn.Name == "main" {
			main = fn
		}
	}
	require.GreaterOrEqual(t, len(main.Body), 3)
}

func TestCompile_S4_Loop(t *testing.T) {
	res, err := Compile([]byte("int main() { int sum = 0; for (int i = 0; i < 5; i = i + 1) { sum = sum + i; } return sum; }"))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, "for.cond")
	require.Contains(t, res.Assembly, "for.body")
	require.Contains(t, res.Assembly, "for.inc")
	require.Contains(t, res.Assembly, "for.after")
}

func TestCompile_S5_GlobalData(t *testing.T) {
	res, err := Compile([]byte("int global_var = 12345; int main() { return global_var; }"))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, ".data")
	require.Contains(t, res.Assembly, ".globl global_var")
	require.Contains(t, res.Assembly, "global_var:")
	require.Contains(t, res.Assembly, ".long 12345")
	require.Contains(t, string(res.Object), string([]byte{0x39, 0x30, 0x00, 0x00}))
}

func TestCompile_S6_Recursion(t *testing.T) {
	res, err := Compile([]byte(`
int factorial(int n) {
	if (n <= 1) {
		return 1;
	}
	return n * factorial(n - 1);
}
int main() { return factorial(5); }
`))
	require.NoError(t, err)
	require.Contains(t, res.Assembly, "factorial:")
	require.Contains(t, res.Assembly, "call factorial")
	require.Contains(t, res.Assembly, "imul")
	require.Contains(t, res.Assembly, "sub")

	var factorial ir.Function
	for _, fn := range res.IR.Functions {
		if fn.Name == "factorial" {
			factorial = fn
		}
	}
	require.Greater(t, len(factorial.Body), 2)
}

func TestCompile_S7_Diagnostics(t *testing.T) {
	res, err := Compile([]byte("int main() { int x = undeclared_var; return 42; }"))
	require.Error(t, err)
	var semErr *SemanticErrors
	require.ErrorAs(t, err, &semErr)
	require.Len(t, semErr.Diagnostics, 1)
	require.Contains(t, semErr.Diagnostics[0].Message, "Undeclared identifier")
	require.Equal(t, 1, semErr.Diagnostics[0].Line)
	require.Len(t, res.Diagnostics, 1)
}

func TestCompile_DeterministicObjectOutput(t *testing.T) {
	src := []byte("int main() { return 7; }")
	first, err := Compile(src)
	require.NoError(t, err)
	second, err := Compile(src)
	require.NoError(t, err)
	require.Equal(t, first.Object, second.Object)
	require.Equal(t, first.Assembly, second.Assembly)
}

func TestCompile_LexErrorAbortsPipeline(t *testing.T) {
	_, err := Compile([]byte("int main() { return `oops; }"))
	require.Error(t, err)
}

func TestCompile_ParseErrorAbortsPipeline(t *testing.T) {
	_, err := Compile([]byte("int main( { return 1; }"))
	require.Error(t, err)
}
