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

package sema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/parser"
)

func analyze(t *testing.T, src string) Result {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	return Analyze(prog)
}

func TestAnalyze_ValidProgramHasNoDiagnostics(t *testing.T) {
	res := analyze(t, "int add(int a, int b) { return a + b; } int main() { return add(1, 2); }")
	require.True(t, res.OK())
}

func TestAnalyze_UndeclaredIdentifier(t *testing.T) {
	res := analyze(t, "int main() { int x = undeclared_var; return 42; }")
	require.Len(t, res.Diagnostics, 1)
	require.Contains(t, res.Diagnostics[0].Message, "Undeclared identifier")
	require.Equal(t, 1, res.Diagnostics[0].Line)
}

func TestAnalyze_DuplicateDeclaration(t *testing.T) {
	res := analyze(t, "int main() { int x = 0; int x = 1; return x; }")
	require.False(t, res.OK())
	require.True(t, hasMessageContaining(res, "duplicate declaration"))
}

func TestAnalyze_ScopeExitRemovesSymbols(t *testing.T) {
	res := analyze(t, "int main() { { int x = 1; } int x = 2; return x; }")
	require.True(t, res.OK())
}

func TestAnalyze_ArityMismatch(t *testing.T) {
	res := analyze(t, "int add(int a, int b) { return a + b; } int main() { return add(1); }")
	require.False(t, res.OK())
	require.True(t, hasMessageContaining(res, "expects 2 argument"))
}

func TestAnalyze_ReturnTypeMismatch(t *testing.T) {
	res := analyze(t, "void f() { return 1; }")
	require.False(t, res.OK())
	require.True(t, hasMessageContaining(res, "cannot return"))
}

func TestAnalyze_ReturnMissingValue(t *testing.T) {
	res := analyze(t, "int f() { return; }")
	require.False(t, res.OK())
	require.True(t, hasMessageContaining(res, "must return a value"))
}

func TestAnalyze_PointerZeroAssignmentAllowed(t *testing.T) {
	res := analyze(t, "int main() { int *p = 0; return 0; }")
	require.True(t, res.OK())
}

func TestAnalyze_VoidPointerInterconverts(t *testing.T) {
	res := analyze(t, "void f(void *p) {} int main() { int *p; f(p); return 0; }")
	require.True(t, res.OK())
}

func TestAnalyze_BuiltinsTypecheck(t *testing.T) {
	res := analyze(t, "int main() { int x = min(1, 2); return x; }")
	require.True(t, res.OK())
}

func TestAnalyze_StructMemberTypeResolved(t *testing.T) {
	src := `
struct Point { int x; int y; };
int main() { struct Point p; int v = p.x; return v; }
`
	res := analyze(t, src)
	require.True(t, res.OK())
}

func hasMessageContaining(res Result, substr string) bool {
	for _, d := range res.Diagnostics {
		if strings.Contains(d.Message, substr) {
			return true
		}
	}
	return false
}
