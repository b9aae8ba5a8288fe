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

package elfobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minic-lang/minic/internal/asmgen"
	"github.com/minic-lang/minic/internal/ir"
	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/parser"
	"github.com/minic-lang/minic/internal/sema"
)

func compileToELF(t *testing.T, src string) []byte {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	res := sema.Analyze(prog)
	require.True(t, res.OK(), "%v", res.Diagnostics)
	mod, err := ir.Generate(prog, res)
	require.NoError(t, err)
	asm, err := asmgen.Emit(mod)
	require.NoError(t, err)
	out, err := Write(asm.Render())
	require.NoError(t, err)
	return out
}

func TestWrite_MinimumProgramHeaderBytes(t *testing.T) {
	buf := compileToELF(t, "int main() { return 42; }")
	require.GreaterOrEqual(t, len(buf), 64)
	require.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, buf[0:4])
	require.Equal(t, byte(2), buf[4])
	require.Equal(t, byte(1), buf[5])
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(buf[16:18]))
	require.Equal(t, uint16(0x3E), binary.LittleEndian.Uint16(buf[18:20]))
}

func TestWrite_SectionCountAndIndexInvariants(t *testing.T) {
	buf := compileToELF(t, "int main() { return 42; }")
	shnum := binary.LittleEndian.Uint16(buf[60:62])
	shstrndx := binary.LittleEndian.Uint16(buf[62:64])
	require.GreaterOrEqual(t, shnum, uint16(2))
	require.Less(t, shstrndx, shnum)
}

func TestWrite_GlobalDataAppearsInPayload(t *testing.T) {
	buf := compileToELF(t, "int global_var = 12345; int main() { return global_var; }")
	want := []byte{0x39, 0x30, 0x00, 0x00} // 12345 little-endian
	require.Contains(t, string(buf), string(want))
}

func TestWrite_DeterministicAcrossRuns(t *testing.T) {
	src := "int add(int a, int b) { return a + b; } int main() { return add(1, 2); }"
	first := compileToELF(t, src)
	second := compileToELF(t, src)
	require.Equal(t, first, second)
}

func TestParseSections_SplitsOnNonDataDirectives(t *testing.T) {
	asm := ".text\n.globl main\nmain:\npush rbp\n.data\n.globl g\ng:\n.long 5\n"
	sections := parseSections(asm)
	require.Len(t, sections, 2)
	require.Equal(t, ".text", sections[0].name)
	require.Equal(t, ".data", sections[1].name)
}

func TestWrite_EmptyInputStillProducesValidHeader(t *testing.T) {
	buf, err := Write(".text\n")
	require.NoError(t, err)
	require.Equal(t, []byte{0x7F, 'E', 'L', 'F'}, buf[0:4])
}
