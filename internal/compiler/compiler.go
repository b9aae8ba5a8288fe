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

// Package compiler wires the six core stages — lexer, parser,
// semantic analyzer, IR generator, assembly emitter, and ELF writer —
// into the single forward pipeline the rest of this project drives.
package compiler

import (
	"fmt"
	"strings"

	"github.com/minic-lang/minic/internal/ast"
	"github.com/minic-lang/minic/internal/asmgen"
	"github.com/minic-lang/minic/internal/elfobj"
	"github.com/minic-lang/minic/internal/ir"
	"github.com/minic-lang/minic/internal/lexer"
	"github.com/minic-lang/minic/internal/parser"
	"github.com/minic-lang/minic/internal/sema"
	"github.com/minic-lang/minic/internal/token"
)

// Result carries every intermediate artifact a caller may want to
// inspect (the cmd/minic driver's --emit flag surfaces these), plus
// the final ELF object.
type Result struct {
	Tokens      []token.Token
	AST         *ast.Program
	Diagnostics []sema.Diagnostic
	IR          *ir.Module
	Assembly    string
	Object      []byte
}

// SemanticErrors wraps a non-empty batch of diagnostics returned by
// the analyzer. The pipeline halts here: IR generation never runs
// against a program with outstanding diagnostics.
type SemanticErrors struct {
	Diagnostics []sema.Diagnostic
}

func (e *SemanticErrors) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return fmt.Sprintf("%d semantic error(s):\n%s", len(e.Diagnostics), strings.Join(msgs, "\n"))
}

// Compile runs the full pipeline over source, producing a relocatable
// ELF64 object. Lex and parse errors abort immediately; semantic
// errors are returned as a batch via SemanticErrors; anything past
// that point failing indicates a compiler bug, not a user error.
func Compile(source []byte) (*Result, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}

	prog, err := parser.Parse(toks)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	res := sema.Analyze(prog)
	if !res.OK() {
		return &Result{Tokens: toks, AST: prog, Diagnostics: res.Diagnostics}, &SemanticErrors{Diagnostics: res.Diagnostics}
	}

	mod, err := ir.Generate(prog, res)
	if err != nil {
		return nil, fmt.Errorf("ir generation: %w", err)
	}

	asmProg, err := asmgen.Emit(mod)
	if err != nil {
		return nil, fmt.Errorf("assembly emission: %w", err)
	}
	asmText := asmProg.Render()

	obj, err := elfobj.Write(asmText)
	if err != nil {
		return nil, fmt.Errorf("elf writing: %w", err)
	}

	return &Result{
		Tokens:   toks,
		AST:      prog,
		IR:       mod,
		Assembly: asmText,
		Object:   obj,
	}, nil
}
