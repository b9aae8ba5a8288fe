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

import "github.com/minic-lang/minic/internal/types"

// SymbolKind distinguishes what a Symbol names.
type SymbolKind int

const (
	KindVariable SymbolKind = iota
	KindParameter
	KindFunction
)

// Symbol is one entry in the SymbolTable.
type Symbol struct {
	Name       string
	Type       types.Type
	Kind       SymbolKind
	ScopeLevel int
	DeclLine   int
	DeclColumn int

	// Set only when Kind == KindFunction.
	ReturnType types.Type
	Parameters []types.Type
	Variadic   bool
}

// SymbolTable maps a name to a stack of entries ordered by scope
// depth. Within one scope, names must be unique; on scope exit, all
// entries declared at that depth are removed.
type SymbolTable struct {
	entries map[string][]Symbol
	depth   int
}

// NewSymbolTable creates an empty table at scope depth zero.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{entries: make(map[string][]Symbol)}
}

// Enter opens a new, deeper scope.
func (st *SymbolTable) Enter() { st.depth++ }

// Exit closes the current scope, removing every symbol declared at
// this depth before any sibling scope can declare names at the same
// depth again.
func (st *SymbolTable) Exit() {
	for name, stack := range st.entries {
		for len(stack) > 0 && stack[len(stack)-1].ScopeLevel == st.depth {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			delete(st.entries, name)
		} else {
			st.entries[name] = stack
		}
	}
	st.depth--
}

// Depth returns the current scope depth.
func (st *SymbolTable) Depth() int { return st.depth }

// DeclaredInCurrentScope reports whether name already has an entry at
// the current depth (a duplicate declaration).
func (st *SymbolTable) DeclaredInCurrentScope(name string) bool {
	stack := st.entries[name]
	if len(stack) == 0 {
		return false
	}
	return stack[len(stack)-1].ScopeLevel == st.depth
}

// Declare adds sym at the current scope depth. Callers must check
// DeclaredInCurrentScope first to enforce the uniqueness invariant.
func (st *SymbolTable) Declare(sym Symbol) {
	sym.ScopeLevel = st.depth
	st.entries[sym.Name] = append(st.entries[sym.Name], sym)
}

// Lookup returns the innermost-scope entry for name, if any.
func (st *SymbolTable) Lookup(name string) (Symbol, bool) {
	stack := st.entries[name]
	if len(stack) == 0 {
		return Symbol{}, false
	}
	return stack[len(stack)-1], true
}
