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

// Package types is the shared C type representation used by the
// semantic analyzer and the IR generator.
package types

import "fmt"

// Base is the closed set of base types the analyzer understands.
type Base int

const (
	INT Base = iota
	CHAR
	VOID
	LONG
	FLOAT
	DOUBLE
	STRUCT
)

func (b Base) String() string {
	switch b {
	case INT:
		return "int"
	case CHAR:
		return "char"
	case VOID:
		return "void"
	case LONG:
		return "long"
	case FLOAT:
		return "float"
	case DOUBLE:
		return "double"
	case STRUCT:
		return "struct"
	default:
		return fmt.Sprintf("Base(%d)", int(b))
	}
}

// Type is a C type: a base type plus a pointer depth. Structural
// equality ignores StructName except when Base == STRUCT.
type Type struct {
	Base         Base
	PointerCount int
	StructName   string
}

// IsPointer reports whether t has pointer depth greater than zero.
func (t Type) IsPointer() bool { return t.PointerCount > 0 }

// IsNumeric reports whether t is one of the scalar arithmetic base
// types (not a pointer, not void, not struct).
func (t Type) IsNumeric() bool {
	if t.IsPointer() {
		return false
	}
	switch t.Base {
	case INT, CHAR, LONG, FLOAT, DOUBLE:
		return true
	default:
		return false
	}
}

// IsFloating reports whether t is FLOAT or DOUBLE and not a pointer.
func (t Type) IsFloating() bool {
	return !t.IsPointer() && (t.Base == FLOAT || t.Base == DOUBLE)
}

// Equal reports structural equality: same base, same pointer depth,
// and (for STRUCT) the same struct name.
func (t Type) Equal(o Type) bool {
	if t.Base != o.Base || t.PointerCount != o.PointerCount {
		return false
	}
	if t.Base == STRUCT {
		return t.StructName == o.StructName
	}
	return true
}

// Pointer returns t with its pointer depth incremented by one.
func (t Type) Pointer() Type {
	t.PointerCount++
	return t
}

// Deref returns t with its pointer depth decremented by one. Callers
// must check IsPointer first.
func (t Type) Deref() Type {
	t.PointerCount--
	return t
}

// rank orders numeric base types for usual-arithmetic-conversion
// purposes: DOUBLE > FLOAT > LONG > INT > CHAR.
func (b Base) rank() int {
	switch b {
	case DOUBLE:
		return 4
	case FLOAT:
		return 3
	case LONG:
		return 2
	case INT:
		return 1
	case CHAR:
		return 0
	default:
		return -1
	}
}

// Promote returns the usual-arithmetic-conversion result type of two
// numeric, non-pointer types.
func Promote(a, b Type) Type {
	if a.Base.rank() >= b.Base.rank() {
		return Type{Base: a.Base}
	}
	return Type{Base: b.Base}
}

func (t Type) String() string {
	s := t.Base.String()
	if t.Base == STRUCT && t.StructName != "" {
		s = "struct " + t.StructName
	}
	for i := 0; i < t.PointerCount; i++ {
		s += "*"
	}
	return s
}

// Common convenience constructors.
var (
	Int    = Type{Base: INT}
	Char   = Type{Base: CHAR}
	Void   = Type{Base: VOID}
	Long   = Type{Base: LONG}
	Float  = Type{Base: FLOAT}
	Double = Type{Base: DOUBLE}
)
