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

// Package token defines the lexical units produced by the lexer and
// consumed by the parser.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	EOF Kind = iota

	// Literals and identifiers.
	Identifier
	Number
	String
	Character
	Preprocessor // raw "#..." tail, including #line markers

	// Keywords.
	KwInt
	KwChar
	KwVoid
	KwLong
	KwShort
	KwUnsigned
	KwSigned
	KwIf
	KwElse
	KwWhile
	KwFor
	KwReturn
	KwStruct
	KwUnion
	KwEnum
	KwSizeof
	KwAsm
	KwVolatile
	KwStatic
	KwExtern
	KwConst
	KwInline
	KwTypedef
	KwSwitch
	KwCase
	KwDefault
	KwBreak
	KwContinue
	KwFloat
	KwDouble

	// Punctuators and operators.
	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	LBracket  // [
	RBracket  // ]
	Semicolon // ;
	Comma     // ,
	Dot       // .
	Arrow     // ->
	Ellipsis  // ...

	Assign // =
	Plus   // +
	Minus  // -
	Star   // *
	Slash  // /
	Percent

	Amp    // &
	Pipe   // |
	Caret  // ^
	Tilde  // ~
	Bang   // !
	AmpAmp // &&
	PipePipe

	Eq // ==
	Ne // !=
	Lt
	Le
	Gt
	Ge

	Shl // <<
	Shr // >>

	PlusPlus
	MinusMinus

	ShlAssign // <<=
	ShrAssign // >>=

	Colon
	Question
)

var keywords = map[string]Kind{
	"int":      KwInt,
	"char":     KwChar,
	"void":     KwVoid,
	"long":     KwLong,
	"short":    KwShort,
	"unsigned": KwUnsigned,
	"signed":   KwSigned,
	"if":       KwIf,
	"else":     KwElse,
	"while":    KwWhile,
	"for":      KwFor,
	"return":   KwReturn,
	"struct":   KwStruct,
	"union":    KwUnion,
	"enum":     KwEnum,
	"sizeof":   KwSizeof,
	"asm":      KwAsm,
	"volatile": KwVolatile,
	"static":   KwStatic,
	"extern":   KwExtern,
	"const":    KwConst,
	"inline":   KwInline,
	"typedef":  KwTypedef,
	"switch":   KwSwitch,
	"case":     KwCase,
	"default":  KwDefault,
	"break":    KwBreak,
	"continue": KwContinue,
	"float":    KwFloat,
	"double":   KwDouble,
}

// LookupKeyword reports whether ident names a reserved keyword and
// returns its Kind.
func LookupKeyword(ident string) (Kind, bool) {
	k, ok := keywords[ident]
	return k, ok
}

// IsTypeKeyword reports whether kind introduces a type specifier at the
// start of a declaration.
func IsTypeKeyword(kind Kind) bool {
	switch kind {
	case KwInt, KwChar, KwVoid, KwStruct, KwLong, KwShort, KwUnsigned, KwSigned, KwFloat, KwDouble:
		return true
	default:
		return false
	}
}

// Token is a single lexical unit: a kind tag, its literal spelling, and
// its source position. Produced once by the lexer and consumed once by
// the parser.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Lexeme, t.Line, t.Column)
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var kindNames = map[Kind]string{
	EOF:          "EOF",
	Identifier:   "Identifier",
	Number:       "Number",
	String:       "String",
	Character:    "Character",
	Preprocessor: "Preprocessor",
	LParen:       "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", RBracket: "]", Semicolon: ";", Comma: ",",
	Dot: ".", Arrow: "->", Ellipsis: "...",
	Assign: "=", Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	Amp: "&", Pipe: "|", Caret: "^", Tilde: "~", Bang: "!",
	AmpAmp: "&&", PipePipe: "||",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	Shl: "<<", Shr: ">>", PlusPlus: "++", MinusMinus: "--",
	ShlAssign: "<<=", ShrAssign: ">>=",
	Colon: ":", Question: "?",
}

func init() {
	for spelling, kind := range keywords {
		kindNames[kind] = spelling
	}
}
