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

// Package parser is a recursive-descent parser with precedence
// climbing over the token sequence produced by internal/lexer. It
// never attempts error recovery: the first malformed construct stops
// the parse and returns a *Error.
package parser

import (
	"fmt"

	"github.com/minic-lang/minic/internal/ast"
	"github.com/minic-lang/minic/internal/token"
)

// Error reports an unexpected token during parsing.
type Error struct {
	Expected string
	Got      token.Token
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: expected %s, got %s", e.Got.Line, e.Got.Column, e.Expected, e.Got.Kind)
}

// Parser consumes a token sequence and builds an AST.
type Parser struct {
	toks []token.Token
	pos  int
}

// New creates a Parser over toks. toks must end in a single EOF token,
// as produced by lexer.Tokenize.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse tokenizes nothing itself; it parses an already-lexed token
// sequence into a Program. Callers combine this with lexer.Tokenize.
func Parse(toks []token.Token) (*ast.Program, error) {
	return New(toks).parseProgram()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) peek(n int) token.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind, what string) (token.Token, error) {
	if !p.check(k) {
		return token.Token{}, &Error{Expected: what, Got: p.cur()}
	}
	return p.advance(), nil
}

func pos(t token.Token) ast.Position { return ast.NewPosition(t.Line, t.Column) }

// parseProgram is the entry point: Program := (Declaration)* EOF.
func (p *Parser) parseProgram() (*ast.Program, error) {
	start := p.cur()
	prog := &ast.Program{Base: ast.NewBase(pos(start))}
	for !p.check(token.EOF) {
		if p.check(token.Preprocessor) {
			p.advance()
			continue
		}
		decl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		if decl != nil {
			prog.Declarations = append(prog.Declarations, decl)
		}
	}
	return prog, nil
}

// parseTopLevel accepts a declaration introduced by a type specifier
// keyword, a struct declaration, or a tolerated attribute/EXPORT_SYMBOL
// call.
func (p *Parser) parseTopLevel() (ast.Node, error) {
	if p.check(token.KwStruct) {
		return p.parseStructDecl(true)
	}
	// Tolerate leading storage-class/qualifier keywords before a type.
	for p.check(token.KwStatic) || p.check(token.KwExtern) || p.check(token.KwConst) ||
		p.check(token.KwInline) || p.check(token.KwVolatile) || p.check(token.KwTypedef) {
		p.advance()
	}
	if token.IsTypeKeyword(p.cur().Kind) {
		return p.parseDeclOrFunction(true)
	}
	// Tolerated opaque attribute/EXPORT_SYMBOL-style top-level forms.
	if p.check(token.Identifier) {
		return p.parseAttribute()
	}
	return nil, &Error{Expected: "declaration", Got: p.cur()}
}

// parseAttribute accepts `IDENT(args...);` or a bare `IDENT` used as
// a kernel-style attribute marker, with or without a trailing `;`.
func (p *Parser) parseAttribute() (ast.Node, error) {
	name := p.advance()
	attr := &ast.Attribute{Base: ast.NewBase(pos(name)), Name: name.Lexeme}
	if p.match(token.LParen) {
		for !p.check(token.RParen) {
			arg := p.advance()
			attr.Args = append(attr.Args, arg.Lexeme)
			if !p.match(token.Comma) {
				break
			}
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
	} else {
		p.match(token.Semicolon) // bare marker: the ';' is optional
		return attr, nil
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return attr, nil
}

// parseTypeSpecifier parses a leading type keyword plus any `*`
// pointer markers. `struct Name` is always accepted.
func (p *Parser) parseTypeSpecifier() (ast.TypeSpecifier, error) {
	start := p.cur()
	ts := ast.TypeSpecifier{Base: ast.NewBase(pos(start))}

	// Tolerate unsigned/signed/long/short combinations. unsigned, signed
	// and short do not change representation, so a following base
	// keyword decides BaseName; `long` (alone or with `int`) gives
	// "long", and unsigned/signed/short with no base keyword give "int".
	sawLong := false
	sawIntModifier := false
	for {
		switch p.cur().Kind {
		case token.KwUnsigned, token.KwSigned, token.KwShort:
			sawIntModifier = true
			p.advance()
			continue
		case token.KwConst, token.KwVolatile:
			p.advance()
			continue
		case token.KwLong:
			sawLong = true
			p.advance()
			continue
		}
		break
	}
	switch p.cur().Kind {
	case token.KwInt:
		ts.BaseName = "int"
		p.advance()
	case token.KwChar:
		ts.BaseName = "char"
		p.advance()
	case token.KwVoid:
		ts.BaseName = "void"
		p.advance()
	case token.KwLong:
		ts.BaseName = "long"
		p.advance()
	case token.KwFloat:
		ts.BaseName = "float"
		p.advance()
	case token.KwDouble:
		ts.BaseName = "double"
		p.advance()
	case token.KwStruct:
		p.advance()
		name, err := p.expect(token.Identifier, "struct tag")
		if err != nil {
			return ts, err
		}
		ts.BaseName = "struct"
		ts.StructName = name.Lexeme
	default:
		if sawLong {
			ts.BaseName = "long"
		} else if sawIntModifier {
			ts.BaseName = "int"
		} else {
			return ts, &Error{Expected: "type specifier", Got: p.cur()}
		}
	}
	if sawLong && ts.BaseName == "int" {
		ts.BaseName = "long"
	}
	for p.match(token.Star) {
		ts.PointerCount++
	}
	return ts, nil
}

// parseDeclOrFunction parses `Type Name ...` at either top level or
// local scope, disambiguating a function definition/prototype from a
// variable declaration by the token after the name.
func (p *Parser) parseDeclOrFunction(topLevel bool) (ast.Node, error) {
	startTok := p.cur()
	ts, err := p.parseTypeSpecifier()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Identifier, "identifier")
	if err != nil {
		return nil, err
	}

	if p.check(token.LParen) {
		return p.parseFunction(startTok, ts, nameTok, topLevel)
	}

	decl, err := p.parseDeclaratorTail(startTok, ts, nameTok, topLevel)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseDeclaratorTail parses the array-suffix / initializer of a
// single variable declarator. Array declarators `[size]` promote the
// type to a pointer.
func (p *Parser) parseDeclaratorTail(startTok token.Token, ts ast.TypeSpecifier, nameTok token.Token, isGlobal bool) (*ast.Declaration, error) {
	decl := &ast.Declaration{Base: ast.NewBase(pos(startTok)), Name: nameTok.Lexeme, Type: ts, IsGlobal: isGlobal}
	if p.match(token.LBracket) {
		if !p.check(token.RBracket) {
			// Array size is parsed and discarded; minic only tracks
			// the promoted pointer type, per spec.md §4.2.
			if _, err := p.parseExpression(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RBracket, "']'"); err != nil {
			return nil, err
		}
		decl.Type.PointerCount++
	}
	if p.match(token.Assign) {
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		decl.Initializer = value
	}
	return decl, nil
}

// parseFunction parses a parameter list and either a `;` (prototype)
// or a compound statement (definition). `(void)` produces an empty
// parameter list.
func (p *Parser) parseFunction(startTok token.Token, ts ast.TypeSpecifier, nameTok token.Token, topLevel bool) (*ast.FunctionDecl, error) {
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	fn := &ast.FunctionDecl{Base: ast.NewBase(pos(startTok)), Name: nameTok.Lexeme, ReturnType: ts}

	if p.check(token.KwVoid) && p.peek(1).Kind == token.RParen {
		p.advance()
	} else if !p.check(token.RParen) {
		for {
			if p.match(token.Ellipsis) {
				fn.Variadic = true
				break
			}
			paramStart := p.cur()
			paramTS, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			paramName := ""
			if p.check(token.Identifier) {
				paramName = p.advance().Lexeme
			}
			if p.match(token.LBracket) {
				if !p.check(token.RBracket) {
					if _, err := p.parseExpression(); err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(token.RBracket, "']'"); err != nil {
					return nil, err
				}
				paramTS.PointerCount++
			}
			fn.Params = append(fn.Params, ast.Parameter{Base: ast.NewBase(pos(paramStart)), Name: paramName, Type: paramTS})
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}

	if p.match(token.Semicolon) {
		return fn, nil // prototype
	}
	body, err := p.parseCompoundStmt()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

// parseStructDecl parses `struct Name { member-list } vars;` or a
// forward reference `struct Name;`.
func (p *Parser) parseStructDecl(topLevel bool) (ast.Node, error) {
	startTok := p.advance() // 'struct'
	name, err := p.expect(token.Identifier, "struct tag")
	if err != nil {
		return nil, err
	}
	sd := &ast.StructDecl{Base: ast.NewBase(pos(startTok)), Name: name.Lexeme}

	if p.match(token.LBrace) {
		for !p.check(token.RBrace) {
			memberTS, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			memberName, err := p.expect(token.Identifier, "member name")
			if err != nil {
				return nil, err
			}
			if p.match(token.LBracket) {
				if !p.check(token.RBracket) {
					if _, err := p.parseExpression(); err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(token.RBracket, "']'"); err != nil {
					return nil, err
				}
				memberTS.PointerCount++
			}
			sd.Members = append(sd.Members, ast.StructMember{Name: memberName.Lexeme, Type: memberTS})
			if _, err := p.expect(token.Semicolon, "';'"); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RBrace, "'}'"); err != nil {
			return nil, err
		}
	}

	ts := ast.TypeSpecifier{BaseName: "struct", StructName: sd.Name}
	for !p.check(token.Semicolon) {
		varName, err := p.expect(token.Identifier, "variable name")
		if err != nil {
			return nil, err
		}
		decl, err := p.parseDeclaratorTail(startTok, ts, varName, topLevel)
		if err != nil {
			return nil, err
		}
		sd.Vars = append(sd.Vars, *decl)
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return sd, nil
}

// parseCompoundStmt := '{' Stmt* '}'.
func (p *Parser) parseCompoundStmt() (*ast.CompoundStmt, error) {
	open, err := p.expect(token.LBrace, "'{'")
	if err != nil {
		return nil, err
	}
	block := &ast.CompoundStmt{Base: ast.NewBase(pos(open))}
	for !p.check(token.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, s)
	}
	if _, err := p.expect(token.RBrace, "'}'"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.LBrace:
		return p.parseCompoundStmt()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwBreak:
		t := p.advance()
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Base: ast.NewBase(pos(t))}, nil
	case token.KwContinue:
		t := p.advance()
		if _, err := p.expect(token.Semicolon, "';'"); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Base: ast.NewBase(pos(t))}, nil
	case token.KwAsm:
		return p.parseAsm()
	case token.KwStruct:
		return p.parseStructDeclLocal()
	case token.KwStatic, token.KwConst, token.KwVolatile, token.KwExtern:
		return p.parseLocalDeclSkippingQualifiers()
	default:
		if token.IsTypeKeyword(p.cur().Kind) {
			n, err := p.parseDeclOrFunction(false)
			if err != nil {
				return nil, err
			}
			s, ok := n.(ast.Stmt)
			if !ok {
				return nil, &Error{Expected: "statement", Got: p.cur()}
			}
			return s, nil
		}
		return p.parseExpressionStmt()
	}
}

func (p *Parser) parseStructDeclLocal() (ast.Stmt, error) {
	n, err := p.parseStructDecl(false)
	if err != nil {
		return nil, err
	}
	return n.(ast.Stmt), nil
}

func (p *Parser) parseLocalDeclSkippingQualifiers() (ast.Stmt, error) {
	for p.check(token.KwStatic) || p.check(token.KwConst) || p.check(token.KwVolatile) || p.check(token.KwExtern) {
		p.advance()
	}
	n, err := p.parseDeclOrFunction(false)
	if err != nil {
		return nil, err
	}
	return n.(ast.Stmt), nil
}

func (p *Parser) parseAsm() (ast.Stmt, error) {
	start := p.advance() // 'asm'
	for p.check(token.KwVolatile) {
		p.advance()
	}
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	depth := 1
	var text []byte
	for depth > 0 {
		if p.check(token.EOF) {
			return nil, &Error{Expected: "')'", Got: p.cur()}
		}
		t := p.advance()
		if t.Kind == token.LParen {
			depth++
		}
		if t.Kind == token.RParen {
			depth--
			if depth == 0 {
				break
			}
		}
		text = append(text, []byte(t.Lexeme)...)
		text = append(text, ' ')
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.AsmStatement{Base: ast.NewBase(pos(start)), Text: string(text)}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.advance() // 'if'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Base: ast.NewBase(pos(start)), Cond: cond, Then: then}
	if p.match(token.KwElse) {
		elseStmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseStmt
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.advance() // 'while'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Base: ast.NewBase(pos(start)), Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	start := p.advance() // 'for'
	if _, err := p.expect(token.LParen, "'('"); err != nil {
		return nil, err
	}
	stmt := &ast.ForStmt{Base: ast.NewBase(pos(start))}

	if !p.check(token.Semicolon) {
		if token.IsTypeKeyword(p.cur().Kind) {
			ts, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			nameTok, err := p.expect(token.Identifier, "identifier")
			if err != nil {
				return nil, err
			}
			decl, err := p.parseDeclaratorTail(nameTok, ts, nameTok, false)
			if err != nil {
				return nil, err
			}
			stmt.Init = decl
		} else {
			x, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.Init = &ast.ExpressionStmt{Base: ast.NewBase(pos(start)), X: x}
		}
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}

	if !p.check(token.Semicolon) {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}

	if !p.check(token.RParen) {
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Post = &ast.ExpressionStmt{Base: ast.NewBase(pos(start)), X: x}
	}
	if _, err := p.expect(token.RParen, "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	start := p.advance() // 'return'
	stmt := &ast.ReturnStmt{Base: ast.NewBase(pos(start))}
	if !p.check(token.Semicolon) {
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = x
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseExpressionStmt() (ast.Stmt, error) {
	start := p.cur()
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon, "';'"); err != nil {
		return nil, err
	}
	return &ast.ExpressionStmt{Base: ast.NewBase(pos(start)), X: x}, nil
}

// parseExpression is the top of the precedence chain: assignment.
func (p *Parser) parseExpression() (ast.Expr, error) {
	return p.parseAssignment()
}

// parseAssignment: assignment (right-assoc; `=` only; target must be
// an lvalue-shaped expression).
func (p *Parser) parseAssignment() (ast.Expr, error) {
	start := p.cur()
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.match(token.Assign) {
		switch left.(type) {
		case *ast.Identifier, *ast.MemberAccess, *ast.ArrayAccess:
		default:
			return nil, &Error{Expected: "assignable expression (identifier, member, or array access)", Got: start}
		}
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &ast.Assignment{Base: ast.NewBase(pos(start)), Target: left, Value: value}, nil
	}
	return left, nil
}

func (p *Parser) parseBinaryLevel(kinds map[token.Kind]ast.BinaryOp, next func(*Parser) (ast.Expr, error)) (ast.Expr, error) {
	left, err := next(p)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := kinds[p.cur().Kind]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := next(p)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(pos(opTok)), Op: op, X: left, Y: right}
	}
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.PipePipe: ast.OpOr}, (*Parser).parseLogicalAnd)
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.AmpAmp: ast.OpAnd}, (*Parser).parseBitOr)
}

func (p *Parser) parseBitOr() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Pipe: ast.OpBitOr}, (*Parser).parseBitXor)
}

func (p *Parser) parseBitXor() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Caret: ast.OpBitXor}, (*Parser).parseBitAnd)
}

func (p *Parser) parseBitAnd() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Amp: ast.OpBitAnd}, (*Parser).parseEquality)
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Eq: ast.OpEq, token.Ne: ast.OpNe}, (*Parser).parseRelational)
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{
		token.Lt: ast.OpLt, token.Gt: ast.OpGt, token.Le: ast.OpLe, token.Ge: ast.OpGe,
	}, (*Parser).parseShift)
}

func (p *Parser) parseShift() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Shl: ast.OpShl, token.Shr: ast.OpShr}, (*Parser).parseAdditive)
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{token.Plus: ast.OpAdd, token.Minus: ast.OpSub}, (*Parser).parseMultiplicative)
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	return p.parseBinaryLevel(map[token.Kind]ast.BinaryOp{
		token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Percent: ast.OpMod,
	}, (*Parser).parseUnary)
}

// parseUnary: unary prefix `! - & *` and `sizeof`.
func (p *Parser) parseUnary() (ast.Expr, error) {
	start := p.cur()
	switch start.Kind {
	case token.Bang:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(pos(start)), Op: ast.OpNot, X: x}, nil
	case token.Minus:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(pos(start)), Op: ast.OpNeg, X: x}, nil
	case token.Amp:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(pos(start)), Op: ast.OpAddr, X: x}, nil
	case token.Star:
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Base: ast.NewBase(pos(start)), Op: ast.OpDeref, X: x}, nil
	case token.KwSizeof:
		return p.parseSizeof()
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parseSizeof() (ast.Expr, error) {
	start := p.advance() // 'sizeof'
	if p.check(token.LParen) && p.startsType(1) {
		p.advance() // '('
		ts, err := p.parseTypeSpecifier()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return &ast.Sizeof{Base: ast.NewBase(pos(start)), Type: &ts}, nil
	}
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.Sizeof{Base: ast.NewBase(pos(start)), X: x}, nil
}

// startsType reports whether the token offset positions ahead begins a
// type specifier, used for the cast/sizeof-type disambiguation.
func (p *Parser) startsType(offset int) bool {
	k := p.peek(offset).Kind
	return token.IsTypeKeyword(k)
}

// parsePostfix: postfix `() [] . -> ++ --` applied left to right.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case token.LParen:
			call, ok := x.(*ast.Identifier)
			if !ok {
				return nil, &Error{Expected: "callable identifier", Got: p.cur()}
			}
			opTok := p.advance()
			var args []ast.Expr
			if !p.check(token.RParen) {
				for {
					arg, err := p.parseAssignment()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(token.Comma) {
						break
					}
				}
			}
			if _, err := p.expect(token.RParen, "')'"); err != nil {
				return nil, err
			}
			x = &ast.Call{Base: ast.NewBase(pos(opTok)), Callee: call.Name, Args: args}
		case token.LBracket:
			opTok := p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket, "']'"); err != nil {
				return nil, err
			}
			x = &ast.ArrayAccess{Base: ast.NewBase(pos(opTok)), X: x, Index: idx}
		case token.Dot:
			opTok := p.advance()
			member, err := p.expect(token.Identifier, "member name")
			if err != nil {
				return nil, err
			}
			x = &ast.MemberAccess{Base: ast.NewBase(pos(opTok)), X: x, Member: member.Lexeme}
		case token.Arrow:
			opTok := p.advance()
			member, err := p.expect(token.Identifier, "member name")
			if err != nil {
				return nil, err
			}
			x = &ast.MemberAccess{Base: ast.NewBase(pos(opTok)), X: x, Member: member.Lexeme, Arrow: true}
		case token.PlusPlus, token.MinusMinus:
			// Desugar postfix ++/-- to `x = x + 1`/`x = x - 1` so the
			// rest of the pipeline only ever sees Assignment nodes.
			switch x.(type) {
			case *ast.Identifier, *ast.MemberAccess, *ast.ArrayAccess:
			default:
				return nil, &Error{Expected: "assignable expression (identifier, member, or array access)", Got: p.cur()}
			}
			opTok := p.advance()
			op := ast.OpAdd
			if opTok.Kind == token.MinusMinus {
				op = ast.OpSub
			}
			one := &ast.NumberLiteral{Base: ast.NewBase(pos(opTok)), Lexeme: "1"}
			x = &ast.Assignment{Base: ast.NewBase(pos(opTok)), Target: x, Value: &ast.Binary{Base: ast.NewBase(pos(opTok)), Op: op, X: x, Y: one}}
		default:
			return x, nil
		}
	}
}

// parsePrimary: literals, identifiers, parenthesized expression, cast.
func (p *Parser) parsePrimary() (ast.Expr, error) {
	start := p.cur()
	switch start.Kind {
	case token.Number:
		p.advance()
		return &ast.NumberLiteral{Base: ast.NewBase(pos(start)), Lexeme: start.Lexeme}, nil
	case token.String:
		p.advance()
		return &ast.StringLiteral{Base: ast.NewBase(pos(start)), Lexeme: start.Lexeme}, nil
	case token.Character:
		p.advance()
		return &ast.CharLiteral{Base: ast.NewBase(pos(start)), Lexeme: start.Lexeme}, nil
	case token.Identifier:
		p.advance()
		return &ast.Identifier{Base: ast.NewBase(pos(start)), Name: start.Lexeme}, nil
	case token.LParen:
		// Cast disambiguation: on '(', if the next token begins a type
		// specifier, parse a cast; otherwise rewind and parse a
		// parenthesized expression.
		if p.startsType(1) {
			p.advance() // '('
			ts, err := p.parseTypeSpecifier()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RParen, "')'"); err != nil {
				return nil, err
			}
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Cast{Base: ast.NewBase(pos(start)), Type: ts, X: x}, nil
		}
		p.advance()
		x, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, &Error{Expected: "expression", Got: start}
	}
}
