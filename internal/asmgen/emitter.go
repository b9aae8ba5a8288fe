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

// Package asmgen lowers an IR module into the project's textual x86-64
// assembly dialect: AT&T-style `op src, dst` operand order, `$imm`
// immediates, and `[reg-offset]` stack addressing. The dialect is
// self-consistent but does not match either GNU as or NASM syntax; it
// exists to hand a fixed, line-oriented grammar to the ELF writer.
package asmgen

import (
	"fmt"
	"strings"

	"github.com/minic-lang/minic/internal/ir"
)

// Section is one named region of the assembly program (".text", ".data", ...).
type Section struct {
	Name  string
	Lines []string
}

// Program is the complete lowered assembly output: an ordered section
// list plus the set of symbols declared .globl.
type Program struct {
	Sections []Section
	Globals  []string
}

// Render concatenates the program back into the textual form the ELF
// writer parses.
func (p *Program) Render() string {
	var b strings.Builder
	for _, s := range p.Sections {
		b.WriteString(s.Name)
		b.WriteString("\n")
		for _, l := range s.Lines {
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	return b.String()
}

var paramRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
var floatParamRegisters = []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"}

var setccByOp = map[ir.Op]string{
	ir.OpEq: "sete", ir.OpNe: "setne", ir.OpLt: "setl", ir.OpLe: "setle", ir.OpGt: "setg", ir.OpGe: "setge",
}

// Error represents a violated assembly-emission invariant: an
// unsupported or unknown IR opcode reaching the emitter. This is an
// internal programmer-bug condition, never a user-facing diagnostic.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "asmgen: " + e.Message }

// Emit lowers m into a Program, matching spec.md §4.5's grammar.
func Emit(m *ir.Module) (*Program, error) {
	e := &emitter{}
	prog := &Program{}

	textLines := []string{}
	for _, fn := range m.Functions {
		lines, err := e.emitFunction(fn)
		if err != nil {
			return nil, err
		}
		textLines = append(textLines, lines...)
		prog.Globals = append(prog.Globals, fn.Name)
	}
	prog.Sections = append(prog.Sections, Section{Name: ".text", Lines: textLines})

	if len(m.Globals) > 0 {
		var dataLines []string
		for _, g := range m.Globals {
			dataLines = append(dataLines, fmt.Sprintf(".globl %s", g.Name))
			dataLines = append(dataLines, fmt.Sprintf("%s:", g.Name))
			init := g.Initializer
			switch g.Type {
			case ir.I8:
				dataLines = append(dataLines, fmt.Sprintf(".byte %d", int8(init)))
			case ir.I64:
				dataLines = append(dataLines, fmt.Sprintf(".quad %d", init))
			default:
				dataLines = append(dataLines, fmt.Sprintf(".long %d", int32(init)))
			}
			prog.Globals = append(prog.Globals, g.Name)
		}
		prog.Sections = append(prog.Sections, Section{Name: ".data", Lines: dataLines})
	}

	return prog, nil
}

type emitter struct{}

type funcState struct {
	fn         ir.Function
	frameSlot  map[int]int
	isAlloca   map[int]bool
	allocaName map[int]string
	nextOffset int
	lines      []string
}

func (e *emitter) emitFunction(fn ir.Function) ([]string, error) {
	fs := &funcState{
		fn:         fn,
		frameSlot:  make(map[int]int),
		isAlloca:   make(map[int]bool),
		allocaName: make(map[int]string),
	}
	fs.layout()

	fs.lines = append(fs.lines, fmt.Sprintf(".globl %s", fn.Name), fmt.Sprintf("%s:", fn.Name))
	fs.lines = append(fs.lines, "push rbp", "mov rsp, rbp")
	frame := fs.nextOffset
	if frame%16 != 0 {
		frame += 16 - frame%16
	}
	if frame > 0 {
		fs.lines = append(fs.lines, fmt.Sprintf("sub rsp, $%d", frame))
	}

	for _, blk := range fn.Body {
		fs.lines = append(fs.lines, fmt.Sprintf("%s:", blk.Label))
		for _, in := range blk.Instructions {
			if err := fs.emitInstruction(in); err != nil {
				return nil, err
			}
		}
	}

	return fs.lines, nil
}

// layout assigns every value-producing instruction an 8-byte stack
// slot, in textual order of appearance; alloca slots hold the local's
// own storage, other slots hold spilled results (no register
// allocation, per the project's non-optimizing scope).
func (fs *funcState) layout() {
	for _, blk := range fs.fn.Body {
		for _, in := range blk.Instructions {
			if in.ID == 0 {
				continue
			}
			fs.nextOffset += 8
			fs.frameSlot[in.ID] = fs.nextOffset
			if in.Op == ir.OpAlloca {
				fs.isAlloca[in.ID] = true
				fs.allocaName[in.ID] = in.Name
			}
		}
	}
}

func (fs *funcState) paramIndex(name string) int {
	for i, p := range fs.fn.Params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// operandAddress renders v as a memory/name address operand. For a
// runtime pointer value it first emits the reload of that pointer
// into rdx.
func (fs *funcState) operandAddress(v ir.Value) string {
	if v.IsGlobal {
		return v.Global
	}
	if fs.isAlloca[v.ID] {
		return fmt.Sprintf("[rbp-%d]", fs.frameSlot[v.ID])
	}
	// A runtime pointer value (e.g. array/member address arithmetic):
	// its value lives in its own spill slot and must be dereferenced.
	fs.lines = append(fs.lines, fmt.Sprintf("mov [rbp-%d], rdx", fs.frameSlot[v.ID]))
	return "[rdx-0]"
}

// loadOperand emits the instructions needed to materialize v in reg.
func (fs *funcState) loadOperand(v ir.Value, reg string) string {
	if v.IsConst {
		return fmt.Sprintf("mov $%d, %s", v.Const, reg)
	}
	if v.IsGlobal && strings.HasPrefix(v.Global, "%param.") {
		name := strings.TrimPrefix(v.Global, "%param.")
		if idx := fs.paramIndex(name); idx >= 0 && idx < len(paramRegisters) {
			return fmt.Sprintf("mov %s, %s", paramRegisters[idx], reg)
		}
		return fmt.Sprintf("mov $0, %s", reg)
	}
	if v.IsGlobal {
		return fmt.Sprintf("mov %s, %s", v.Global, reg)
	}
	return fmt.Sprintf("mov [rbp-%d], %s", fs.frameSlot[v.ID], reg)
}

func (fs *funcState) spill(id int, reg string) {
	if id == 0 {
		return
	}
	fs.lines = append(fs.lines, fmt.Sprintf("mov %s, [rbp-%d]", reg, fs.frameSlot[id]))
}

func (fs *funcState) emitInstruction(in ir.Instruction) error {
	switch in.Op {
	case ir.OpAlloca:
		return nil // the slot itself is the reservation; nothing to emit
	case ir.OpLoad:
		addr := fs.operandAddress(in.Operands[0])
		fs.lines = append(fs.lines, fmt.Sprintf("mov %s, rax", addr))
		fs.spill(in.ID, "rax")
		return nil
	case ir.OpStore:
		val, addr := in.Operands[0], in.Operands[1]
		if val.IsConst {
			dst := fs.operandAddress(addr)
			fs.lines = append(fs.lines, fmt.Sprintf("mov $%d, %s", val.Const, dst))
			return nil
		}
		fs.lines = append(fs.lines, fs.loadOperand(val, "rax"))
		dst := fs.operandAddress(addr)
		fs.lines = append(fs.lines, fmt.Sprintf("mov rax, %s", dst))
		return nil
	case ir.OpJump:
		fs.lines = append(fs.lines, fmt.Sprintf("jmp %s", in.Targets[0]))
		return nil
	case ir.OpJumpIf:
		fs.lines = append(fs.lines, fs.loadOperand(in.Operands[0], "rax"))
		fs.lines = append(fs.lines, "cmp rax, 0")
		fs.lines = append(fs.lines, fmt.Sprintf("jne %s", in.Targets[0]))
		fs.lines = append(fs.lines, fmt.Sprintf("jmp %s", in.Targets[1]))
		return nil
	case ir.OpCall:
		for i, arg := range in.Args {
			if i < len(paramRegisters) {
				fs.lines = append(fs.lines, fs.loadOperand(arg, paramRegisters[i]))
			}
		}
		fs.lines = append(fs.lines, fmt.Sprintf("call %s", in.Name))
		fs.spill(in.ID, "rax")
		return nil
	case ir.OpRet:
		if len(in.Operands) > 0 {
			fs.lines = append(fs.lines, fs.loadOperand(in.Operands[0], "rax"))
		}
		fs.lines = append(fs.lines, "mov rbp, rsp", "pop rbp", "ret")
		return nil
	case ir.OpNot:
		fs.lines = append(fs.lines, fs.loadOperand(in.Operands[0], "rax"))
		fs.lines = append(fs.lines, "cmp rax, 0", "sete al", "movzx rax, al")
		fs.spill(in.ID, "rax")
		return nil
	default:
		return fs.emitBinary(in)
	}
}

func (fs *funcState) emitBinary(in ir.Instruction) error {
	lhs, rhs := in.Operands[0], in.Operands[1]
	fs.lines = append(fs.lines, fs.loadOperand(lhs, "rax"))
	fs.lines = append(fs.lines, fs.loadOperand(rhs, "rcx"))

	switch in.Op {
	case ir.OpAdd:
		fs.lines = append(fs.lines, "add rcx, rax")
	case ir.OpSub:
		fs.lines = append(fs.lines, "sub rcx, rax")
	case ir.OpMul:
		fs.lines = append(fs.lines, "imul rcx, rax")
	case ir.OpDiv, ir.OpMod:
		fs.lines = append(fs.lines, "cdq", "idiv rcx")
		if in.Op == ir.OpMod {
			fs.lines = append(fs.lines, "mov rdx, rax")
		}
	case ir.OpBitAnd:
		fs.lines = append(fs.lines, "and rcx, rax")
	case ir.OpBitOr:
		fs.lines = append(fs.lines, "or rcx, rax")
	case ir.OpBitXor:
		fs.lines = append(fs.lines, "xor rcx, rax")
	case ir.OpShl:
		fs.lines = append(fs.lines, "shl rcx, rax")
	case ir.OpShr:
		fs.lines = append(fs.lines, "shr rcx, rax")
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		fs.lines = append(fs.lines, "cmp rax, rcx")
		fs.lines = append(fs.lines, fmt.Sprintf("%s al", setccByOp[in.Op]))
		fs.lines = append(fs.lines, "movzx rax, al")
	default:
		return &Error{Message: fmt.Sprintf("unsupported opcode %s", in.Op)}
	}
	fs.spill(in.ID, "rax")
	return nil
}
