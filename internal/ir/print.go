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

package ir

import (
	"fmt"
	"strings"
)

// Print renders m in the textual form spec.md §6 defines: one line per
// global, then one `define` block per function with a label per basic
// block and one instruction per line.
func Print(m *Module) string {
	var b strings.Builder
	for _, g := range m.Globals {
		init := "0"
		if g.HasInit {
			init = fmt.Sprintf("%d", g.Initializer)
		}
		fmt.Fprintf(&b, "@%s = global %s %s\n", g.Name, g.Type, init)
	}
	if len(m.Globals) > 0 && len(m.Functions) > 0 {
		b.WriteString("\n")
	}
	for i, fn := range m.Functions {
		if i > 0 {
			b.WriteString("\n")
		}
		printFunction(&b, fn)
	}
	return b.String()
}

func printFunction(b *strings.Builder, fn Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s %%%s", p.Type, p.Name)
	}
	fmt.Fprintf(b, "define %s @%s(%s) {\n", fn.ReturnType, fn.Name, strings.Join(params, ", "))
	for _, blk := range fn.Body {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, in := range blk.Instructions {
			b.WriteString("  ")
			b.WriteString(printInstruction(in))
			b.WriteString("\n")
		}
	}
	b.WriteString("}\n")
}

func printInstruction(in Instruction) string {
	switch in.Op {
	case OpAlloca:
		return fmt.Sprintf("%s = alloca %s", Value{ID: in.ID, Type: Ptr}, in.AllocaOf)
	case OpLoad:
		return fmt.Sprintf("%s = load %s, ptr %s", Value{ID: in.ID, Type: in.Type}, in.Type, in.Operands[0])
	case OpStore:
		return fmt.Sprintf("store %s %s, ptr %s", in.Operands[0].Type, in.Operands[0], in.Operands[1])
	case OpJump:
		return fmt.Sprintf("jump %s", in.Targets[0])
	case OpJumpIf:
		return fmt.Sprintf("jump_if %s, %s, %s", in.Operands[0], in.Targets[0], in.Targets[1])
	case OpCall:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = a.String()
		}
		prefix := ""
		if in.Type != Void {
			prefix = fmt.Sprintf("%s = ", Value{ID: in.ID, Type: in.Type})
		}
		return fmt.Sprintf("%scall %s @%s(%s)", prefix, in.Type, in.Name, strings.Join(args, ", "))
	case OpRet:
		if len(in.Operands) == 0 {
			return "ret void"
		}
		return fmt.Sprintf("ret %s %s", in.Operands[0].Type, in.Operands[0])
	case OpNot:
		return fmt.Sprintf("%s = not %s %s", Value{ID: in.ID, Type: in.Type}, in.Type, in.Operands[0])
	default:
		operands := make([]string, len(in.Operands))
		for i, o := range in.Operands {
			operands[i] = o.String()
		}
		return fmt.Sprintf("%s = %s %s %s", Value{ID: in.ID, Type: in.Type}, in.Op, in.Type, strings.Join(operands, ", "))
	}
}
