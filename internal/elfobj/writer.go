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

// Package elfobj assembles the project's textual assembly dialect into
// a byte-exact ELF64 relocatable object. It does not perform real
// instruction encoding: each assembly line maps to a fixed placeholder
// byte sequence (one to seven bytes, chosen by mnemonic), enough for ELF tooling to see code/data present
// and for output to be deterministic, never to be re-executed.
package elfobj

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"
)

const (
	etRel     = 1
	emX8664   = 0x3E
	shtNull   = 0
	shtProgbits = 1
	shtStrtab = 3

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4
)

// sectionHeaderLine matches a line that opens a new assembly section:
// it starts with '.' but is not one of the data/linkage directives,
// which instead belong to the body of whichever section is open.
var sectionHeaderLine = regexp.MustCompile(`^\.\S+$`)
var dataDirective = regexp.MustCompile(`^\.(globl|long|byte|quad)\b`)
var labelLine = regexp.MustCompile(`^[\w.]+:$`)

// Error represents a violated ELF-assembly invariant: text the writer
// cannot classify into a known section shape. Internal only.
type Error struct {
	Message string
}

func (e *Error) Error() string { return "elfobj: " + e.Message }

type rawSection struct {
	name string
	body []string
}

// parseSections splits assembly text the way the teacher's line
// classifiers split disassembled text: scan line by line, open a new
// section whenever a bare directive line appears that isn't one of
// the recognized data directives.
func parseSections(asm string) []rawSection {
	var sections []rawSection
	var cur *rawSection
	for _, line := range strings.Split(asm, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if sectionHeaderLine.MatchString(line) && !dataDirective.MatchString(line) {
			sections = append(sections, rawSection{name: line})
			cur = &sections[len(sections)-1]
			continue
		}
		if cur == nil {
			continue // stray line before any section header; ignore
		}
		cur.body = append(cur.body, line)
	}
	return sections
}

var opcodeByMnemonic = map[string][]byte{
	"push":  {0x55},
	"pop":   {0x5D},
	"ret":   {0xC3},
	"call":  {0xE8, 0x00, 0x00, 0x00, 0x00},
	"jmp":   {0xEB, 0x00},
	"jne":   {0x75, 0x00},
	"je":    {0x74, 0x00},
	"cmp":   {0x39, 0xC8},
	"add":   {0x01, 0xC8},
	"sub":   {0x29, 0xC8},
	"imul":  {0x0F, 0xAF, 0xC1},
	"idiv":  {0xF7, 0xF9},
	"cdq":   {0x99},
	"and":   {0x21, 0xC8},
	"or":    {0x09, 0xC8},
	"xor":   {0x31, 0xC8},
	"shl":   {0xD3, 0xE0},
	"shr":   {0xD3, 0xE8},
	"sete":  {0x0F, 0x94, 0xC0},
	"setne": {0x0F, 0x95, 0xC0},
	"setl":  {0x0F, 0x9C, 0xC0},
	"setle": {0x0F, 0x9E, 0xC0},
	"setg":  {0x0F, 0x9F, 0xC0},
	"setge": {0x0F, 0x9D, 0xC0},
	"movzx": {0x48, 0x0F, 0xB6, 0xC0},
}

// encodeTextLine lowers one assembly-text line into placeholder bytes.
// Labels and `.globl` (a function's linkage directive inside .text)
// produce no bytes; any other directive is treated like an
// unrecognized mnemonic.
func encodeTextLine(line string) []byte {
	if labelLine.MatchString(line) {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	mnemonic := fields[0]
	if mnemonic == ".globl" {
		return nil
	}
	if mnemonic == "mov" && len(fields) >= 2 && strings.HasPrefix(fields[1], "$") && strings.Contains(line, "rax") {
		imm := parseImmediate(fields[1])
		buf := make([]byte, 7)
		buf[0], buf[1] = 0x48, 0xB8
		binary.LittleEndian.PutUint32(buf[2:6], uint32(imm))
		buf[6] = 0x90
		return buf
	}
	if b, ok := opcodeByMnemonic[mnemonic]; ok {
		return b
	}
	return []byte{0x90} // unrecognized mnemonic: single-byte nop placeholder
}

func parseImmediate(tok string) int64 {
	tok = strings.TrimPrefix(tok, "$")
	tok = strings.TrimSuffix(tok, ",")
	v, _ := strconv.ParseInt(tok, 0, 64)
	return v
}

// encodeDataLine lowers one `.data` body line (directive or label)
// into its literal byte representation.
func encodeDataLine(line string) []byte {
	if labelLine.MatchString(line) {
		return nil
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case ".globl":
		return nil
	case ".long":
		v, _ := strconv.ParseInt(strings.TrimSuffix(fields[1], ","), 0, 64)
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
		return buf
	case ".quad":
		v, _ := strconv.ParseInt(strings.TrimSuffix(fields[1], ","), 0, 64)
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v))
		return buf
	case ".byte":
		v, _ := strconv.ParseInt(strings.TrimSuffix(fields[1], ","), 0, 64)
		return []byte{byte(int8(v))}
	default:
		return nil
	}
}

type section struct {
	name    string
	typ     uint32
	flags   uint64
	payload []byte
}

// Write renders assembly text into a complete ELF64 relocatable
// object byte buffer, per spec.md §4.6.
func Write(asm string) ([]byte, error) {
	raw := parseSections(asm)
	if len(raw) == 0 {
		return nil, &Error{Message: "assembly text contains no sections"}
	}

	sections := []section{{name: "", typ: shtNull}} // index 0 is mandatory SHT_NULL
	for _, rs := range raw {
		var payload []byte
		var flags uint64
		switch rs.name {
		case ".text":
			flags = shfAlloc | shfExecinstr
			for _, l := range rs.body {
				payload = append(payload, encodeTextLine(l)...)
			}
		case ".data":
			flags = shfAlloc | shfWrite
			for _, l := range rs.body {
				payload = append(payload, encodeDataLine(l)...)
			}
		default:
			flags = shfAlloc
			for _, l := range rs.body {
				payload = append(payload, encodeTextLine(l)...)
			}
		}
		sections = append(sections, section{name: rs.name, typ: shtProgbits, flags: flags, payload: payload})
	}

	sections = append(sections, section{name: ".shstrtab", typ: shtStrtab})
	shstrndx := len(sections) - 1
	shstrtab, nameOffset := buildShstrtab(sections)
	sections[shstrndx].payload = shstrtab

	offsets := make([]uint64, len(sections))
	cursor := uint64(64) // ELF64 header size
	for i, s := range sections {
		offsets[i] = cursor
		cursor += uint64(len(s.payload))
	}
	shoff := cursor

	var buf bytes.Buffer
	writeHeader(&buf, shoff, uint16(len(sections)), uint16(shstrndx))
	for _, s := range sections {
		buf.Write(s.payload)
	}
	for i, s := range sections {
		writeSectionHeader(&buf, nameOffset[s.name], s.typ, s.flags, offsets[i], uint64(len(s.payload)))
	}

	return buf.Bytes(), nil
}

func buildShstrtab(sections []section) ([]byte, map[string]uint32) {
	offsets := make(map[string]uint32)
	buf := []byte{0x00} // index 0: empty string, per convention
	for _, s := range sections {
		if s.name == "" {
			offsets[s.name] = 0
			continue
		}
		offsets[s.name] = uint32(len(buf))
		buf = append(buf, []byte(s.name)...)
		buf = append(buf, 0x00)
	}
	return buf, offsets
}

func writeHeader(buf *bytes.Buffer, shoff uint64, shnum, shstrndx uint16) {
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7F, 'E', 'L', 'F'
	ident[4] = 2 // ELFCLASS64
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	buf.Write(ident)

	write16(buf, etRel)
	write16(buf, emX8664)
	write32(buf, 1) // e_version
	write64(buf, 0) // e_entry
	write64(buf, 0) // e_phoff
	write64(buf, shoff)
	write32(buf, 0)  // e_flags
	write16(buf, 64) // e_ehsize
	write16(buf, 0)  // e_phentsize
	write16(buf, 0)  // e_phnum
	write16(buf, 64) // e_shentsize
	write16(buf, shnum)
	write16(buf, shstrndx)
}

func writeSectionHeader(buf *bytes.Buffer, name uint32, typ uint32, flags uint64, offset, size uint64) {
	write32(buf, name)
	write32(buf, typ)
	write64(buf, flags)
	write64(buf, 0) // sh_addr
	write64(buf, offset)
	write64(buf, size)
	write32(buf, 0) // sh_link
	write32(buf, 0) // sh_info
	write64(buf, 1) // sh_addralign
	write64(buf, 0) // sh_entsize
}

func write16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func write32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func write64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }
