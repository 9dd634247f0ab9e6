// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm renders compiled functions as side-by-side bytecode
// and native-code listings, using the instruction mapping recorded by
// the code generator.
package disasm

import (
	"fmt"
	"io"

	"golang.org/x/arch/x86/x86asm"

	"github.com/svenslaggare/xonevm/vm"
)

// NativeInstruction is one decoded machine instruction.
type NativeInstruction struct {
	// Offset of the instruction within the function's generated code.
	Offset int
	Len    int
	Text   string
}

// Entry pairs one bytecode instruction with the native instructions
// emitted for it.
type Entry struct {
	Index       int
	Instruction vm.Instruction

	// NativeOffset is the offset of the first emitted byte.
	NativeOffset int
	Native       []NativeInstruction
}

// Disassemble decodes the generated code of a compiled function into
// per-bytecode-instruction entries.
func Disassemble(fn *vm.Function) ([]Entry, error) {
	code := fn.GeneratedCode
	mapping := fn.InstructionMapping
	if len(code) == 0 || len(mapping) != len(fn.Instructions) {
		return nil, fmt.Errorf("disasm: %q has not been compiled", fn.Definition.Signature())
	}

	entries := make([]Entry, 0, len(fn.Instructions))
	for index, instruction := range fn.Instructions {
		start := mapping[index]
		end := len(code)
		if index+1 < len(mapping) {
			end = mapping[index+1]
		}

		entry := Entry{
			Index:        index,
			Instruction:  instruction,
			NativeOffset: start,
		}
		for offset := start; offset < end; {
			inst, err := x86asm.Decode(code[offset:end], 64)
			if err != nil {
				return nil, fmt.Errorf("disasm: decoding %q at offset %#x: %w",
					fn.Definition.Signature(), offset, err)
			}
			entry.Native = append(entry.Native, NativeInstruction{
				Offset: offset,
				Len:    inst.Len,
				Text:   x86asm.IntelSyntax(inst, uint64(offset), nil),
			})
			offset += inst.Len
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Fprint writes a listing of the compiled function to w.
func Fprint(w io.Writer, fn *vm.Function) error {
	entries, err := Disassemble(fn)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s:\n", fn.Definition)
	for _, entry := range entries {
		fmt.Fprintf(w, "%4d: %s\n", entry.Index, entry.Instruction)
		for _, native := range entry.Native {
			fmt.Fprintf(w, "          %#06x: %s\n", native.Offset, native.Text)
		}
	}
	return nil
}
