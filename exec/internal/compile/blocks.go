// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile is used internally by exec to translate verified
// bytecode functions into native machine code. The translation runs in
// stages: the function is partitioned into basic blocks, a control-flow
// graph is built over them, the stack-based instructions are lowered
// onto virtual registers, live intervals are computed by a backward
// walk over the graph, the intervals are mapped onto hardware registers
// by linear scan, and finally the amd64 backend emits machine code with
// unresolved branch and call sites that are patched once every function
// of the assembly has been placed in executable memory.
package compile

import (
	"github.com/emirpasic/gods/sets/treeset"

	"github.com/svenslaggare/xonevm/vm"
)

// BasicBlock is a maximal straight-line slice of a function body. A
// control transfer (branch or Ret) only ever appears as the last
// instruction of a block.
type BasicBlock struct {
	// StartOffset is the index of the first contained instruction
	// within the source function.
	StartOffset  int
	Instructions []vm.Instruction
}

// EndOffset returns the index one past the last contained instruction.
func (b *BasicBlock) EndOffset() int {
	return b.StartOffset + len(b.Instructions)
}

// SplitBasicBlocks partitions a function body into basic blocks.
// Leaders are instruction 0, every branch target, and every instruction
// that immediately follows a branch or Ret.
func SplitBasicBlocks(fn *vm.Function) []*BasicBlock {
	leaders := treeset.NewWithIntComparator()
	leaders.Add(0)

	for i, instruction := range fn.Instructions {
		switch {
		case instruction.Op.IsBranch():
			leaders.Add(instruction.IntValue)
			if i+1 < len(fn.Instructions) {
				leaders.Add(i + 1)
			}
		case instruction.Op == vm.OpRet:
			if i+1 < len(fn.Instructions) {
				leaders.Add(i + 1)
			}
		}
	}

	sorted := leaders.Values()
	blocks := make([]*BasicBlock, 0, len(sorted))
	for i, leader := range sorted {
		start := leader.(int)
		end := len(fn.Instructions)
		if i+1 < len(sorted) {
			end = sorted[i+1].(int)
		}
		blocks = append(blocks, &BasicBlock{
			StartOffset:  start,
			Instructions: fn.Instructions[start:end],
		})
	}
	return blocks
}
