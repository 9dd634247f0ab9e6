// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"github.com/svenslaggare/xonevm/vm"
)

// The end-to-end scenarios, shared between the interpreter tests and
// the native round-trip tests.

func mainFunction(locals []vm.Type, instructions ...vm.Instruction) *vm.Function {
	return vm.NewFunction(vm.NewFunctionDefinition("main", nil, vm.TypeInt), instructions, locals)
}

// 2+4 = 6
func addProgram() *vm.Assembly {
	return vm.NewAssembly("add", mainFunction(nil,
		vm.NewIntInstruction(vm.OpLoadInt, 2),
		vm.NewIntInstruction(vm.OpLoadInt, 4),
		vm.NewInstruction(vm.OpAddInt),
		vm.NewInstruction(vm.OpRet),
	))
}

// 2+(4+6) = 12
func nestedAddProgram() *vm.Assembly {
	return vm.NewAssembly("nested-add", mainFunction(nil,
		vm.NewIntInstruction(vm.OpLoadInt, 2),
		vm.NewIntInstruction(vm.OpLoadInt, 4),
		vm.NewIntInstruction(vm.OpLoadInt, 6),
		vm.NewInstruction(vm.OpAddInt),
		vm.NewInstruction(vm.OpAddInt),
		vm.NewInstruction(vm.OpRet),
	))
}

// 4 != 2, so the fall-through branch stores 5.
func branchingProgram() *vm.Assembly {
	return vm.NewAssembly("branching", mainFunction([]vm.Type{vm.TypeInt},
		vm.NewIntInstruction(vm.OpLoadInt, 4),
		vm.NewIntInstruction(vm.OpLoadInt, 2),
		vm.NewIntInstruction(vm.OpBranchEqual, 6),
		vm.NewIntInstruction(vm.OpLoadInt, 5),
		vm.NewIntInstruction(vm.OpStoreLocal, 0),
		vm.NewIntInstruction(vm.OpBranch, 8),
		vm.NewIntInstruction(vm.OpLoadInt, 15),
		vm.NewIntInstruction(vm.OpStoreLocal, 0),
		vm.NewIntInstruction(vm.OpLoadLocal, 0),
		vm.NewInstruction(vm.OpRet),
	))
}

// Counts down from 100, accumulating 1 per iteration.
func loopProgram() *vm.Assembly {
	return vm.NewAssembly("loop", mainFunction([]vm.Type{vm.TypeInt, vm.TypeInt},
		vm.NewIntInstruction(vm.OpLoadInt, 100),
		vm.NewIntInstruction(vm.OpStoreLocal, 0),
		vm.NewIntInstruction(vm.OpLoadInt, 0),
		vm.NewIntInstruction(vm.OpStoreLocal, 1),
		vm.NewIntInstruction(vm.OpLoadLocal, 0),
		vm.NewIntInstruction(vm.OpLoadInt, 0),
		vm.NewIntInstruction(vm.OpBranchEqual, 16),
		vm.NewIntInstruction(vm.OpLoadLocal, 1),
		vm.NewIntInstruction(vm.OpLoadInt, 1),
		vm.NewInstruction(vm.OpAddInt),
		vm.NewIntInstruction(vm.OpStoreLocal, 1),
		vm.NewIntInstruction(vm.OpLoadLocal, 0),
		vm.NewIntInstruction(vm.OpLoadInt, 1),
		vm.NewInstruction(vm.OpSubInt),
		vm.NewIntInstruction(vm.OpStoreLocal, 0),
		vm.NewIntInstruction(vm.OpBranch, 4),
		vm.NewIntInstruction(vm.OpLoadLocal, 1),
		vm.NewInstruction(vm.OpRet),
	))
}

// Straight-line sum of 1..100 = 5050.
func sumProgram() *vm.Assembly {
	instructions := []vm.Instruction{vm.NewIntInstruction(vm.OpLoadInt, 1)}
	for k := 2; k <= 100; k++ {
		instructions = append(instructions,
			vm.NewIntInstruction(vm.OpLoadInt, k),
			vm.NewInstruction(vm.OpAddInt),
		)
	}
	instructions = append(instructions, vm.NewInstruction(vm.OpRet))
	return vm.NewAssembly("sum", mainFunction(nil, instructions...))
}

// Recursive fibonacci; main() = fib(11) = 89.
func fibProgram() *vm.Assembly {
	fib := vm.NewFunction(
		vm.NewFunctionDefinition("fib", []vm.Type{vm.TypeInt}, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadArgument, 0),
			vm.NewIntInstruction(vm.OpLoadInt, 2),
			vm.NewIntInstruction(vm.OpBranchGreaterOrEqual, 5),
			vm.NewIntInstruction(vm.OpLoadArgument, 0),
			vm.NewInstruction(vm.OpRet),
			vm.NewIntInstruction(vm.OpLoadArgument, 0),
			vm.NewIntInstruction(vm.OpLoadInt, 1),
			vm.NewInstruction(vm.OpSubInt),
			vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}),
			vm.NewIntInstruction(vm.OpLoadArgument, 0),
			vm.NewIntInstruction(vm.OpLoadInt, 2),
			vm.NewInstruction(vm.OpSubInt),
			vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}),
			vm.NewInstruction(vm.OpAddInt),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
	main := mainFunction(nil,
		vm.NewIntInstruction(vm.OpLoadInt, 11),
		vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}),
		vm.NewInstruction(vm.OpRet),
	)
	return vm.NewAssembly("fib", fib, main)
}

// 100/7 = 14 under truncating integer division.
func divProgram() *vm.Assembly {
	return vm.NewAssembly("div", mainFunction(nil,
		vm.NewIntInstruction(vm.OpLoadInt, 100),
		vm.NewIntInstruction(vm.OpLoadInt, 7),
		vm.NewInstruction(vm.OpDivInt),
		vm.NewInstruction(vm.OpRet),
	))
}

type scenario struct {
	name     string
	assembly func() *vm.Assembly
	want     int32
}

func scenarios() []scenario {
	return []scenario{
		{"add", addProgram, 6},
		{"nested add", nestedAddProgram, 12},
		{"branching", branchingProgram, 5},
		{"loop", loopProgram, 100},
		{"sum", sumProgram, 5050},
		{"fib", fibProgram, 89},
		{"div", divProgram, 14},
	}
}
