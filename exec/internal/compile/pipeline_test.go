// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"testing"

	"github.com/svenslaggare/xonevm/vm"
)

// Shared test programs; branch targets are instruction indices.

func addFunction() *vm.Function {
	return vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadInt, 2),
			vm.NewIntInstruction(vm.OpLoadInt, 4),
			vm.NewInstruction(vm.OpAddInt),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
}

func nestedAddFunction() *vm.Function {
	return vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadInt, 2),
			vm.NewIntInstruction(vm.OpLoadInt, 4),
			vm.NewIntInstruction(vm.OpLoadInt, 6),
			vm.NewInstruction(vm.OpAddInt),
			vm.NewInstruction(vm.OpAddInt),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
}

func branchingFunction() *vm.Function {
	return vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeInt),
		[]vm.Instruction{
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
		},
		[]vm.Type{vm.TypeInt},
	)
}

// loopFunction counts down from 100, accumulating 1 per iteration.
func loopFunction() *vm.Function {
	return vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadInt, 100),  // 0
			vm.NewIntInstruction(vm.OpStoreLocal, 0), // 1
			vm.NewIntInstruction(vm.OpLoadInt, 0),    // 2
			vm.NewIntInstruction(vm.OpStoreLocal, 1), // 3
			vm.NewIntInstruction(vm.OpLoadLocal, 0),  // 4: loop head
			vm.NewIntInstruction(vm.OpLoadInt, 0),    // 5
			vm.NewIntInstruction(vm.OpBranchEqual, 16), // 6
			vm.NewIntInstruction(vm.OpLoadLocal, 1),  // 7
			vm.NewIntInstruction(vm.OpLoadInt, 1),    // 8
			vm.NewInstruction(vm.OpAddInt),           // 9
			vm.NewIntInstruction(vm.OpStoreLocal, 1), // 10
			vm.NewIntInstruction(vm.OpLoadLocal, 0),  // 11
			vm.NewIntInstruction(vm.OpLoadInt, 1),    // 12
			vm.NewInstruction(vm.OpSubInt),           // 13
			vm.NewIntInstruction(vm.OpStoreLocal, 0), // 14
			vm.NewIntInstruction(vm.OpBranch, 4),     // 15
			vm.NewIntInstruction(vm.OpLoadLocal, 1),  // 16
			vm.NewInstruction(vm.OpRet),              // 17
		},
		[]vm.Type{vm.TypeInt, vm.TypeInt},
	)
}

// fibFunctions returns a recursive fibonacci plus a main computing
// fib(11).
func fibFunctions() (*vm.Function, *vm.Function) {
	fib := vm.NewFunction(
		vm.NewFunctionDefinition("fib", []vm.Type{vm.TypeInt}, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadArgument, 0),          // 0
			vm.NewIntInstruction(vm.OpLoadInt, 2),               // 1
			vm.NewIntInstruction(vm.OpBranchGreaterOrEqual, 5),  // 2
			vm.NewIntInstruction(vm.OpLoadArgument, 0),          // 3
			vm.NewInstruction(vm.OpRet),                         // 4
			vm.NewIntInstruction(vm.OpLoadArgument, 0),          // 5
			vm.NewIntInstruction(vm.OpLoadInt, 1),               // 6
			vm.NewInstruction(vm.OpSubInt),                      // 7
			vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}), // 8
			vm.NewIntInstruction(vm.OpLoadArgument, 0),          // 9
			vm.NewIntInstruction(vm.OpLoadInt, 2),               // 10
			vm.NewInstruction(vm.OpSubInt),                      // 11
			vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}), // 12
			vm.NewInstruction(vm.OpAddInt),                      // 13
			vm.NewInstruction(vm.OpRet),                         // 14
		},
		nil,
	)
	main := vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadInt, 11),
			vm.NewCallInstruction("fib", []vm.Type{vm.TypeInt}),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
	return fib, main
}

func testBinder(t *testing.T, functions ...*vm.Function) *vm.Binder {
	t.Helper()
	binder := vm.NewBinder()
	for _, fn := range functions {
		if err := binder.Define(fn.Definition); err != nil {
			t.Fatal(err)
		}
	}
	return binder
}

func lowerForTest(t *testing.T, fn *vm.Function, callees ...*vm.Function) *LoweredFunction {
	t.Helper()
	binder := testBinder(t, append([]*vm.Function{fn}, callees...)...)
	lowered, err := LowerFunction(binder, fn)
	if err != nil {
		t.Fatal(err)
	}
	return lowered
}
