// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"testing"

	"github.com/svenslaggare/xonevm/vm"
)

func intFunction(name string, instructions ...vm.Instruction) *vm.Function {
	return vm.NewFunction(vm.NewFunctionDefinition(name, nil, vm.TypeInt), instructions, nil)
}

func TestVerifyValidFunctions(t *testing.T) {
	binder := vm.NewBinder()

	for _, tc := range []struct {
		name      string
		fn        *vm.Function
		wantDepth int
	}{
		{
			name: "add",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 2),
				vm.NewIntInstruction(vm.OpLoadInt, 4),
				vm.NewInstruction(vm.OpAddInt),
				vm.NewInstruction(vm.OpRet),
			),
			wantDepth: 2,
		},
		{
			name: "nested add",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 2),
				vm.NewIntInstruction(vm.OpLoadInt, 4),
				vm.NewIntInstruction(vm.OpLoadInt, 6),
				vm.NewInstruction(vm.OpAddInt),
				vm.NewInstruction(vm.OpAddInt),
				vm.NewInstruction(vm.OpRet),
			),
			wantDepth: 3,
		},
		{
			name: "pop discards any type",
			fn: intFunction("main",
				vm.NewFloatInstruction(vm.OpLoadFloat, 1.5),
				vm.NewInstruction(vm.OpPop),
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewInstruction(vm.OpRet),
			),
			wantDepth: 1,
		},
		{
			name: "branching with locals",
			fn: vm.NewFunction(
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
			),
			wantDepth: 2,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := VerifyFunction(binder, tc.fn); err != nil {
				t.Fatalf("VerifyFunction() = %v", err)
			}
			if tc.fn.OperandStackSize != tc.wantDepth {
				t.Errorf("OperandStackSize = %d, want %d", tc.fn.OperandStackSize, tc.wantDepth)
			}
		})
	}
}

func TestVerifyCall(t *testing.T) {
	binder := vm.NewBinder()
	if err := binder.Define(vm.NewFunctionDefinition("add", []vm.Type{vm.TypeInt, vm.TypeInt}, vm.TypeInt)); err != nil {
		t.Fatal(err)
	}
	if err := binder.Define(vm.NewFunctionDefinition("log", []vm.Type{vm.TypeInt}, vm.TypeVoid)); err != nil {
		t.Fatal(err)
	}

	fn := intFunction("main",
		vm.NewIntInstruction(vm.OpLoadInt, 1),
		vm.NewIntInstruction(vm.OpLoadInt, 2),
		vm.NewCallInstruction("add", []vm.Type{vm.TypeInt, vm.TypeInt}),
		vm.NewInstruction(vm.OpRet),
	)
	if err := VerifyFunction(binder, fn); err != nil {
		t.Fatalf("call to add: %v", err)
	}

	void := intFunction("main",
		vm.NewIntInstruction(vm.OpLoadInt, 3),
		vm.NewCallInstruction("log", []vm.Type{vm.TypeInt}),
		vm.NewIntInstruction(vm.OpLoadInt, 0),
		vm.NewInstruction(vm.OpRet),
	)
	if err := VerifyFunction(binder, void); err != nil {
		t.Fatalf("void call pushes nothing: %v", err)
	}

	missing := intFunction("main",
		vm.NewIntInstruction(vm.OpLoadInt, 3),
		vm.NewCallInstruction("absent", []vm.Type{vm.TypeInt}),
		vm.NewInstruction(vm.OpRet),
	)
	err := VerifyFunction(binder, missing)
	if err == nil {
		t.Fatal("call to an undefined function must fail")
	}
	if want := "1: The function 'absent(Int)' is not defined."; err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestVerifyErrors(t *testing.T) {
	binder := vm.NewBinder()

	for _, tc := range []struct {
		name string
		fn   *vm.Function
		want string
	}{
		{
			name: "empty body",
			fn:   intFunction("main"),
			want: "0: Empty functions are not allowed.",
		},
		{
			name: "missing return",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 1),
			),
			want: "0: Functions must end with a return instruction.",
		},
		{
			name: "void parameter",
			fn: vm.NewFunction(
				vm.NewFunctionDefinition("f", []vm.Type{vm.TypeVoid}, vm.TypeInt),
				[]vm.Instruction{vm.NewInstruction(vm.OpRet)},
				nil,
			),
			want: "0: 'Void' is not a valid parameter type.",
		},
		{
			name: "void local",
			fn: vm.NewFunction(
				vm.NewFunctionDefinition("f", nil, vm.TypeInt),
				[]vm.Instruction{vm.NewInstruction(vm.OpRet)},
				[]vm.Type{vm.TypeVoid},
			),
			want: "0: 'Void' is not a valid local type.",
		},
		{
			name: "int arithmetic on floats",
			fn: intFunction("main",
				vm.NewFloatInstruction(vm.OpLoadFloat, 1),
				vm.NewFloatInstruction(vm.OpLoadFloat, 2),
				vm.NewInstruction(vm.OpAddInt),
				vm.NewInstruction(vm.OpRet),
			),
			want: "2: Expected type 'Int' but got type 'Float'.",
		},
		{
			name: "underflow",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewInstruction(vm.OpAddInt),
				vm.NewInstruction(vm.OpRet),
			),
			want: "1: Expected 2 operands on the stack, but got 1.",
		},
		{
			name: "wrong return type",
			fn: intFunction("main",
				vm.NewFloatInstruction(vm.OpLoadFloat, 1),
				vm.NewInstruction(vm.OpRet),
			),
			want: "1: Expected type 'Int' but got type 'Float'.",
		},
		{
			name: "unbalanced stack at return",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewIntInstruction(vm.OpLoadInt, 2),
				vm.NewInstruction(vm.OpRet),
			),
			want: "2: Expected the stack to be empty when returning, but it holds 1 values.",
		},
		{
			name: "argument out of range",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadArgument, 0),
				vm.NewInstruction(vm.OpRet),
			),
			want: "0: Invalid argument index: 0.",
		},
		{
			name: "local out of range",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadLocal, 3),
				vm.NewInstruction(vm.OpRet),
			),
			want: "0: Invalid local index: 3.",
		},
		{
			name: "branch outside body",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewIntInstruction(vm.OpBranchEqual, 9),
				vm.NewIntInstruction(vm.OpLoadInt, 0),
				vm.NewInstruction(vm.OpRet),
			),
			want: "2: Invalid branch target: 9.",
		},
		{
			name: "branch operand types differ",
			fn: intFunction("main",
				vm.NewIntInstruction(vm.OpLoadInt, 1),
				vm.NewFloatInstruction(vm.OpLoadFloat, 1),
				vm.NewIntInstruction(vm.OpBranchEqual, 3),
				vm.NewIntInstruction(vm.OpLoadInt, 0),
				vm.NewInstruction(vm.OpRet),
			),
			want: "2: Expected type 'Float' but got type 'Int'.",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyFunction(binder, tc.fn)
			if err == nil {
				t.Fatal("VerifyFunction() = nil, want error")
			}
			if err.Error() != tc.want {
				t.Errorf("error = %q, want %q", err, tc.want)
			}
			var verr Error
			if !asError(err, &verr) {
				t.Fatalf("error is %T, want validate.Error", err)
			}
		})
	}
}

func asError(err error, target *Error) bool {
	verr, ok := err.(Error)
	if ok {
		*target = verr
	}
	return ok
}
