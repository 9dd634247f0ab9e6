// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package validate provides verification of bytecode functions before
// they are handed to the compilation pipeline. Verification abstractly
// interprets each function over a stack of types, walking the
// instructions linearly without merging stack states at joins.
package validate

import (
	"github.com/svenslaggare/xonevm/vm"
)

// verifier holds the abstract interpretation state for one function.
type verifier struct {
	binder *vm.Binder
	fn     *vm.Function

	stack      []vm.Type
	maxDepth   int
	entryDepth int
}

func (v *verifier) push(t vm.Type) {
	v.stack = append(v.stack, t)
	logger.Printf("Stack after push is %v. Pushed %v", v.stack, t)
}

// pop removes the top of the type stack. expected is the total operand
// count the current instruction consumes, used for the underflow error.
func (v *verifier) pop(expected int) (vm.Type, error) {
	if len(v.stack) == 0 {
		return vm.TypeVoid, StackUnderflowError{Expected: expected, Actual: v.entryDepth}
	}
	top := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	logger.Printf("Stack after pop is %v. Popped %v", v.stack, top)
	return top, nil
}

// popChecked pops one operand and requires it to have the given type.
func (v *verifier) popChecked(wanted vm.Type, expected int) error {
	got, err := v.pop(expected)
	if err != nil {
		return err
	}
	if got != wanted {
		return WrongTypeError{Wanted: wanted, Got: got}
	}
	return nil
}

// VerifyFunction verifies a single function against the given binder
// and populates its OperandStackSize. The returned error is always of
// type Error.
func VerifyFunction(binder *vm.Binder, fn *vm.Function) error {
	v := &verifier{binder: binder, fn: fn}

	fail := func(index int, err error) error {
		var instruction vm.Instruction
		if index < len(fn.Instructions) {
			instruction = fn.Instructions[index]
		}
		return Error{
			Function:    fn.Definition.Name(),
			Index:       index,
			Instruction: instruction,
			Err:         err,
		}
	}

	for _, param := range fn.Definition.Parameters() {
		if !param.IsValidParameter() {
			return fail(0, InvalidParameterTypeError(param))
		}
	}
	for _, local := range fn.Locals {
		if !local.IsValidParameter() {
			return fail(0, InvalidLocalTypeError(local))
		}
	}

	if len(fn.Instructions) == 0 {
		return fail(0, ErrEmptyFunction)
	}
	if fn.Instructions[len(fn.Instructions)-1].Op != vm.OpRet {
		return fail(len(fn.Instructions)-1, ErrMissingReturn)
	}

	for index, instruction := range fn.Instructions {
		v.entryDepth = len(v.stack)
		if v.entryDepth > v.maxDepth {
			v.maxDepth = v.entryDepth
		}
		logger.Printf("PC: %d OP: %s stack: %v", index, instruction.Op, v.stack)
		if err := v.verifyInstruction(instruction); err != nil {
			return fail(index, err)
		}
	}

	fn.OperandStackSize = v.maxDepth
	return nil
}

func (v *verifier) verifyInstruction(instruction vm.Instruction) error {
	switch op := instruction.Op; {
	case op == vm.OpPop:
		_, err := v.pop(1)
		return err

	case op == vm.OpLoadInt:
		v.push(vm.TypeInt)

	case op == vm.OpLoadFloat:
		v.push(vm.TypeFloat)

	case op.IsIntArithmetic():
		for i := 0; i < 2; i++ {
			if err := v.popChecked(vm.TypeInt, 2); err != nil {
				return err
			}
		}
		v.push(vm.TypeInt)

	case op.IsFloatArithmetic():
		for i := 0; i < 2; i++ {
			if err := v.popChecked(vm.TypeFloat, 2); err != nil {
				return err
			}
		}
		v.push(vm.TypeFloat)

	case op == vm.OpCall:
		return v.verifyCall(instruction)

	case op == vm.OpRet:
		return v.verifyRet()

	case op == vm.OpLoadArgument:
		params := v.fn.Definition.Parameters()
		index := instruction.IntValue
		if index < 0 || index >= len(params) {
			return InvalidArgumentIndexError(index)
		}
		v.push(params[index])

	case op == vm.OpLoadLocal:
		index := instruction.IntValue
		if index < 0 || index >= len(v.fn.Locals) {
			return InvalidLocalIndexError(index)
		}
		v.push(v.fn.Locals[index])

	case op == vm.OpStoreLocal:
		index := instruction.IntValue
		if index < 0 || index >= len(v.fn.Locals) {
			return InvalidLocalIndexError(index)
		}
		return v.popChecked(v.fn.Locals[index], 1)

	case op == vm.OpBranch:
		return v.checkBranchTarget(instruction.IntValue)

	case op.IsConditionalBranch():
		if err := v.checkBranchTarget(instruction.IntValue); err != nil {
			return err
		}
		first, err := v.pop(2)
		if err != nil {
			return err
		}
		return v.popChecked(first, 2)
	}

	return nil
}

func (v *verifier) verifyCall(instruction vm.Instruction) error {
	key := vm.SignatureKey(instruction.CallName, instruction.CallParams)
	definition, ok := v.binder.Lookup(key)
	if !ok {
		return UndefinedFunctionError(key)
	}

	// Arguments are popped in reverse declaration order: the last
	// parameter sits at the top of the stack.
	params := definition.Parameters()
	for i := len(params) - 1; i >= 0; i-- {
		if err := v.popChecked(params[i], len(params)); err != nil {
			return err
		}
	}

	if returnType := definition.ReturnType(); returnType != vm.TypeVoid {
		v.push(returnType)
	}
	return nil
}

func (v *verifier) verifyRet() error {
	if returnType := v.fn.Definition.ReturnType(); returnType != vm.TypeVoid {
		if err := v.popChecked(returnType, 1); err != nil {
			return err
		}
	}
	if len(v.stack) != 0 {
		return UnbalancedStackError(len(v.stack))
	}
	return nil
}

func (v *verifier) checkBranchTarget(target int) error {
	if target < 0 || target >= len(v.fn.Instructions) {
		return InvalidBranchTargetError(target)
	}
	return nil
}
