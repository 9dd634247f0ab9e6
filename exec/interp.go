// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/svenslaggare/xonevm/exec/internal/compile"
	"github.com/svenslaggare/xonevm/vm"
)

// ErrDivisionByZero is returned by the interpreter for integer
// division by zero.
var ErrDivisionByZero = errors.New("exec: integer division by zero")

// Interpreter executes bytecode directly over a []uint64 operand
// stack. It serves as the reference for the compiled code: an executed
// entry point must return the same value the interpreter produces for
// the same bytecode. Integers are held as zero-extended 32-bit values,
// floats as their 32-bit IEEE bits.
type Interpreter struct {
	binder    *vm.Binder
	functions map[string]*vm.Function
	hostFuncs map[string]reflect.Value

	// lowered caches the virtual-register form per function; the
	// interpreter consults it for the operand kinds of conditional
	// branches.
	lowered map[*vm.Function]*compile.LoweredFunction
}

// Interpreter returns an interpreter over the functions loaded into
// this container.
func (m *VM) Interpreter() *Interpreter {
	functions := make(map[string]*vm.Function, len(m.functions))
	for _, fn := range m.functions {
		functions[fn.Definition.Signature()] = fn
	}
	return &Interpreter{
		binder:    m.binder,
		functions: functions,
		hostFuncs: m.hostFuncs,
		lowered:   make(map[*vm.Function]*compile.LoweredFunction),
	}
}

// RunMain executes the main() Int function.
func (ip *Interpreter) RunMain() (int32, error) {
	definition, ok := ip.binder.Lookup(vm.SignatureKey("main", nil))
	if !ok {
		return 0, ErrNoEntryPoint
	}
	if definition.ReturnType() != vm.TypeInt || !definition.IsManaged() {
		return 0, ErrInvalidEntryPoint
	}
	result, err := ip.Call(definition, nil)
	return int32(uint32(result)), err
}

// Call executes the given definition with raw argument values.
func (ip *Interpreter) Call(definition *vm.FunctionDefinition, args []uint64) (uint64, error) {
	if !definition.IsManaged() {
		return ip.callHost(definition, args)
	}
	fn, ok := ip.functions[definition.Signature()]
	if !ok {
		return 0, fmt.Errorf("exec: function %q is not loaded", definition.Signature())
	}
	return ip.run(fn, args)
}

func (ip *Interpreter) callHost(definition *vm.FunctionDefinition, args []uint64) (uint64, error) {
	host, ok := ip.hostFuncs[definition.Signature()]
	if !ok {
		return 0, fmt.Errorf("exec: external %q has no host function", definition.Signature())
	}
	in := make([]reflect.Value, len(args))
	for i, param := range definition.Parameters() {
		if param == vm.TypeFloat {
			in[i] = reflect.ValueOf(math.Float32frombits(uint32(args[i])))
		} else {
			in[i] = reflect.ValueOf(int32(uint32(args[i])))
		}
	}
	out := host.Call(in)
	switch definition.ReturnType() {
	case vm.TypeFloat:
		return uint64(math.Float32bits(out[0].Interface().(float32))), nil
	case vm.TypeInt:
		return uint64(uint32(out[0].Int())), nil
	default:
		return 0, nil
	}
}

func (ip *Interpreter) loweredOf(fn *vm.Function) (*compile.LoweredFunction, error) {
	if lowered, ok := ip.lowered[fn]; ok {
		return lowered, nil
	}
	lowered, err := compile.LowerFunction(ip.binder, fn)
	if err != nil {
		return nil, err
	}
	ip.lowered[fn] = lowered
	return lowered, nil
}

func (ip *Interpreter) run(fn *vm.Function, args []uint64) (uint64, error) {
	lowered, err := ip.loweredOf(fn)
	if err != nil {
		return 0, err
	}

	locals := make([]uint64, len(fn.Locals))
	stack := make([]uint64, 0, fn.OperandStackSize)
	push := func(v uint64) { stack = append(stack, v) }
	pop := func() uint64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for pc := 0; pc < len(fn.Instructions); pc++ {
		instruction := fn.Instructions[pc]
		logger.Printf("PC: %d OP: %s stack: %v", pc, instruction.Op, stack)

		switch op := instruction.Op; {
		case op == vm.OpPop:
			pop()

		case op == vm.OpLoadInt:
			push(uint64(uint32(int32(instruction.IntValue))))

		case op == vm.OpLoadFloat:
			push(uint64(math.Float32bits(instruction.FloatValue)))

		case op.IsIntArithmetic():
			right := int32(uint32(pop()))
			left := int32(uint32(pop()))
			var result int32
			switch op {
			case vm.OpAddInt:
				result = left + right
			case vm.OpSubInt:
				result = left - right
			case vm.OpMulInt:
				result = left * right
			case vm.OpDivInt:
				if right == 0 {
					return 0, ErrDivisionByZero
				}
				result = left / right
			}
			push(uint64(uint32(result)))

		case op.IsFloatArithmetic():
			right := math.Float32frombits(uint32(pop()))
			left := math.Float32frombits(uint32(pop()))
			var result float32
			switch op {
			case vm.OpAddFloat:
				result = left + right
			case vm.OpSubFloat:
				result = left - right
			case vm.OpMulFloat:
				result = left * right
			case vm.OpDivFloat:
				result = left / right
			}
			push(uint64(math.Float32bits(result)))

		case op == vm.OpCall:
			key := vm.SignatureKey(instruction.CallName, instruction.CallParams)
			callee, ok := ip.binder.Lookup(key)
			if !ok {
				return 0, fmt.Errorf("exec: call to undefined function %q", key)
			}
			callArgs := make([]uint64, len(callee.Parameters()))
			for i := len(callArgs) - 1; i >= 0; i-- {
				callArgs[i] = pop()
			}
			result, err := ip.Call(callee, callArgs)
			if err != nil {
				return 0, err
			}
			if callee.ReturnType() != vm.TypeVoid {
				push(result)
			}

		case op == vm.OpRet:
			if fn.Definition.ReturnType() == vm.TypeVoid {
				return 0, nil
			}
			return pop(), nil

		case op == vm.OpLoadArgument:
			push(args[instruction.IntValue])

		case op == vm.OpLoadLocal:
			push(locals[instruction.IntValue])

		case op == vm.OpStoreLocal:
			locals[instruction.IntValue] = pop()

		case op == vm.OpBranch:
			pc = instruction.IntValue - 1

		case op.IsConditionalBranch():
			right := pop()
			left := pop()
			var taken bool
			if lowered.Instructions[pc].Uses[0].Kind == compile.FloatRegister {
				taken = compareFloat(op, math.Float32frombits(uint32(left)), math.Float32frombits(uint32(right)))
			} else {
				taken = compareInt(op, int32(uint32(left)), int32(uint32(right)))
			}
			if taken {
				pc = instruction.IntValue - 1
			}

		default:
			return 0, fmt.Errorf("exec: cannot interpret op %s", op)
		}
	}

	return 0, fmt.Errorf("exec: %q fell off the end of its body", fn.Definition.Signature())
}

func compareInt(op vm.OpCode, left, right int32) bool {
	switch op {
	case vm.OpBranchEqual:
		return left == right
	case vm.OpBranchNotEqual:
		return left != right
	case vm.OpBranchGreaterThan:
		return left > right
	case vm.OpBranchGreaterOrEqual:
		return left >= right
	case vm.OpBranchLessThan:
		return left < right
	default:
		return left <= right
	}
}

func compareFloat(op vm.OpCode, left, right float32) bool {
	switch op {
	case vm.OpBranchEqual:
		return left == right
	case vm.OpBranchNotEqual:
		return left != right
	case vm.OpBranchGreaterThan:
		return left > right
	case vm.OpBranchGreaterOrEqual:
		return left >= right
	case vm.OpBranchLessThan:
		return left < right
	default:
		return left <= right
	}
}
