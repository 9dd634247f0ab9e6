// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"fmt"

	"github.com/svenslaggare/xonevm/vm"
)

// RegisterKind separates the integer and float virtual-register
// namespaces; each kind is allocated from its own hardware pool.
type RegisterKind int8

const (
	IntegerRegister RegisterKind = iota
	FloatRegister
)

func (k RegisterKind) String() string {
	if k == FloatRegister {
		return "float"
	}
	return "int"
}

// VirtualRegister is the symbolic, pre-allocation name for a value
// produced or consumed by an instruction. Registers holding operand
// stack values are numbered by their stack position; local variables
// occupy dedicated numbers above the stack high-water mark.
type VirtualRegister struct {
	Kind   RegisterKind
	Number int
}

func (r VirtualRegister) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.Number)
}

// VirtualInstruction is a bytecode instruction annotated with the
// virtual registers it consumes and defines. Uses are listed in pop
// order, top of stack first.
type VirtualInstruction struct {
	Instruction vm.Instruction
	Uses        []VirtualRegister
	Def         *VirtualRegister
}

// UsesRegister reports whether the instruction consumes the given
// register.
func (i *VirtualInstruction) UsesRegister(r VirtualRegister) bool {
	for _, use := range i.Uses {
		if use == r {
			return true
		}
	}
	return false
}

// Defines reports whether the instruction defines the given register.
func (i *VirtualInstruction) Defines(r VirtualRegister) bool {
	return i.Def != nil && *i.Def == r
}

// LoweredFunction is the virtual-register form of a function body. The
// instruction sequence parallels the bytecode one index for index.
type LoweredFunction struct {
	Function     *vm.Function
	Instructions []VirtualInstruction

	// LocalRegisters holds the dedicated register of each local
	// variable, indexed by local number.
	LocalRegisters []VirtualRegister

	// StackRegisters is the operand stack high-water mark, which is
	// also the number of the first local register.
	StackRegisters int
}

// lowerer simulates the operand stack at compile time to assign
// virtual registers to every value that flows through it.
type lowerer struct {
	binder *vm.Binder
	fn     *vm.Function

	stack []VirtualRegister
	max   int
}

func (l *lowerer) push(kind RegisterKind) VirtualRegister {
	r := VirtualRegister{Kind: kind, Number: len(l.stack)}
	l.stack = append(l.stack, r)
	if len(l.stack) > l.max {
		l.max = len(l.stack)
	}
	return r
}

func (l *lowerer) pop() VirtualRegister {
	r := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return r
}

func kindOf(t vm.Type) RegisterKind {
	if t == vm.TypeFloat {
		return FloatRegister
	}
	return IntegerRegister
}

// LowerFunction translates a verified function from its stack form into
// virtual-register form. Each LoadLocal/StoreLocal is patched in a
// second pass to reference the dedicated register of its local.
func LowerFunction(binder *vm.Binder, fn *vm.Function) (*LoweredFunction, error) {
	l := &lowerer{binder: binder, fn: fn}
	lowered := &LoweredFunction{
		Function:     fn,
		Instructions: make([]VirtualInstruction, 0, len(fn.Instructions)),
	}

	// Indices of instructions whose local register is patched below.
	var localAccesses []int

	for index, instruction := range fn.Instructions {
		vi := VirtualInstruction{Instruction: instruction}

		switch op := instruction.Op; {
		case op == vm.OpPop:
			vi.Uses = []VirtualRegister{l.pop()}

		case op == vm.OpLoadInt:
			def := l.push(IntegerRegister)
			vi.Def = &def

		case op == vm.OpLoadFloat:
			def := l.push(FloatRegister)
			vi.Def = &def

		case op.IsIntArithmetic(), op.IsFloatArithmetic():
			kind := IntegerRegister
			if op.IsFloatArithmetic() {
				kind = FloatRegister
			}
			vi.Uses = []VirtualRegister{l.pop(), l.pop()}
			def := l.push(kind)
			vi.Def = &def

		case op == vm.OpCall:
			key := vm.SignatureKey(instruction.CallName, instruction.CallParams)
			definition, ok := binder.Lookup(key)
			if !ok {
				return nil, fmt.Errorf("compile: call to undefined function %q", key)
			}
			for range definition.Parameters() {
				vi.Uses = append(vi.Uses, l.pop())
			}
			if returnType := definition.ReturnType(); returnType != vm.TypeVoid {
				def := l.push(kindOf(returnType))
				vi.Def = &def
			}

		case op == vm.OpRet:
			if fn.Definition.ReturnType() != vm.TypeVoid {
				vi.Uses = []VirtualRegister{l.pop()}
			}

		case op == vm.OpLoadArgument:
			def := l.push(kindOf(fn.Definition.Parameters()[instruction.IntValue]))
			vi.Def = &def

		case op == vm.OpLoadLocal:
			def := l.push(kindOf(fn.Locals[instruction.IntValue]))
			vi.Def = &def
			localAccesses = append(localAccesses, index)

		case op == vm.OpStoreLocal:
			vi.Uses = []VirtualRegister{l.pop()}
			localAccesses = append(localAccesses, index)

		case op == vm.OpBranch:
			// No operands.

		case op.IsConditionalBranch():
			vi.Uses = []VirtualRegister{l.pop(), l.pop()}

		default:
			return nil, fmt.Errorf("compile: cannot lower op %s", op)
		}

		lowered.Instructions = append(lowered.Instructions, vi)
	}

	lowered.StackRegisters = l.max

	// Assign each local its dedicated register above the stack
	// registers, then patch every access to reference it.
	lowered.LocalRegisters = make([]VirtualRegister, len(fn.Locals))
	for i, local := range fn.Locals {
		lowered.LocalRegisters[i] = VirtualRegister{
			Kind:   kindOf(local),
			Number: lowered.StackRegisters + i,
		}
	}
	for _, index := range localAccesses {
		vi := &lowered.Instructions[index]
		local := lowered.LocalRegisters[vi.Instruction.IntValue]
		if vi.Instruction.Op == vm.OpLoadLocal {
			vi.Uses = []VirtualRegister{local}
		} else {
			vi.Def = &local
		}
	}

	return lowered, nil
}
