// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import (
	"fmt"
	"strings"
)

// OpCode identifies a bytecode operation.
type OpCode byte

const (
	OpPop OpCode = iota
	OpLoadInt
	OpLoadFloat
	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat
	OpCall
	OpRet
	OpLoadArgument
	OpLoadLocal
	OpStoreLocal
	OpBranch
	OpBranchEqual
	OpBranchNotEqual
	OpBranchGreaterThan
	OpBranchGreaterOrEqual
	OpBranchLessThan
	OpBranchLessOrEqual
)

var opCodeStrMap = map[OpCode]string{
	OpPop:                  "Pop",
	OpLoadInt:              "LoadInt",
	OpLoadFloat:            "LoadFloat",
	OpAddInt:               "AddInt",
	OpSubInt:               "SubInt",
	OpMulInt:               "MulInt",
	OpDivInt:               "DivInt",
	OpAddFloat:             "AddFloat",
	OpSubFloat:             "SubFloat",
	OpMulFloat:             "MulFloat",
	OpDivFloat:             "DivFloat",
	OpCall:                 "Call",
	OpRet:                  "Ret",
	OpLoadArgument:         "LoadArgument",
	OpLoadLocal:            "LoadLocal",
	OpStoreLocal:           "StoreLocal",
	OpBranch:               "Branch",
	OpBranchEqual:          "BranchEqual",
	OpBranchNotEqual:       "BranchNotEqual",
	OpBranchGreaterThan:    "BranchGreaterThan",
	OpBranchGreaterOrEqual: "BranchGreaterOrEqual",
	OpBranchLessThan:       "BranchLessThan",
	OpBranchLessOrEqual:    "BranchLessOrEqual",
}

func (op OpCode) String() string {
	str, ok := opCodeStrMap[op]
	if !ok {
		str = fmt.Sprintf("<unknown op_code %d>", byte(op))
	}
	return str
}

// IsConditionalBranch reports whether the opcode compares two operands
// and transfers control.
func (op OpCode) IsConditionalBranch() bool {
	return op >= OpBranchEqual && op <= OpBranchLessOrEqual
}

// IsBranch reports whether the opcode transfers control to an explicit
// target instruction.
func (op OpCode) IsBranch() bool {
	return op == OpBranch || op.IsConditionalBranch()
}

// IsIntArithmetic reports whether the opcode is a binary integer
// arithmetic operation.
func (op OpCode) IsIntArithmetic() bool {
	return op >= OpAddInt && op <= OpDivInt
}

// IsFloatArithmetic reports whether the opcode is a binary float
// arithmetic operation.
func (op OpCode) IsFloatArithmetic() bool {
	return op >= OpAddFloat && op <= OpDivFloat
}

// Instruction is a single bytecode operation together with its
// immediate operands. Instructions are immutable values; branch targets
// are instruction indices, not byte offsets.
type Instruction struct {
	Op OpCode

	// IntValue holds the integer immediate: the constant for LoadInt,
	// the argument or local index for LoadArgument/LoadLocal/StoreLocal,
	// and the target instruction index for branches.
	IntValue int

	// FloatValue holds the constant for LoadFloat.
	FloatValue float32

	// CallName and CallParams identify the callee signature for Call.
	CallName   string
	CallParams []Type
}

// NewInstruction creates an instruction without immediates.
func NewInstruction(op OpCode) Instruction {
	return Instruction{Op: op}
}

// NewIntInstruction creates an instruction with an integer immediate.
func NewIntInstruction(op OpCode, value int) Instruction {
	return Instruction{Op: op, IntValue: value}
}

// NewFloatInstruction creates an instruction with a float immediate.
func NewFloatInstruction(op OpCode, value float32) Instruction {
	return Instruction{Op: op, FloatValue: value}
}

// NewCallInstruction creates a call to the function identified by the
// given name and parameter types.
func NewCallInstruction(name string, params []Type) Instruction {
	return Instruction{Op: OpCall, CallName: name, CallParams: params}
}

func (i Instruction) String() string {
	switch {
	case i.Op == OpLoadFloat:
		return fmt.Sprintf("%s %g", i.Op, i.FloatValue)
	case i.Op == OpCall:
		return fmt.Sprintf("%s %s", i.Op, SignatureKey(i.CallName, i.CallParams))
	case i.Op == OpLoadInt || i.Op.IsBranch(),
		i.Op == OpLoadArgument || i.Op == OpLoadLocal || i.Op == OpStoreLocal:
		return fmt.Sprintf("%s %d", i.Op, i.IntValue)
	default:
		return i.Op.String()
	}
}

// SignatureKey returns the textual form under which a function
// signature is registered with the binder.
func SignatureKey(name string, params []Type) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, param := range params {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(param.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
