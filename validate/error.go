// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package validate

import (
	"errors"
	"fmt"

	"github.com/svenslaggare/xonevm/vm"
)

// Error wraps verification errors with information about where the
// error was encountered.
type Error struct {
	Function    string         // Name of the offending function.
	Index       int            // Index of the offending instruction.
	Instruction vm.Instruction // The offending instruction itself.
	Err         error
}

func (e Error) Error() string {
	return fmt.Sprintf("%d: %v", e.Index, e.Err)
}

func (e Error) Unwrap() error { return e.Err }

// ErrEmptyFunction is returned for functions without instructions.
var ErrEmptyFunction = errors.New("Empty functions are not allowed.")

// ErrMissingReturn is returned when the last instruction of a function
// is not Ret.
var ErrMissingReturn = errors.New("Functions must end with a return instruction.")

// InvalidParameterTypeError is returned when a signature declares a
// parameter of a type that cannot hold a value.
type InvalidParameterTypeError vm.Type

func (e InvalidParameterTypeError) Error() string {
	return fmt.Sprintf("'%s' is not a valid parameter type.", vm.Type(e))
}

// InvalidLocalTypeError is returned when a function declares a local
// variable of a type that cannot hold a value.
type InvalidLocalTypeError vm.Type

func (e InvalidLocalTypeError) Error() string {
	return fmt.Sprintf("'%s' is not a valid local type.", vm.Type(e))
}

// StackUnderflowError is returned when an instruction consumes more
// operands than the stack holds.
type StackUnderflowError struct {
	Expected int
	Actual   int
}

func (e StackUnderflowError) Error() string {
	return fmt.Sprintf("Expected %d operands on the stack, but got %d.", e.Expected, e.Actual)
}

// WrongTypeError is returned when an operand has a different type than
// the instruction requires.
type WrongTypeError struct {
	Wanted vm.Type
	Got    vm.Type
}

func (e WrongTypeError) Error() string {
	return fmt.Sprintf("Expected type '%s' but got type '%s'.", e.Wanted, e.Got)
}

// UndefinedFunctionError is returned when a call names a signature that
// the binder does not know.
type UndefinedFunctionError string

func (e UndefinedFunctionError) Error() string {
	return fmt.Sprintf("The function '%s' is not defined.", string(e))
}

// InvalidArgumentIndexError is returned when LoadArgument references a
// parameter that does not exist.
type InvalidArgumentIndexError int

func (e InvalidArgumentIndexError) Error() string {
	return fmt.Sprintf("Invalid argument index: %d.", int(e))
}

// InvalidLocalIndexError is returned when a local variable index is
// referenced which does not exist.
type InvalidLocalIndexError int

func (e InvalidLocalIndexError) Error() string {
	return fmt.Sprintf("Invalid local index: %d.", int(e))
}

// InvalidBranchTargetError is returned when a branch targets an
// instruction index outside the function body.
type InvalidBranchTargetError int

func (e InvalidBranchTargetError) Error() string {
	return fmt.Sprintf("Invalid branch target: %d.", int(e))
}

// UnbalancedStackError is returned when values remain on the stack at a
// return instruction.
type UnbalancedStackError int

func (e UnbalancedStackError) Error() string {
	return fmt.Sprintf("Expected the stack to be empty when returning, but it holds %d values.", int(e))
}
