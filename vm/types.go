// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vm defines the bytecode model shared by the verifier, the
// compilation pipeline and the host API: types, instructions, functions,
// assemblies and the binder that registers function signatures.
package vm

import "fmt"

// Type represents the type of a value on the operand stack or in a
// local variable. Two Type values compare equal iff they name the same
// type.
type Type int8

const (
	TypeInt Type = iota
	TypeFloat
	TypeVoid
)

var typeStrMap = map[Type]string{
	TypeInt:   "Int",
	TypeFloat: "Float",
	TypeVoid:  "Void",
}

func (t Type) String() string {
	str, ok := typeStrMap[t]
	if !ok {
		str = fmt.Sprintf("<unknown type %d>", int8(t))
	}
	return str
}

// IsValidParameter reports whether a value of this type may be passed
// as an argument or stored in a local variable.
func (t Type) IsValidParameter() bool {
	return t == TypeInt || t == TypeFloat
}
