// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vm

import "fmt"

// FunctionDefinition describes a callable function: its signature, its
// return type, and whether it is managed (bytecode-defined) or external
// (backed by a host-side trampoline pointer).
type FunctionDefinition struct {
	name       string
	params     []Type
	returnType Type

	managed    bool
	entryPoint uintptr
}

// NewFunctionDefinition creates the definition of a managed function.
func NewFunctionDefinition(name string, params []Type, returnType Type) *FunctionDefinition {
	return &FunctionDefinition{
		name:       name,
		params:     params,
		returnType: returnType,
		managed:    true,
	}
}

// NewExternalFunctionDefinition creates the definition of an external
// function backed by the given native entry point.
func NewExternalFunctionDefinition(name string, params []Type, returnType Type, entryPoint uintptr) *FunctionDefinition {
	return &FunctionDefinition{
		name:       name,
		params:     params,
		returnType: returnType,
		entryPoint: entryPoint,
	}
}

func (d *FunctionDefinition) Name() string       { return d.name }
func (d *FunctionDefinition) Parameters() []Type { return d.params }
func (d *FunctionDefinition) ReturnType() Type   { return d.returnType }

// IsManaged reports whether the function is defined in bytecode.
func (d *FunctionDefinition) IsManaged() bool { return d.managed }

// EntryPoint returns the native address of the compiled body for
// managed functions, or the trampoline pointer for external ones. For
// managed functions it is zero until code generation has run.
func (d *FunctionDefinition) EntryPoint() uintptr { return d.entryPoint }

// SetEntryPoint records the native entry of a compiled managed function.
func (d *FunctionDefinition) SetEntryPoint(entryPoint uintptr) { d.entryPoint = entryPoint }

// Signature returns the binder key for this definition.
func (d *FunctionDefinition) Signature() string {
	return SignatureKey(d.name, d.params)
}

func (d *FunctionDefinition) String() string {
	return fmt.Sprintf("%s %s", d.Signature(), d.returnType)
}

// Function is a managed function: its definition, its bytecode body and
// its local-variable types. The remaining fields are populated as the
// function moves through the compilation pipeline.
type Function struct {
	Definition   *FunctionDefinition
	Instructions []Instruction
	Locals       []Type

	// Optimize selects register-allocated code generation instead of
	// the memory operand stack.
	Optimize bool

	// OperandStackSize is the maximum operand stack depth, populated by
	// the verifier.
	OperandStackSize int

	// GeneratedCode holds the emitted machine code after compilation.
	GeneratedCode []byte

	// InstructionMapping maps each bytecode instruction index to the
	// offset of its first emitted byte within GeneratedCode.
	InstructionMapping []int
}

// NewFunction creates a managed function with the given body.
func NewFunction(definition *FunctionDefinition, instructions []Instruction, locals []Type) *Function {
	return &Function{
		Definition:   definition,
		Instructions: instructions,
		Locals:       locals,
	}
}

// Assembly is an ordered list of functions that are loaded together.
type Assembly struct {
	Name      string
	Functions []*Function
}

// NewAssembly creates an assembly from the given functions.
func NewAssembly(name string, functions ...*Function) *Assembly {
	return &Assembly{Name: name, Functions: functions}
}
