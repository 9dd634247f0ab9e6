// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"reflect"

	"github.com/svenslaggare/xonevm/vm"
)

func goType(t vm.Type) reflect.Type {
	if t == vm.TypeFloat {
		return reflect.TypeOf(float32(0))
	}
	return reflect.TypeOf(int32(0))
}

// DefineExternalFunc registers a host Go function under the given
// signature. The function must take one int32/float32 parameter per
// declared parameter type and return int32, float32 or nothing,
// matching the declared return type. The interpreter calls the Go value
// directly; on windows/amd64 a native trampoline is derived so compiled
// code can call it too (integer-only signatures with at most four
// parameters).
func (m *VM) DefineExternalFunc(name string, params []vm.Type, returnType vm.Type, fn interface{}) error {
	value := reflect.ValueOf(fn)

	in := make([]reflect.Type, len(params))
	for i, param := range params {
		in[i] = goType(param)
	}
	var out []reflect.Type
	if returnType != vm.TypeVoid {
		out = []reflect.Type{goType(returnType)}
	}
	if expected := reflect.FuncOf(in, out, false); value.Type() != expected {
		return fmt.Errorf("exec: external %q must have type %s, got %s",
			name, expected, value.Type())
	}

	trampoline, err := newTrampoline(params, returnType, value)
	if err != nil {
		return err
	}
	definition := vm.NewExternalFunctionDefinition(name, params, returnType, trampoline)
	if err := m.binder.Define(definition); err != nil {
		return err
	}
	m.hostFuncs[definition.Signature()] = value
	return nil
}

// DefineExternalPointer registers a raw native function pointer under
// the given signature. The pointer must follow the Win64 calling
// convention; it is not callable from the interpreter.
func (m *VM) DefineExternalPointer(name string, params []vm.Type, returnType vm.Type, entryPoint uintptr) error {
	return m.binder.Define(vm.NewExternalFunctionDefinition(name, params, returnType, entryPoint))
}
