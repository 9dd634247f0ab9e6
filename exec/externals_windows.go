// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows && amd64

package exec

import (
	"reflect"
	"syscall"

	"github.com/svenslaggare/xonevm/vm"
)

// newTrampoline derives a native entry for a host function. Callbacks
// carry uintptr-sized values only, so signatures involving floats (or
// more than four parameters) get no trampoline and remain
// interpreter-only; compiling a call to such a function fails at patch
// time.
func newTrampoline(params []vm.Type, returnType vm.Type, fn reflect.Value) (uintptr, error) {
	if returnType == vm.TypeFloat || len(params) > 4 {
		return 0, nil
	}
	for _, param := range params {
		if param != vm.TypeInt {
			return 0, nil
		}
	}

	call := func(args ...uintptr) uintptr {
		in := make([]reflect.Value, len(params))
		for i := range params {
			in[i] = reflect.ValueOf(int32(args[i]))
		}
		out := fn.Call(in)
		if returnType == vm.TypeVoid {
			return 0
		}
		return uintptr(uint32(out[0].Int()))
	}

	switch len(params) {
	case 0:
		return syscall.NewCallback(func() uintptr { return call() }), nil
	case 1:
		return syscall.NewCallback(func(a uintptr) uintptr { return call(a) }), nil
	case 2:
		return syscall.NewCallback(func(a, b uintptr) uintptr { return call(a, b) }), nil
	case 3:
		return syscall.NewCallback(func(a, b, c uintptr) uintptr { return call(a, b, c) }), nil
	default:
		return syscall.NewCallback(func(a, b, c, d uintptr) uintptr { return call(a, b, c, d) }), nil
	}
}
