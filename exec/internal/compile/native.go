// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import "github.com/svenslaggare/xonevm/vm"

// AddressingMode selects how an unresolved call site is patched.
type AddressingMode int

const (
	// RelativeAddressing patches a rel32 displacement.
	RelativeAddressing AddressingMode = iota
	// AbsoluteAddressing patches a 64-bit absolute address.
	AbsoluteAddressing
)

// UnresolvedBranchTarget records an emitted branch whose destination
// lies in the same function and is patched once the function has been
// placed in executable memory.
type UnresolvedBranchTarget struct {
	// PatchSite is the offset of the rel32 displacement within the
	// function's generated code.
	PatchSite int
	// TargetIndex is the bytecode index of the destination instruction.
	TargetIndex int
}

// UnresolvedFunctionCall records an emitted call whose callee entry
// point is unknown until every function of the assembly has been
// emitted.
type UnresolvedFunctionCall struct {
	// PatchSite is the offset of the displacement or absolute-address
	// immediate within the function's generated code.
	PatchSite int
	// Signature is the binder key of the callee.
	Signature string
	Mode      AddressingMode
}

// CompiledFunction is the output of the backend for one function: the
// emitted code and the patch tables that the caller resolves after
// placement.
type CompiledFunction struct {
	Function *vm.Function
	Code     []byte
	Branches []UnresolvedBranchTarget
	Calls    []UnresolvedFunctionCall
}
