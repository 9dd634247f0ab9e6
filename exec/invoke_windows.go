// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows && amd64

package exec

import "syscall"

const nativeExecutionSupported = true

// invokeEntry calls a compiled entry point. Invocation is re-entrant;
// the container does not serialize host-side calls.
func invokeEntry(entry uintptr) int32 {
	r, _, _ := syscall.SyscallN(entry)
	return int32(r)
}
