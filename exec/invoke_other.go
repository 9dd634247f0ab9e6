// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows || !amd64

package exec

const nativeExecutionSupported = false

func invokeEntry(entry uintptr) int32 { return 0 }
