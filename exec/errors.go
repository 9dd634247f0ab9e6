// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"errors"
	"fmt"
)

// ErrNoEntryPoint is returned when no main function is defined.
var ErrNoEntryPoint = errors.New("There is no entry point defined.")

// ErrInvalidEntryPoint is returned when main is defined with a
// signature other than 'main() Int'.
var ErrInvalidEntryPoint = errors.New("Expected the main function to have the signature: 'main() Int'.")

// ErrAlreadyCompiled is returned when functions are loaded or compiled
// after Compile has completed.
var ErrAlreadyCompiled = errors.New("exec: the container has already been compiled")

// ErrNotCompiled is returned when an entry point is requested before
// Compile has run.
var ErrNotCompiled = errors.New("exec: the container has not been compiled")

// ErrNativeExecutionUnsupported is returned on platforms where compiled
// code cannot be invoked.
var ErrNativeExecutionUnsupported = errors.New("exec: native execution requires windows/amd64")

// UnknownSettingError is returned for settings names outside the
// recognized set.
type UnknownSettingError string

func (e UnknownSettingError) Error() string {
	return fmt.Sprintf("exec: unknown setting %q", string(e))
}
