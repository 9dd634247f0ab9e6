// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package exec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/svenslaggare/xonevm/vm"
)

func TestSetSetting(t *testing.T) {
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.SetSetting(SettingNumIntRegisters, 0))
	require.NoError(t, container.SetSetting(SettingNumFloatRegisters, 3))
	require.Equal(t, 0, container.config.NumIntRegisters)
	require.Equal(t, 3, container.config.NumFloatRegisters)

	err := container.SetSetting("NumVectorRegisters", 1)
	require.Error(t, err)
	require.IsType(t, UnknownSettingError(""), err)
}

func TestLoadAssemblyDuplicate(t *testing.T) {
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.LoadAssembly(addProgram()))
	err := container.LoadAssembly(addProgram())
	require.EqualError(t, err, "The function 'main()' is already defined.")
}

// Emission, placement and patching are platform-independent; only
// invocation requires windows/amd64.
func TestCompilePopulatesFunctions(t *testing.T) {
	for _, optimize := range []bool{false, true} {
		assembly := fibProgram()
		for _, fn := range assembly.Functions {
			fn.Optimize = optimize
		}

		container := NewVM(DefaultConfig())
		require.NoError(t, container.LoadAssembly(assembly))
		require.NoError(t, container.Compile())

		for _, fn := range assembly.Functions {
			require.NotEmpty(t, fn.GeneratedCode)
			require.Len(t, fn.InstructionMapping, len(fn.Instructions))
			require.NotZero(t, fn.Definition.EntryPoint())
			require.Positive(t, fn.OperandStackSize)
		}
		require.NoError(t, container.Close())
	}
}

func TestCompileRejectsInvalidFunctions(t *testing.T) {
	broken := vm.NewFunction(vm.NewFunctionDefinition("main", nil, vm.TypeInt), nil, nil)
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.LoadAssembly(vm.NewAssembly("broken", broken)))
	err := container.Compile()
	require.EqualError(t, err, "0: Empty functions are not allowed.")
}

func TestCompileTwice(t *testing.T) {
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.LoadAssembly(addProgram()))
	require.NoError(t, container.Compile())
	require.ErrorIs(t, container.Compile(), ErrAlreadyCompiled)
	require.ErrorIs(t, container.LoadAssembly(nestedAddProgram()), ErrAlreadyCompiled)
}

func TestEntryPointErrors(t *testing.T) {
	container := NewVM(DefaultConfig())
	defer container.Close()

	_, err := container.EntryPoint()
	require.ErrorIs(t, err, ErrNotCompiled)

	helper := vm.NewFunction(
		vm.NewFunctionDefinition("helper", nil, vm.TypeInt),
		[]vm.Instruction{
			vm.NewIntInstruction(vm.OpLoadInt, 1),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
	require.NoError(t, container.LoadAssembly(vm.NewAssembly("no-main", helper)))
	require.NoError(t, container.Compile())
	_, err = container.EntryPoint()
	require.EqualError(t, err, "There is no entry point defined.")
}

func TestEntryPointSignatureMismatch(t *testing.T) {
	badMain := vm.NewFunction(
		vm.NewFunctionDefinition("main", nil, vm.TypeFloat),
		[]vm.Instruction{
			vm.NewFloatInstruction(vm.OpLoadFloat, 1),
			vm.NewInstruction(vm.OpRet),
		},
		nil,
	)
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.LoadAssembly(vm.NewAssembly("bad-main", badMain)))
	require.NoError(t, container.Compile())
	_, err := container.EntryPoint()
	require.EqualError(t, err, "Expected the main function to have the signature: 'main() Int'.")
}

func TestEntryPointPlatformGate(t *testing.T) {
	if runtime.GOOS == "windows" && runtime.GOARCH == "amd64" {
		t.Skip("native execution is supported here")
	}
	container := NewVM(DefaultConfig())
	defer container.Close()

	require.NoError(t, container.LoadAssembly(addProgram()))
	require.NoError(t, container.Compile())
	_, err := container.EntryPoint()
	require.ErrorIs(t, err, ErrNativeExecutionUnsupported)
}
