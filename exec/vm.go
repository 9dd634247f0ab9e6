// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exec is the host-facing container around the compilation
// pipeline: it owns the binder, the code-page allocator and the loaded
// functions, verifies and compiles whole assemblies, resolves the
// recorded branch and call sites, and hands out the native entry point.
package exec

import (
	"fmt"
	"reflect"

	"github.com/svenslaggare/xonevm/exec/internal/compile"
	"github.com/svenslaggare/xonevm/exec/internal/x64"
	"github.com/svenslaggare/xonevm/validate"
	"github.com/svenslaggare/xonevm/vm"
)

// Recognized setting names for (*VM).SetSetting.
const (
	SettingNumIntRegisters   = "NumIntRegisters"
	SettingNumFloatRegisters = "NumFloatRegisters"
)

// Config carries the tunable knobs of a VM instance.
type Config struct {
	// NumIntRegisters is the size of the integer allocation pool.
	// Zero disables integer allocation, forcing all spills.
	NumIntRegisters int

	// NumFloatRegisters is the float counterpart of NumIntRegisters.
	NumFloatRegisters int

	// PageSize overrides the code-page size; zero selects the default.
	PageSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		NumIntRegisters:   7,
		NumFloatRegisters: 7,
	}
}

// placedFunction pairs a compiled function with its writable region of
// code memory, kept until patching has completed.
type placedFunction struct {
	compiled *compile.CompiledFunction
	region   []byte
}

// VM owns one compiler, one binder, one memory manager and a set of
// loaded functions. It is single-threaded: all operations run to
// completion on the calling thread.
type VM struct {
	config    Config
	binder    *vm.Binder
	functions []*vm.Function
	hostFuncs map[string]reflect.Value

	allocator *compile.PageAllocator
	compiled  bool
}

// NewVM creates a container with the given configuration.
func NewVM(config Config) *VM {
	return &VM{
		config:    config,
		binder:    vm.NewBinder(),
		hostFuncs: make(map[string]reflect.Value),
		allocator: compile.NewPageAllocator(config.PageSize),
	}
}

// Binder returns the function registry of this container.
func (m *VM) Binder() *vm.Binder { return m.binder }

// SetSetting updates a configuration knob by name. Recognized names
// are NumIntRegisters and NumFloatRegisters.
func (m *VM) SetSetting(name string, value int) error {
	switch name {
	case SettingNumIntRegisters:
		m.config.NumIntRegisters = value
	case SettingNumFloatRegisters:
		m.config.NumFloatRegisters = value
	default:
		return UnknownSettingError(name)
	}
	return nil
}

// LoadAssembly registers the definitions of an assembly with the
// binder. A function whose registration fails is not retained.
func (m *VM) LoadAssembly(assembly *vm.Assembly) error {
	if m.compiled {
		return ErrAlreadyCompiled
	}
	for _, fn := range assembly.Functions {
		if err := m.binder.Define(fn.Definition); err != nil {
			return err
		}
		m.functions = append(m.functions, fn)
	}
	return nil
}

// Compile verifies every loaded function, runs the pipeline over each,
// resolves all recorded branch targets and call sites, and flips the
// code pages to executable. After Compile returns, entry points are
// callable and no further functions may be loaded.
func (m *VM) Compile() error {
	if m.compiled {
		return ErrAlreadyCompiled
	}

	backend, err := compile.NewAMD64Backend(m.binder, m.config.NumIntRegisters, m.config.NumFloatRegisters)
	if err != nil {
		return err
	}

	placed := make([]placedFunction, 0, len(m.functions))
	for _, fn := range m.functions {
		if err := validate.VerifyFunction(m.binder, fn); err != nil {
			return err
		}
		compiled, err := backend.CompileFunction(fn)
		if err != nil {
			return err
		}
		region, base, err := m.allocator.Allocate(len(compiled.Code))
		if err != nil {
			return err
		}
		copy(region, compiled.Code)
		fn.Definition.SetEntryPoint(base)
		logger.Printf("Placed %s at %#x (%d bytes)", fn.Definition.Signature(), base, len(compiled.Code))
		placed = append(placed, placedFunction{compiled: compiled, region: region})
	}

	for _, p := range placed {
		if err := m.patchFunction(p); err != nil {
			return err
		}
	}

	if err := m.allocator.MakeExecutable(); err != nil {
		return err
	}
	m.compiled = true
	return nil
}

// patchFunction resolves the unresolved branch and call sites of one
// placed function by writing into its still-writable code region.
func (m *VM) patchFunction(p placedFunction) error {
	fn := p.compiled.Function
	entry := fn.Definition.EntryPoint()

	for _, branch := range p.compiled.Branches {
		target := entry + uintptr(fn.InstructionMapping[branch.TargetIndex])
		site := entry + uintptr(branch.PatchSite)
		x64.PutInt32(p.region, branch.PatchSite, int32(int64(target)-int64(site)-4))
	}

	for _, call := range p.compiled.Calls {
		definition, ok := m.binder.Lookup(call.Signature)
		if !ok {
			return fmt.Errorf("exec: unresolved call to %q", call.Signature)
		}
		address := definition.EntryPoint()
		if address == 0 {
			return fmt.Errorf("exec: callee %q has no entry point", call.Signature)
		}
		switch call.Mode {
		case compile.RelativeAddressing:
			site := entry + uintptr(call.PatchSite)
			x64.PutInt32(p.region, call.PatchSite, int32(int64(address)-int64(site)-4))
		case compile.AbsoluteAddressing:
			x64.PutUint64(p.region, call.PatchSite, uint64(address))
		}
	}
	return nil
}

// EntryPoint returns the compiled main() Int function as a host
// callable.
func (m *VM) EntryPoint() (func() int32, error) {
	if !m.compiled {
		return nil, ErrNotCompiled
	}
	definition, err := m.entryDefinition()
	if err != nil {
		return nil, err
	}
	if !nativeExecutionSupported {
		return nil, ErrNativeExecutionUnsupported
	}
	entry := definition.EntryPoint()
	return func() int32 {
		return invokeEntry(entry)
	}, nil
}

// entryDefinition resolves the required main() Int function.
func (m *VM) entryDefinition() (*vm.FunctionDefinition, error) {
	definition, ok := m.binder.Lookup(vm.SignatureKey("main", nil))
	if !ok {
		return nil, ErrNoEntryPoint
	}
	if definition.ReturnType() != vm.TypeInt || !definition.IsManaged() {
		return nil, ErrInvalidEntryPoint
	}
	return definition, nil
}

// Close releases every code page owned by the container.
func (m *VM) Close() error {
	return m.allocator.Close()
}
