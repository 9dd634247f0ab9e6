// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"fmt"
	"math"

	"github.com/svenslaggare/xonevm/exec/internal/x64"
	"github.com/svenslaggare/xonevm/vm"
)

// Details of the AMD64 backend (Win64 calling convention):
//  - Integer allocation pool: RBX, R10, R11, R12, R13, R14, R15
//  - Float allocation pool:   XMM6 - XMM12
//  - Scratch registers:       RAX, RCX, RDX, XMM0, XMM1
// Arguments arrive in RCX, RDX, R8, R9 / XMM0-XMM3 by position and are
// homed to the shadow space in the prologue, so every argument can be
// read from [rbp+16+8*i]. R10 and R11 are the only pool members that
// are volatile across calls; they are saved around every emitted call.
// Most emission helpers make few attempts to optimize in order to keep
// things simple: operands are loaded into scratch registers, operated
// on, and stored back to the destination's location.

var intPool = [...]x64.Reg{x64.RBX, x64.R10, x64.R11, x64.R12, x64.R13, x64.R14, x64.R15}

var floatPool = [...]x64.Xmm{x64.XMM6, x64.XMM7, x64.XMM8, x64.XMM9, x64.XMM10, x64.XMM11, x64.XMM12}

var argRegs = [...]x64.Reg{x64.RCX, x64.RDX, x64.R8, x64.R9}

// MaxIntRegisters is the size of the integer allocation pool.
const MaxIntRegisters = len(intPool)

// MaxFloatRegisters is the size of the float allocation pool.
const MaxFloatRegisters = len(floatPool)

// Frame layout, rbp-relative:
//   [rbp+16+8*i]  argument i (shadow space for i < 4)
//   [rbp-8 ..]    saved rbx, r12-r15 (pushed)
//   [rbp-56-16j]  saved xmm6+j
//   [rbp-160-8k]  frame slot k (spills, or the whole operand stack and
//                 the locals when the function is not optimized)
const (
	savedGPRBytes = 40
	xmmSaveBytes  = 16 * len(floatPool)
	slotBase      = savedGPRBytes + xmmSaveBytes
)

func argDisp(i int) int32     { return int32(16 + 8*i) }
func xmmSaveDisp(j int) int32 { return -int32(savedGPRBytes + 16*(j+1)) }
func slotDisp(slot int) int32 { return -int32(slotBase + 8*(slot+1)) }

// AMD64Backend drives the per-function pipeline and emits machine code
// for x86-64 under the Win64 calling convention.
type AMD64Backend struct {
	binder            *vm.Binder
	numIntRegisters   int
	numFloatRegisters int
}

// NewAMD64Backend creates a backend allocating from pools of the given
// sizes. Pool sizes must not exceed MaxIntRegisters/MaxFloatRegisters.
func NewAMD64Backend(binder *vm.Binder, numIntRegisters, numFloatRegisters int) (*AMD64Backend, error) {
	if numIntRegisters < 0 || numIntRegisters > MaxIntRegisters {
		return nil, fmt.Errorf("compile: invalid number of integer registers: %d", numIntRegisters)
	}
	if numFloatRegisters < 0 || numFloatRegisters > MaxFloatRegisters {
		return nil, fmt.Errorf("compile: invalid number of float registers: %d", numFloatRegisters)
	}
	return &AMD64Backend{
		binder:            binder,
		numIntRegisters:   numIntRegisters,
		numFloatRegisters: numFloatRegisters,
	}, nil
}

// CompileFunction runs the full pipeline for one verified function:
// lowering, block partitioning, graph construction, liveness, register
// allocation (when the function is optimized) and emission. It fills
// the function's GeneratedCode and InstructionMapping and returns the
// unresolved branch and call tables.
func (b *AMD64Backend) CompileFunction(fn *vm.Function) (*CompiledFunction, error) {
	lowered, err := LowerFunction(b.binder, fn)
	if err != nil {
		return nil, err
	}

	var allocation *FunctionAllocation
	if fn.Optimize {
		cfg := NewControlFlowGraph(SplitBasicBlocks(fn))
		intervals := ComputeLiveness(cfg, lowered)
		allocation = AllocateRegisters(intervals, b.numIntRegisters, b.numFloatRegisters)
	}

	e := &emitter{
		backend:    b,
		fn:         fn,
		lowered:    lowered,
		allocation: allocation,
		asm:        &x64.Assembler{},
	}
	return e.emitFunction()
}

// location describes where a virtual register lives at run time.
type location struct {
	inRegister bool
	gpr        x64.Reg
	xmm        x64.Xmm
	slot       int
}

type emitter struct {
	backend    *AMD64Backend
	fn         *vm.Function
	lowered    *LoweredFunction
	allocation *FunctionAllocation
	asm        *x64.Assembler

	numSlots  int
	intSpills int
	frameSize int32

	compiled *CompiledFunction
}

func (e *emitter) emitFunction() (*CompiledFunction, error) {
	e.compiled = &CompiledFunction{Function: e.fn}

	if e.allocation != nil {
		e.intSpills = e.allocation.Int.NumSpilled()
		e.numSlots = e.intSpills + e.allocation.Float.NumSpilled()
	} else {
		e.numSlots = e.lowered.StackRegisters + len(e.fn.Locals)
	}
	e.frameSize = int32(xmmSaveBytes + 8*e.numSlots)
	for e.frameSize%16 != 8 {
		e.frameSize += 8
	}

	e.emitPrologue()

	e.fn.InstructionMapping = make([]int, len(e.lowered.Instructions))
	for index := range e.lowered.Instructions {
		e.fn.InstructionMapping[index] = e.asm.Len()
		if err := e.emitInstruction(&e.lowered.Instructions[index]); err != nil {
			return nil, err
		}
	}

	e.compiled.Code = e.asm.Bytes()
	e.fn.GeneratedCode = e.compiled.Code
	return e.compiled, nil
}

// locate resolves a virtual register to its run-time location. The
// second result is false for defs that were never used and therefore
// have no interval; stores to such registers are dropped.
func (e *emitter) locate(r VirtualRegister) (location, bool) {
	if e.allocation == nil {
		return location{slot: r.Number}, true
	}
	scan := e.allocation.ByKind(r.Kind)
	if hw, ok := scan.HardwareRegister(r); ok {
		if r.Kind == FloatRegister {
			return location{inRegister: true, xmm: floatPool[hw]}, true
		}
		return location{inRegister: true, gpr: intPool[hw]}, true
	}
	if slot, ok := scan.SpillSlot(r); ok {
		if r.Kind == FloatRegister {
			slot += e.intSpills
		}
		return location{slot: slot}, true
	}
	return location{}, false
}

func (e *emitter) loadInt(dst x64.Reg, r VirtualRegister) {
	loc, ok := e.locate(r)
	if !ok {
		return
	}
	if loc.inRegister {
		e.asm.MovRegReg(dst, loc.gpr)
	} else {
		e.asm.MovRegMem(dst, x64.RBP, slotDisp(loc.slot))
	}
}

func (e *emitter) storeInt(r VirtualRegister, src x64.Reg) {
	loc, ok := e.locate(r)
	if !ok {
		return
	}
	if loc.inRegister {
		e.asm.MovRegReg(loc.gpr, src)
	} else {
		e.asm.MovMemReg(x64.RBP, slotDisp(loc.slot), src)
	}
}

func (e *emitter) loadFloat(dst x64.Xmm, r VirtualRegister) {
	loc, ok := e.locate(r)
	if !ok {
		return
	}
	if loc.inRegister {
		e.asm.MovssXmmXmm(dst, loc.xmm)
	} else {
		e.asm.MovssXmmMem(dst, x64.RBP, slotDisp(loc.slot))
	}
}

func (e *emitter) storeFloat(r VirtualRegister, src x64.Xmm) {
	loc, ok := e.locate(r)
	if !ok {
		return
	}
	if loc.inRegister {
		e.asm.MovssXmmXmm(loc.xmm, src)
	} else {
		e.asm.MovssMemXmm(x64.RBP, slotDisp(loc.slot), src)
	}
}

func (e *emitter) emitPrologue() {
	asm := e.asm
	asm.PushReg(x64.RBP)
	asm.MovRegReg(x64.RBP, x64.RSP)
	asm.PushReg(x64.RBX)
	asm.PushReg(x64.R12)
	asm.PushReg(x64.R13)
	asm.PushReg(x64.R14)
	asm.PushReg(x64.R15)
	asm.SubRspImm(e.frameSize)
	for j := range floatPool {
		asm.MovupsMemXmm(x64.RBP, xmmSaveDisp(j), floatPool[j])
	}

	// Home the register arguments so every argument can be loaded from
	// its shadow-space slot.
	for i, param := range e.fn.Definition.Parameters() {
		if i >= len(argRegs) {
			break
		}
		if param == vm.TypeFloat {
			asm.MovssMemXmm(x64.RBP, argDisp(i), x64.Xmm(i))
		} else {
			asm.MovMemReg(x64.RBP, argDisp(i), argRegs[i])
		}
	}
}

func (e *emitter) emitEpilogue() {
	asm := e.asm
	for j := range floatPool {
		asm.MovupsXmmMem(floatPool[j], x64.RBP, xmmSaveDisp(j))
	}
	asm.AddRspImm(e.frameSize)
	asm.PopReg(x64.R15)
	asm.PopReg(x64.R14)
	asm.PopReg(x64.R13)
	asm.PopReg(x64.R12)
	asm.PopReg(x64.RBX)
	asm.PopReg(x64.RBP)
	asm.Ret()
}

func (e *emitter) emitInstruction(vi *VirtualInstruction) error {
	asm := e.asm
	instruction := vi.Instruction

	switch op := instruction.Op; {
	case op == vm.OpPop:
		// The value is dead; nothing to emit.

	case op == vm.OpLoadInt:
		loc, ok := e.locate(*vi.Def)
		if ok && loc.inRegister {
			asm.MovRegImm32(loc.gpr, int32(instruction.IntValue))
		} else if ok {
			asm.MovRegImm32(x64.RAX, int32(instruction.IntValue))
			asm.MovMemReg(x64.RBP, slotDisp(loc.slot), x64.RAX)
		}

	case op == vm.OpLoadFloat:
		asm.MovRegImm32(x64.RAX, int32(math.Float32bits(instruction.FloatValue)))
		loc, ok := e.locate(*vi.Def)
		if ok && loc.inRegister {
			asm.MovdXmmReg(loc.xmm, x64.RAX)
		} else if ok {
			asm.MovMemReg(x64.RBP, slotDisp(loc.slot), x64.RAX)
		}

	case op.IsIntArithmetic():
		// Uses are in pop order: uses[0] is the right operand.
		e.loadInt(x64.RAX, vi.Uses[1])
		e.loadInt(x64.RCX, vi.Uses[0])
		switch op {
		case vm.OpAddInt:
			asm.Add32(x64.RAX, x64.RCX)
		case vm.OpSubInt:
			asm.Sub32(x64.RAX, x64.RCX)
		case vm.OpMulInt:
			asm.IMul32(x64.RAX, x64.RCX)
		case vm.OpDivInt:
			asm.Cdq()
			asm.IDiv32(x64.RCX)
		}
		e.storeInt(*vi.Def, x64.RAX)

	case op.IsFloatArithmetic():
		e.loadFloat(x64.XMM0, vi.Uses[1])
		e.loadFloat(x64.XMM1, vi.Uses[0])
		switch op {
		case vm.OpAddFloat:
			asm.Addss(x64.XMM0, x64.XMM1)
		case vm.OpSubFloat:
			asm.Subss(x64.XMM0, x64.XMM1)
		case vm.OpMulFloat:
			asm.Mulss(x64.XMM0, x64.XMM1)
		case vm.OpDivFloat:
			asm.Divss(x64.XMM0, x64.XMM1)
		}
		e.storeFloat(*vi.Def, x64.XMM0)

	case op == vm.OpCall:
		return e.emitCall(vi)

	case op == vm.OpRet:
		if returnType := e.fn.Definition.ReturnType(); returnType != vm.TypeVoid {
			if returnType == vm.TypeFloat {
				e.loadFloat(x64.XMM0, vi.Uses[0])
			} else {
				e.loadInt(x64.RAX, vi.Uses[0])
			}
		}
		e.emitEpilogue()

	case op == vm.OpLoadArgument:
		if kindOf(e.fn.Definition.Parameters()[instruction.IntValue]) == FloatRegister {
			asm.MovssXmmMem(x64.XMM0, x64.RBP, argDisp(instruction.IntValue))
			e.storeFloat(*vi.Def, x64.XMM0)
		} else {
			asm.MovRegMem(x64.RAX, x64.RBP, argDisp(instruction.IntValue))
			e.storeInt(*vi.Def, x64.RAX)
		}

	case op == vm.OpLoadLocal:
		if vi.Uses[0].Kind == FloatRegister {
			e.loadFloat(x64.XMM0, vi.Uses[0])
			e.storeFloat(*vi.Def, x64.XMM0)
		} else {
			e.loadInt(x64.RAX, vi.Uses[0])
			e.storeInt(*vi.Def, x64.RAX)
		}

	case op == vm.OpStoreLocal:
		if vi.Def.Kind == FloatRegister {
			e.loadFloat(x64.XMM0, vi.Uses[0])
			e.storeFloat(*vi.Def, x64.XMM0)
		} else {
			e.loadInt(x64.RAX, vi.Uses[0])
			e.storeInt(*vi.Def, x64.RAX)
		}

	case op == vm.OpBranch:
		site := asm.JmpRel32()
		e.recordBranch(site, instruction.IntValue)

	case op.IsConditionalBranch():
		site, err := e.emitConditionalBranch(vi)
		if err != nil {
			return err
		}
		e.recordBranch(site, instruction.IntValue)

	default:
		return fmt.Errorf("compile: amd64 backend cannot handle op %s", op)
	}

	return nil
}

var intConds = map[vm.OpCode]x64.Cond{
	vm.OpBranchEqual:          x64.CondE,
	vm.OpBranchNotEqual:       x64.CondNE,
	vm.OpBranchGreaterThan:    x64.CondG,
	vm.OpBranchGreaterOrEqual: x64.CondGE,
	vm.OpBranchLessThan:       x64.CondL,
	vm.OpBranchLessOrEqual:    x64.CondLE,
}

// UCOMISS sets the unsigned-comparison flags.
var floatConds = map[vm.OpCode]x64.Cond{
	vm.OpBranchEqual:          x64.CondE,
	vm.OpBranchNotEqual:       x64.CondNE,
	vm.OpBranchGreaterThan:    x64.CondA,
	vm.OpBranchGreaterOrEqual: x64.CondAE,
	vm.OpBranchLessThan:       x64.CondB,
	vm.OpBranchLessOrEqual:    x64.CondBE,
}

func (e *emitter) emitConditionalBranch(vi *VirtualInstruction) (int, error) {
	asm := e.asm
	if vi.Uses[0].Kind == FloatRegister {
		e.loadFloat(x64.XMM0, vi.Uses[1])
		e.loadFloat(x64.XMM1, vi.Uses[0])
		asm.Ucomiss(x64.XMM0, x64.XMM1)
		return asm.Jcc(floatConds[vi.Instruction.Op]), nil
	}
	e.loadInt(x64.RAX, vi.Uses[1])
	e.loadInt(x64.RCX, vi.Uses[0])
	asm.Cmp32(x64.RAX, x64.RCX)
	return asm.Jcc(intConds[vi.Instruction.Op]), nil
}

func (e *emitter) recordBranch(site, target int) {
	e.compiled.Branches = append(e.compiled.Branches, UnresolvedBranchTarget{
		PatchSite:   site,
		TargetIndex: target,
	})
}

func (e *emitter) emitCall(vi *VirtualInstruction) error {
	asm := e.asm
	instruction := vi.Instruction
	key := vm.SignatureKey(instruction.CallName, instruction.CallParams)
	definition, ok := e.backend.binder.Lookup(key)
	if !ok {
		return fmt.Errorf("compile: call to undefined function %q", key)
	}
	params := definition.Parameters()

	// R10 and R11 are the only volatile registers in the allocation
	// pool; two pushes keep the stack 16-byte aligned.
	asm.PushReg(x64.R10)
	asm.PushReg(x64.R11)

	stackArgs := 0
	if len(params) > len(argRegs) {
		stackArgs = len(params) - len(argRegs)
	}
	reserved := int32(32+8*stackArgs+15) &^ 15
	asm.SubRspImm(reserved)

	// uses are in pop order, so argument j lives at uses[len-1-j].
	// Stack arguments go first; the scratch registers they use (RAX,
	// XMM0) do not hold an argument yet.
	for j := len(params) - 1; j >= len(argRegs); j-- {
		source := vi.Uses[len(params)-1-j]
		disp := int32(32 + 8*(j-len(argRegs)))
		if source.Kind == FloatRegister {
			e.loadFloat(x64.XMM0, source)
			asm.MovssMemXmm(x64.RSP, disp, x64.XMM0)
		} else {
			e.loadInt(x64.RAX, source)
			asm.MovMemReg(x64.RSP, disp, x64.RAX)
		}
	}
	for j := 0; j < len(params) && j < len(argRegs); j++ {
		source := vi.Uses[len(params)-1-j]
		if source.Kind == FloatRegister {
			e.loadFloat(x64.Xmm(j), source)
		} else {
			e.loadInt(argRegs[j], source)
		}
	}

	if definition.IsManaged() {
		site := asm.CallRel32()
		e.compiled.Calls = append(e.compiled.Calls, UnresolvedFunctionCall{
			PatchSite: site,
			Signature: key,
			Mode:      RelativeAddressing,
		})
	} else {
		site := asm.MovRegImm64Patchable(x64.RAX)
		e.compiled.Calls = append(e.compiled.Calls, UnresolvedFunctionCall{
			PatchSite: site,
			Signature: key,
			Mode:      AbsoluteAddressing,
		})
		asm.CallReg(x64.RAX)
	}

	asm.AddRspImm(reserved)
	asm.PopReg(x64.R11)
	asm.PopReg(x64.R10)

	if vi.Def != nil {
		if vi.Def.Kind == FloatRegister {
			e.storeFloat(*vi.Def, x64.XMM0)
		} else {
			e.storeInt(*vi.Def, x64.RAX)
		}
	}
	return nil
}
