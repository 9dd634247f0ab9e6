// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64 is a byte-level emitter for the subset of x86-64
// instructions needed by the code generator. Emission methods append
// to an internal buffer; branch and call methods return the offset of
// their immediate operand so the caller can patch it once the
// destination is known.
package x64

import "encoding/binary"

// Reg is a general-purpose register. The numeric value matches the
// hardware encoding.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// Xmm is an SSE register.
type Xmm uint8

const (
	XMM0 Xmm = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// Cond is a condition code for Jcc instructions. Signed conditions are
// used after CMP, unsigned ones after UCOMISS.
type Cond uint8

const (
	CondB  Cond = 0x2
	CondAE Cond = 0x3
	CondE  Cond = 0x4
	CondNE Cond = 0x5
	CondBE Cond = 0x6
	CondA  Cond = 0x7
	CondL  Cond = 0xC
	CondGE Cond = 0xD
	CondLE Cond = 0xE
	CondG  Cond = 0xF
)

// Assembler accumulates encoded instructions.
type Assembler struct {
	code []byte
}

// Bytes returns the emitted code.
func (a *Assembler) Bytes() []byte { return a.code }

// Len returns the current emission offset.
func (a *Assembler) Len() int { return len(a.code) }

func (a *Assembler) emit(bytes ...byte) {
	a.code = append(a.code, bytes...)
}

func (a *Assembler) emitInt32(v int32) {
	a.code = binary.LittleEndian.AppendUint32(a.code, uint32(v))
}

func (a *Assembler) emitUint64(v uint64) {
	a.code = binary.LittleEndian.AppendUint64(a.code, v)
}

func modRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// rex builds a REX prefix; 0 means no prefix is required.
func rex(w bool, reg, rm byte) byte {
	var b byte
	if w {
		b |= 0x8
	}
	b |= (reg >> 3) << 2
	b |= rm >> 3
	if b == 0 {
		return 0
	}
	return 0x40 | b
}

func (a *Assembler) emitRex(w bool, reg, rm byte) {
	if prefix := rex(w, reg, rm); prefix != 0 {
		a.emit(prefix)
	}
}

// memOperand emits the ModRM byte, optional SIB and 32-bit displacement
// of a [base+disp32] operand.
func (a *Assembler) memOperand(reg byte, base Reg, disp int32) {
	a.emit(modRM(2, reg, byte(base)))
	if base&7 == 4 {
		a.emit(0x24)
	}
	a.emitInt32(disp)
}

// PushReg emits push r64.
func (a *Assembler) PushReg(r Reg) {
	if r >= R8 {
		a.emit(0x41)
	}
	a.emit(0x50 + byte(r&7))
}

// PopReg emits pop r64.
func (a *Assembler) PopReg(r Reg) {
	if r >= R8 {
		a.emit(0x41)
	}
	a.emit(0x58 + byte(r&7))
}

// MovRegImm64 emits mov r64, imm64.
func (a *Assembler) MovRegImm64(r Reg, v uint64) {
	a.emit(0x48|byte(r>>3), 0xB8+byte(r&7))
	a.emitUint64(v)
}

// MovRegImm64Patchable emits mov r64, imm64 with a zero immediate and
// returns the offset of the immediate for later patching.
func (a *Assembler) MovRegImm64Patchable(r Reg) int {
	a.emit(0x48|byte(r>>3), 0xB8+byte(r&7))
	site := a.Len()
	a.emitUint64(0)
	return site
}

// MovRegImm32 emits mov r32, imm32, zero-extending into the full
// register.
func (a *Assembler) MovRegImm32(r Reg, v int32) {
	if r >= R8 {
		a.emit(0x41)
	}
	a.emit(0xB8 + byte(r&7))
	a.emitInt32(v)
}

// MovRegReg emits mov r64, r64.
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emit(rex(true, byte(src), byte(dst)), 0x89, modRM(3, byte(src), byte(dst)))
}

// MovRegMem emits mov r64, [base+disp32].
func (a *Assembler) MovRegMem(dst, base Reg, disp int32) {
	a.emit(rex(true, byte(dst), byte(base)), 0x8B)
	a.memOperand(byte(dst), base, disp)
}

// MovMemReg emits mov [base+disp32], r64.
func (a *Assembler) MovMemReg(base Reg, disp int32, src Reg) {
	a.emit(rex(true, byte(src), byte(base)), 0x89)
	a.memOperand(byte(src), base, disp)
}

// Add32 emits add r32, r32.
func (a *Assembler) Add32(dst, src Reg) {
	a.emitRex(false, byte(src), byte(dst))
	a.emit(0x01, modRM(3, byte(src), byte(dst)))
}

// Sub32 emits sub r32, r32.
func (a *Assembler) Sub32(dst, src Reg) {
	a.emitRex(false, byte(src), byte(dst))
	a.emit(0x29, modRM(3, byte(src), byte(dst)))
}

// IMul32 emits imul r32, r32.
func (a *Assembler) IMul32(dst, src Reg) {
	a.emitRex(false, byte(dst), byte(src))
	a.emit(0x0F, 0xAF, modRM(3, byte(dst), byte(src)))
}

// Cdq sign-extends EAX into EDX:EAX.
func (a *Assembler) Cdq() {
	a.emit(0x99)
}

// IDiv32 emits idiv r32, dividing EDX:EAX.
func (a *Assembler) IDiv32(r Reg) {
	a.emitRex(false, 0, byte(r))
	a.emit(0xF7, modRM(3, 7, byte(r)))
}

// Cmp32 emits cmp r32, r32, computing left-right.
func (a *Assembler) Cmp32(left, right Reg) {
	a.emitRex(false, byte(right), byte(left))
	a.emit(0x39, modRM(3, byte(right), byte(left)))
}

// SubRspImm emits sub rsp, imm32.
func (a *Assembler) SubRspImm(v int32) {
	a.emit(0x48, 0x81, 0xEC)
	a.emitInt32(v)
}

// AddRspImm emits add rsp, imm32.
func (a *Assembler) AddRspImm(v int32) {
	a.emit(0x48, 0x81, 0xC4)
	a.emitInt32(v)
}

// CallRel32 emits call rel32 with a zero displacement and returns the
// offset of the displacement.
func (a *Assembler) CallRel32() int {
	a.emit(0xE8)
	site := a.Len()
	a.emitInt32(0)
	return site
}

// CallReg emits call r64.
func (a *Assembler) CallReg(r Reg) {
	if r >= R8 {
		a.emit(0x41)
	}
	a.emit(0xFF, modRM(3, 2, byte(r)))
}

// Ret emits ret.
func (a *Assembler) Ret() {
	a.emit(0xC3)
}

// JmpRel32 emits jmp rel32 with a zero displacement and returns the
// offset of the displacement.
func (a *Assembler) JmpRel32() int {
	a.emit(0xE9)
	site := a.Len()
	a.emitInt32(0)
	return site
}

// Jcc emits a near conditional jump with a zero displacement and
// returns the offset of the displacement.
func (a *Assembler) Jcc(cond Cond) int {
	a.emit(0x0F, 0x80+byte(cond))
	site := a.Len()
	a.emitInt32(0)
	return site
}

// MovssXmmMem emits movss xmm, [base+disp32].
func (a *Assembler) MovssXmmMem(dst Xmm, base Reg, disp int32) {
	a.emit(0xF3)
	a.emitRex(false, byte(dst), byte(base))
	a.emit(0x0F, 0x10)
	a.memOperand(byte(dst), base, disp)
}

// MovssMemXmm emits movss [base+disp32], xmm.
func (a *Assembler) MovssMemXmm(base Reg, disp int32, src Xmm) {
	a.emit(0xF3)
	a.emitRex(false, byte(src), byte(base))
	a.emit(0x0F, 0x11)
	a.memOperand(byte(src), base, disp)
}

// MovssXmmXmm emits movss xmm, xmm.
func (a *Assembler) MovssXmmXmm(dst, src Xmm) {
	a.emit(0xF3)
	a.emitRex(false, byte(dst), byte(src))
	a.emit(0x0F, 0x10, modRM(3, byte(dst), byte(src)))
}

// MovupsXmmMem emits movups xmm, [base+disp32].
func (a *Assembler) MovupsXmmMem(dst Xmm, base Reg, disp int32) {
	a.emitRex(false, byte(dst), byte(base))
	a.emit(0x0F, 0x10)
	a.memOperand(byte(dst), base, disp)
}

// MovupsMemXmm emits movups [base+disp32], xmm.
func (a *Assembler) MovupsMemXmm(base Reg, disp int32, src Xmm) {
	a.emitRex(false, byte(src), byte(base))
	a.emit(0x0F, 0x11)
	a.memOperand(byte(src), base, disp)
}

// sseOp emits an xmm, xmm arithmetic instruction with an F3 prefix.
func (a *Assembler) sseOp(opcode byte, dst, src Xmm) {
	a.emit(0xF3)
	a.emitRex(false, byte(dst), byte(src))
	a.emit(0x0F, opcode, modRM(3, byte(dst), byte(src)))
}

// Addss emits addss xmm, xmm.
func (a *Assembler) Addss(dst, src Xmm) { a.sseOp(0x58, dst, src) }

// Subss emits subss xmm, xmm.
func (a *Assembler) Subss(dst, src Xmm) { a.sseOp(0x5C, dst, src) }

// Mulss emits mulss xmm, xmm.
func (a *Assembler) Mulss(dst, src Xmm) { a.sseOp(0x59, dst, src) }

// Divss emits divss xmm, xmm.
func (a *Assembler) Divss(dst, src Xmm) { a.sseOp(0x5E, dst, src) }

// Ucomiss emits ucomiss xmm, xmm, comparing left against right.
func (a *Assembler) Ucomiss(left, right Xmm) {
	a.emitRex(false, byte(left), byte(right))
	a.emit(0x0F, 0x2E, modRM(3, byte(left), byte(right)))
}

// MovdXmmReg emits movd xmm, r32.
func (a *Assembler) MovdXmmReg(dst Xmm, src Reg) {
	a.emit(0x66)
	a.emitRex(false, byte(dst), byte(src))
	a.emit(0x0F, 0x6E, modRM(3, byte(dst), byte(src)))
}

// MovdRegXmm emits movd r32, xmm.
func (a *Assembler) MovdRegXmm(dst Reg, src Xmm) {
	a.emit(0x66)
	a.emitRex(false, byte(src), byte(dst))
	a.emit(0x0F, 0x7E, modRM(3, byte(src), byte(dst)))
}

// PutInt32 patches a 32-bit immediate at the given offset.
func PutInt32(code []byte, offset int, v int32) {
	binary.LittleEndian.PutUint32(code[offset:], uint32(v))
}

// PutUint64 patches a 64-bit immediate at the given offset.
func PutUint64(code []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(code[offset:], v)
}
