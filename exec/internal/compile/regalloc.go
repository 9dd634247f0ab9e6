// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"golang.org/x/exp/slices"
)

// RegisterAllocation maps virtual registers onto a fixed pool of
// hardware register numbers; registers that did not fit hold a stack
// slot instead. Slots are assigned in spill order starting at 0.
type RegisterAllocation struct {
	registers  map[VirtualRegister]int
	spillSlots map[VirtualRegister]int
}

func newRegisterAllocation() *RegisterAllocation {
	return &RegisterAllocation{
		registers:  make(map[VirtualRegister]int),
		spillSlots: make(map[VirtualRegister]int),
	}
}

// HardwareRegister returns the hardware register number assigned to the
// given virtual register.
func (a *RegisterAllocation) HardwareRegister(r VirtualRegister) (int, bool) {
	n, ok := a.registers[r]
	return n, ok
}

// SpillSlot returns the stack slot of a spilled virtual register.
func (a *RegisterAllocation) SpillSlot(r VirtualRegister) (int, bool) {
	slot, ok := a.spillSlots[r]
	return slot, ok
}

// NumAllocated returns how many virtual registers hold a hardware
// register.
func (a *RegisterAllocation) NumAllocated() int { return len(a.registers) }

// NumSpilled returns how many virtual registers were spilled.
func (a *RegisterAllocation) NumSpilled() int { return len(a.spillSlots) }

func (a *RegisterAllocation) spill(r VirtualRegister) {
	a.spillSlots[r] = len(a.spillSlots)
}

// LinearScan maps the given live intervals onto numRegisters hardware
// registers using the linear-scan algorithm. Intervals that overflow
// the pool are spilled: when the pool is exhausted, the active interval
// ending furthest away is evicted if it outlives the incoming one,
// otherwise the incoming interval is spilled directly.
func LinearScan(intervals []LiveInterval, numRegisters int) *RegisterAllocation {
	allocation := newRegisterAllocation()

	sorted := slices.Clone(intervals)
	slices.SortStableFunc(sorted, func(a, b LiveInterval) bool {
		return a.Start < b.Start
	})

	free := make([]int, 0, numRegisters)
	for n := numRegisters - 1; n >= 0; n-- {
		free = append(free, n)
	}

	// Intervals currently holding a register, ordered by ascending end.
	var active []LiveInterval

	for _, current := range sorted {
		// Expire intervals that ended before the current one starts.
		expired := 0
		for _, a := range active {
			if a.End >= current.Start {
				break
			}
			free = append(free, allocation.registers[a.Register])
			expired++
		}
		active = slices.Delete(active, 0, expired)

		if len(active) == numRegisters {
			if numRegisters == 0 {
				allocation.spill(current.Register)
				continue
			}
			// Spill the interval that ends furthest away.
			last := active[len(active)-1]
			if last.End > current.End {
				allocation.registers[current.Register] = allocation.registers[last.Register]
				delete(allocation.registers, last.Register)
				allocation.spill(last.Register)
				active = insertByEnd(active[:len(active)-1], current)
			} else {
				allocation.spill(current.Register)
			}
			continue
		}

		register := free[len(free)-1]
		free = free[:len(free)-1]
		allocation.registers[current.Register] = register
		active = insertByEnd(active, current)
	}

	return allocation
}

func insertByEnd(active []LiveInterval, interval LiveInterval) []LiveInterval {
	at := len(active)
	for i, a := range active {
		if interval.End < a.End {
			at = i
			break
		}
	}
	active = append(active, LiveInterval{})
	copy(active[at+1:], active[at:])
	active[at] = interval
	return active
}

// FunctionAllocation holds the independent integer and float linear
// scans of one function.
type FunctionAllocation struct {
	Int   *RegisterAllocation
	Float *RegisterAllocation
}

// AllocateRegisters runs one linear scan per register kind.
func AllocateRegisters(intervals []LiveInterval, numIntRegisters, numFloatRegisters int) *FunctionAllocation {
	var ints, floats []LiveInterval
	for _, interval := range intervals {
		if interval.Register.Kind == FloatRegister {
			floats = append(floats, interval)
		} else {
			ints = append(ints, interval)
		}
	}
	return &FunctionAllocation{
		Int:   LinearScan(ints, numIntRegisters),
		Float: LinearScan(floats, numFloatRegisters),
	}
}

// ByKind returns the scan for the given register kind.
func (a *FunctionAllocation) ByKind(kind RegisterKind) *RegisterAllocation {
	if kind == FloatRegister {
		return a.Float
	}
	return a.Int
}
