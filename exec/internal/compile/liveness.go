// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/slices"
)

// LiveInterval is the convex hull of the positions at which a virtual
// register's value is alive. Start and End are global instruction
// indices into the source function.
type LiveInterval struct {
	Register VirtualRegister
	Start    int
	End      int
}

// Covers reports whether the interval contains the given position.
func (i LiveInterval) Covers(position int) bool {
	return i.Start <= position && position <= i.End
}

type useSite struct {
	block  *BasicBlock
	offset int
}

// livenessAnalysis walks backward from every use site of a register,
// marking positions alive until a defining instruction (that does not
// also use the register) terminates the branch, recursing into
// predecessor blocks at block boundaries.
type livenessAnalysis struct {
	cfg     *ControlFlowGraph
	lowered *LoweredFunction
	preds   map[*BasicBlock][]*BasicBlock

	intervals map[VirtualRegister]*LiveInterval
}

// ComputeLiveness produces the live interval of every virtual register
// that has at least one use site. Write-only registers receive no
// interval and need no allocation. The result is ordered by interval
// start.
func ComputeLiveness(cfg *ControlFlowGraph, lowered *LoweredFunction) []LiveInterval {
	a := &livenessAnalysis{
		cfg:       cfg,
		lowered:   lowered,
		preds:     cfg.Predecessors(),
		intervals: make(map[VirtualRegister]*LiveInterval),
	}

	uses := make(map[VirtualRegister][]useSite)
	var order []VirtualRegister
	for _, block := range cfg.Blocks() {
		for offset := range block.Instructions {
			vi := &lowered.Instructions[block.StartOffset+offset]
			for _, use := range vi.Uses {
				if _, seen := uses[use]; !seen {
					order = append(order, use)
				}
				uses[use] = append(uses[use], useSite{block: block, offset: offset})
			}
		}
	}

	for _, register := range order {
		for _, site := range uses[register] {
			visited := mapset.NewThreadUnsafeSet[int]()
			a.walkBack(register, site.block, site.offset, visited)
		}
	}

	intervals := make([]LiveInterval, 0, len(a.intervals))
	for _, interval := range a.intervals {
		intervals = append(intervals, *interval)
	}
	slices.SortFunc(intervals, func(a, b LiveInterval) bool {
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Register.Number != b.Register.Number {
			return a.Register.Number < b.Register.Number
		}
		return a.Register.Kind < b.Register.Kind
	})
	return intervals
}

func (a *livenessAnalysis) markAlive(register VirtualRegister, position int) {
	interval, ok := a.intervals[register]
	if !ok {
		a.intervals[register] = &LiveInterval{Register: register, Start: position, End: position}
		return
	}
	if position < interval.Start {
		interval.Start = position
	}
	if position > interval.End {
		interval.End = position
	}
}

func (a *livenessAnalysis) walkBack(register VirtualRegister, block *BasicBlock, start int, visited mapset.Set[int]) {
	for offset := start; offset >= 0; offset-- {
		position := block.StartOffset + offset
		a.markAlive(register, position)

		vi := &a.lowered.Instructions[position]
		if vi.Defines(register) && !vi.UsesRegister(register) {
			return
		}
	}

	for _, pred := range a.preds[block] {
		if visited.Contains(pred.StartOffset) {
			continue
		}
		visited.Add(pred.StartOffset)
		a.walkBack(register, pred, len(pred.Instructions)-1, visited)
	}
}
