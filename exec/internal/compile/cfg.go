// Copyright 2025 The xonevm Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/svenslaggare/xonevm/vm"
)

// Edge is a directed control-flow edge between two basic blocks. Edges
// compare equal iff they connect the same pair of blocks.
type Edge struct {
	From *BasicBlock
	To   *BasicBlock
}

type edgeKey struct {
	from, to int
}

// ControlFlowGraph is the directed graph of possible control transfers
// between the basic blocks of one function. The neighbor map never
// holds parallel edges.
type ControlFlowGraph struct {
	blocks    []*BasicBlock
	byOffset  map[int]*BasicBlock
	neighbors map[*BasicBlock][]*BasicBlock
	edgeSet   mapset.Set[edgeKey]
}

// NewControlFlowGraph builds the control-flow graph over the given
// blocks. The last instruction of each block decides its outgoing
// edges: an unconditional branch yields its target, a conditional
// branch its target plus the fall-through block, Ret nothing, and any
// other instruction the fall-through block.
func NewControlFlowGraph(blocks []*BasicBlock) *ControlFlowGraph {
	g := &ControlFlowGraph{
		blocks:    blocks,
		byOffset:  make(map[int]*BasicBlock, len(blocks)),
		neighbors: make(map[*BasicBlock][]*BasicBlock, len(blocks)),
		edgeSet:   mapset.NewThreadUnsafeSet[edgeKey](),
	}
	for _, block := range blocks {
		g.byOffset[block.StartOffset] = block
	}

	for _, block := range blocks {
		last := block.Instructions[len(block.Instructions)-1]
		switch {
		case last.Op.IsConditionalBranch():
			g.addEdge(block, g.byOffset[last.IntValue])
			g.addEdge(block, g.byOffset[block.EndOffset()])
		case last.Op.IsBranch():
			g.addEdge(block, g.byOffset[last.IntValue])
		case last.Op == vm.OpRet:
			// No outgoing edges.
		default:
			g.addEdge(block, g.byOffset[block.EndOffset()])
		}
	}
	return g
}

func (g *ControlFlowGraph) addEdge(from, to *BasicBlock) {
	if from == nil || to == nil {
		return
	}
	key := edgeKey{from: from.StartOffset, to: to.StartOffset}
	if g.edgeSet.Contains(key) {
		return
	}
	g.edgeSet.Add(key)
	g.neighbors[from] = append(g.neighbors[from], to)
}

// Blocks returns the blocks of the graph in leader order.
func (g *ControlFlowGraph) Blocks() []*BasicBlock { return g.blocks }

// BlockAt returns the block whose first instruction has the given
// index in the source function.
func (g *ControlFlowGraph) BlockAt(offset int) (*BasicBlock, bool) {
	block, ok := g.byOffset[offset]
	return block, ok
}

// Neighbors returns the successor blocks of the given block.
func (g *ControlFlowGraph) Neighbors(block *BasicBlock) []*BasicBlock {
	return g.neighbors[block]
}

// Edges returns every edge of the graph. Order is unspecified.
func (g *ControlFlowGraph) Edges() []Edge {
	var edges []Edge
	for _, from := range g.blocks {
		for _, to := range g.neighbors[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Predecessors returns the reversed neighbor map, used by the backward
// liveness walk.
func (g *ControlFlowGraph) Predecessors() map[*BasicBlock][]*BasicBlock {
	preds := make(map[*BasicBlock][]*BasicBlock, len(g.blocks))
	for _, from := range g.blocks {
		for _, to := range g.neighbors[from] {
			preds[to] = append(preds[to], from)
		}
	}
	return preds
}
