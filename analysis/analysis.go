// Package analysis builds the control-flow graph for a decoded CHIP-8
// instruction stream: basic blocks, functions, reachability, the label
// set, and computed-jump bases (§4.C).
//
// Grounded on bbcdisasm's disassemble.go two-pass structure
// (findBranchTargets, then the main decode pass): target collection here
// plays the role of findBranchTargets, generalized from "a set of branch
// labels" to a full block/function partition.
package analysis

import "chip8rc/chip8"

// Block is a maximal straight-line instruction sequence (§3).
type Block struct {
	Start uint16
	End   uint16 // one past the last byte

	Instrs []int // indices into Result.Instructions

	Succ []uint16
	Pred []uint16

	Labels map[uint16]bool

	IsFunctionEntry bool
	IsReachable     bool
}

// Function is a named entry point and the blocks reachable from it
// without crossing another call target (§3).
type Function struct {
	Name   string
	Entry  uint16
	Blocks map[uint16]bool // block start addresses
}

// Stats carries the statistics referenced by AnalysisResult (§3).
type Stats struct {
	TotalInstructions      int
	UnreachableBlocks      int
	UnreachableInstructions int
	UnknownInstructions    int
}

// Result is the aggregate analysis output (§3).
type Result struct {
	Instructions []chip8.Instruction
	ByAddress    map[uint16]int // address -> index into Instructions

	Blocks    map[uint16]*Block
	Functions map[uint16]*Function

	Labels      map[uint16]bool
	CallTargets map[uint16]bool
	JumpBases   map[uint16]bool

	Stats Stats
}

// Analyze consumes a decoded instruction vector and an entry point
// (default 0x200) and produces a Result. There is no failure mode: every
// ROM yields a Result; unreachable or unclassifiable addresses are
// tolerated (§4.C).
func Analyze(instrs []chip8.Instruction, entry uint16) *Result {
	r := &Result{
		Instructions: instrs,
		ByAddress:    make(map[uint16]int, len(instrs)),
		Blocks:       make(map[uint16]*Block),
		Functions:    make(map[uint16]*Function),
		Labels:       make(map[uint16]bool),
		CallTargets:  make(map[uint16]bool),
		JumpBases:    make(map[uint16]bool),
	}
	for idx, in := range instrs {
		r.ByAddress[in.Address] = idx
		r.Stats.TotalInstructions++
		if in.Kind == chip8.KindUnknown {
			r.Stats.UnknownInstructions++
		}
	}

	r.CallTargets[entry] = true
	r.collectTargets()
	starts := r.blockStarts(entry)
	r.buildBlocks(starts)
	r.linkPredecessors()
	r.markReachable(entry)
	r.partitionFunctions(entry)

	return r
}

// jumpV0Window bounds how many two-byte-stride addresses past a JP_V0
// base are treated as reachable, registered function entries. Mirrors
// emit.Options' default JumpV0TableEntries (§9 Open Question 2) so the
// analyzer's notion of "addresses a computed jump can reach" agrees with
// the dense switch/dispatch-table range the emitter actually generates.
const jumpV0Window = 16

// collectTargets is step 1 (§4.C): walk instructions, recording jump/call
// targets, branch-skip labels, and JP_V0 bases. Every address within
// jumpV0Window of a JP_V0 base is also registered as a call target: the
// emitter must be able to both build a block there and register it in
// the dispatch table, since a computed jump's actual destination isn't
// known until runtime.
func (r *Result) collectTargets() {
	for _, in := range r.Instructions {
		switch in.Kind {
		case chip8.KindJP:
			r.Labels[in.NNN] = true
		case chip8.KindCALL:
			r.Labels[in.NNN] = true
			r.CallTargets[in.NNN] = true
		case chip8.KindJPV0:
			r.JumpBases[in.NNN] = true
			for i := 0; i < jumpV0Window; i++ {
				addr := in.NNN + uint16(i*2)
				r.Labels[addr] = true
				r.CallTargets[addr] = true
			}
		}

		if in.IsBranch {
			r.Labels[in.Address+2] = true
			r.Labels[in.Address+4] = true
		}
	}
}

// blockStarts is step 2 (§4.C): the union of entry, labels, call targets,
// and the fall-through address after every terminator.
func (r *Result) blockStarts(entry uint16) []uint16 {
	set := map[uint16]bool{entry: true}
	for addr := range r.Labels {
		set[addr] = true
	}
	for addr := range r.CallTargets {
		set[addr] = true
	}
	for _, in := range r.Instructions {
		if in.IsTerminator {
			next := in.Address + 2
			if _, ok := r.ByAddress[next]; ok {
				set[next] = true
			}
		}
	}

	starts := make([]uint16, 0, len(set))
	for addr := range set {
		if _, ok := r.ByAddress[addr]; ok {
			starts = append(starts, addr)
		}
	}
	sortUint16(starts)
	return starts
}

// buildBlocks is step 3 (§4.C): walk forward from each start, closing the
// block at the first terminator/return/branch or the next block start.
func (r *Result) buildBlocks(starts []uint16) {
	isStart := make(map[uint16]bool, len(starts))
	for _, s := range starts {
		isStart[s] = true
	}

	for _, start := range starts {
		idx, ok := r.ByAddress[start]
		if !ok {
			continue
		}

		b := &Block{Start: start, Labels: make(map[uint16]bool), IsFunctionEntry: r.CallTargets[start]}
		cur := idx

		for {
			in := r.Instructions[cur]
			b.Instrs = append(b.Instrs, cur)

			if in.IsBranch {
				// A branch's successors are {addr+2, addr+4} (§4.C step 3).
				b.Succ = append(b.Succ, in.Address+2, in.Address+4)
				break
			}
			if in.Kind == chip8.KindJP {
				b.Succ = append(b.Succ, in.NNN)
				break
			}
			if in.IsReturn || in.Kind == chip8.KindJPV0 {
				// RET has no successors; JP_V0 is resolved at emission (§4.C step 3).
				break
			}
			// CALL does not close the block: control returns to the
			// instruction after it, so the block continues forward through
			// the call site.

			nextAddr := in.Address + 2
			nIdx, decoded := r.ByAddress[nextAddr]
			if !decoded {
				break
			}
			if isStart[nextAddr] {
				b.Succ = append(b.Succ, nextAddr)
				break
			}
			cur = nIdx
		}

		last := r.Instructions[b.Instrs[len(b.Instrs)-1]]
		b.End = last.Address + 2
		r.Blocks[start] = b
	}
}

func (r *Result) linkPredecessors() {
	for _, b := range r.Blocks {
		for _, s := range b.Succ {
			if succ, ok := r.Blocks[s]; ok {
				succ.Pred = append(succ.Pred, b.Start)
			}
		}
	}
}

// markReachable is step 5 (§4.C): BFS from {entry} ∪ call_targets.
func (r *Result) markReachable(entry uint16) {
	queue := []uint16{entry}
	seen := map[uint16]bool{entry: true}
	for t := range r.CallTargets {
		if !seen[t] {
			seen[t] = true
			queue = append(queue, t)
		}
	}

	for len(queue) > 0 {
		addr := queue[0]
		queue = queue[1:]
		b, ok := r.Blocks[addr]
		if !ok {
			continue
		}
		b.IsReachable = true
		for _, s := range b.Succ {
			if !seen[s] {
				seen[s] = true
				queue = append(queue, s)
			}
		}
	}

	for _, b := range r.Blocks {
		if !b.IsReachable {
			r.Stats.UnreachableBlocks++
			r.Stats.UnreachableInstructions += len(b.Instrs)
		}
	}
}

// partitionFunctions is step 6 (§4.C): for each call target, BFS through
// successors without entering another call target.
func (r *Result) partitionFunctions(entry uint16) {
	targets := make([]uint16, 0, len(r.CallTargets))
	for t := range r.CallTargets {
		targets = append(targets, t)
	}
	sortUint16(targets)

	for _, t := range targets {
		f := &Function{Name: functionName(t, entry), Entry: t, Blocks: make(map[uint16]bool)}

		queue := []uint16{t}
		seen := map[uint16]bool{t: true}
		for len(queue) > 0 {
			addr := queue[0]
			queue = queue[1:]
			f.Blocks[addr] = true

			b, ok := r.Blocks[addr]
			if !ok {
				continue
			}
			for _, s := range b.Succ {
				if s == t {
					continue
				}
				if r.CallTargets[s] && s != t {
					continue // another function's entry dominates its own function
				}
				if !seen[s] {
					seen[s] = true
					queue = append(queue, s)
				}
			}
		}

		r.Functions[t] = f
	}
}

func functionName(entry, programEntry uint16) string {
	if entry == programEntry {
		return "main"
	}
	return "sub"
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// SharedBlocks reports whether any reachable block belongs to more than
// one function's block set, other than through a proper call — the
// per-function emission mode cannot faithfully translate this case and
// must fall back to single-function mode (§9 Design Note 3).
func (r *Result) SharedBlocks() bool {
	owner := make(map[uint16]uint16)
	for entry, f := range r.Functions {
		for addr := range f.Blocks {
			if prev, ok := owner[addr]; ok && prev != entry {
				return true
			}
			owner[addr] = entry
		}
	}
	return false
}
