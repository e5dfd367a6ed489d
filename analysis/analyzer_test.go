package analysis

import (
	"testing"

	"chip8rc/chip8"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func decodeBytes(t *testing.T, data []byte) []chip8.Instruction {
	t.Helper()
	return chip8.DecodeAll(data, 0x200)
}

func TestInfiniteLoopSingleBlock(t *testing.T) {
	instrs := decodeBytes(t, []byte{0x12, 0x00}) // JP 0x200
	r := Analyze(instrs, 0x200)

	assert(t, len(r.Blocks) == 1, "expected 1 block, got %d", len(r.Blocks))
	b := r.Blocks[0x200]
	assert(t, b != nil, "expected block at 0x200")
	assert(t, b.IsReachable, "entry block must be reachable")
	assert(t, len(b.Succ) == 1 && b.Succ[0] == 0x200, "expected self-loop successor, got %v", b.Succ)
}

func TestBranchSuccessors(t *testing.T) {
	// 3012 SE V0,0x12 ; 6A01 LD VA,1 ; 6A02 LD VA,2
	instrs := decodeBytes(t, []byte{0x30, 0x12, 0x6A, 0x01, 0x6A, 0x02})
	r := Analyze(instrs, 0x200)

	assert(t, r.Labels[0x202] && r.Labels[0x204], "branch must label both addr+2 and addr+4")

	entry := r.Blocks[0x200]
	assert(t, entry != nil, "expected entry block")
	assert(t, len(entry.Succ) == 2, "expected 2 successors, got %d", len(entry.Succ))

	skipped := r.Blocks[0x202]
	target := r.Blocks[0x204]
	assert(t, skipped != nil && target != nil, "expected blocks at both skip targets")
}

func TestCallCreatesFunctionAndReturns(t *testing.T) {
	// 0x200: CALL 0x204 ; 0x202: JP 0x200 ; 0x204: RET
	instrs := decodeBytes(t, []byte{0x22, 0x04, 0x12, 0x00, 0x00, 0xEE})
	r := Analyze(instrs, 0x200)

	assert(t, r.CallTargets[0x204], "0x204 must be a call target")
	assert(t, r.Functions[0x204] != nil, "expected function at 0x204")
	assert(t, r.Functions[0x200] != nil, "program entry must always be a function")

	sub := r.Blocks[0x204]
	assert(t, sub != nil && len(sub.Succ) == 0, "RET block should have no successors")
}

func TestReachabilityTransitiveClosure(t *testing.T) {
	// 0x200: JP 0x204 (skips 0x202, dead code) ; 0x202: CLS (unreachable) ; 0x204: JP 0x204
	instrs := decodeBytes(t, []byte{0x12, 0x04, 0x00, 0xE0, 0x12, 0x04})
	r := Analyze(instrs, 0x200)

	dead := r.Blocks[0x202]
	assert(t, dead != nil, "expected a block at 0x202")
	assert(t, !dead.IsReachable, "block at 0x202 should be unreachable")
	assert(t, r.Stats.UnreachableBlocks == 1, "expected 1 unreachable block, got %d", r.Stats.UnreachableBlocks)
}

func TestComputedJumpBaseRecorded(t *testing.T) {
	// BNNN JP V0, 0x300
	instrs := decodeBytes(t, []byte{0xB3, 0x00})
	r := Analyze(instrs, 0x200)
	assert(t, r.JumpBases[0x300], "expected computed jump base 0x300 recorded")
}

func TestBlockPartitionNoOverlap(t *testing.T) {
	instrs := decodeBytes(t, []byte{
		0x30, 0x12, // SE V0, 0x12
		0x60, 0x01, // LD V0, 1 (skippable)
		0x12, 0x00, // JP 0x200
	})
	r := Analyze(instrs, 0x200)

	seen := make(map[uint16]bool)
	for _, b := range r.Blocks {
		for _, idx := range b.Instrs {
			addr := r.Instructions[idx].Address
			assert(t, !seen[addr], "instruction at 0x%X claimed by more than one block", addr)
			seen[addr] = true
		}
	}
}

func TestPredecessorsAreInverseOfSuccessors(t *testing.T) {
	instrs := decodeBytes(t, []byte{0x12, 0x00})
	r := Analyze(instrs, 0x200)

	b := r.Blocks[0x200]
	found := false
	for _, p := range b.Pred {
		if p == 0x200 {
			found = true
		}
	}
	assert(t, found, "self-loop block must list itself as a predecessor")
}
