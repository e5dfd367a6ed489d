package emit

import (
	"fmt"
	"sort"
	"strings"

	"chip8rc/analysis"
	"chip8rc/chip8"
)

// Mode selects between the two emission strategies (§4.D).
type Mode int

const (
	ModePerFunction Mode = iota
	ModeSingleFunction
)

// chooseMode applies the §4.F/§9 fallback policy: per-function mode is
// attempted first unless forced off or automatically disabled, and falls
// back to single-function mode whenever the analyzer finds blocks shared
// across functions, which per-function mode cannot translate correctly.
func chooseMode(r *analysis.Result, opts Options) Mode {
	if opts.SingleFunctionMode {
		return ModeSingleFunction
	}
	if !opts.NoAuto && r.SharedBlocks() {
		return ModeSingleFunction
	}
	return ModePerFunction
}

// loopBlocks identifies, within the given set of block-start addresses,
// which ones have an incoming back-edge — i.e. are reachable from
// themselves by following successor edges restricted to that set.
// Forward-only code needs no yield; back-edges must (§4.D).
func loopBlocks(r *analysis.Result, scope map[uint16]bool) map[uint16]bool {
	loop := make(map[uint16]bool)
	for start := range scope {
		if reaches(r, scope, start, start, make(map[uint16]bool)) {
			loop[start] = true
		}
	}
	return loop
}

func reaches(r *analysis.Result, scope map[uint16]bool, from, target uint16, visited map[uint16]bool) bool {
	b, ok := r.Blocks[from]
	if !ok {
		return false
	}
	for _, s := range b.Succ {
		if !scope[s] {
			continue
		}
		if s == target {
			return true
		}
		if visited[s] {
			continue
		}
		visited[s] = true
		if reaches(r, scope, s, target, visited) {
			return true
		}
	}
	return false
}

// emitFunctionPerFunction renders one C routine for fn in per-function
// mode (§4.D). CALL becomes a native C call and RET a native C return, so
// the host's own call stack stands in for the CHIP-8 call stack.
func emitFunctionPerFunction(r *analysis.Result, fn *analysis.Function, prefix string, opts Options) string {
	name := FunctionName(prefix, fn.Entry)
	loop := loopBlocks(r, fn.Blocks)

	starts := sortedKeys(fn.Blocks)

	var body strings.Builder
	yieldAddrSet := map[uint16]bool{}

	for _, start := range starts {
		b := r.Blocks[start]
		if b == nil {
			continue
		}

		forcedLabels := drawWaitTargets(r, b, opts)

		fmt.Fprintf(&body, "%s:\n", LabelName(start))

		for idx, iidx := range b.Instrs {
			in := r.Instructions[iidx]
			last := idx == len(b.Instrs)-1

			if (loop[start] || forcedLabels[in.Address]) && in.Address != start {
				fmt.Fprintf(&body, "%s:\n", LabelName(in.Address))
			}

			emitInstrStmt(&body, in, prefix, ModePerFunction, opts)

			forcedDraw := opts.Quirks.DisplayWait && in.Kind == chip8.KindDRW
			if forcedDraw {
				yieldAddrSet[in.Address+2] = true
				emitDisplayWaitYield(&body, in.Address+2)
			}

			if last {
				switch {
				case forcedDraw:
					// Already yielded unconditionally above.
				case in.Kind == chip8.KindJP && !fn.Blocks[in.NNN]:
					// Cross-function jump: translated as tail-call-then-return
					// (§4.D, §9 Design Note 3).
					fmt.Fprintf(&body, "    %s(ctx); return;\n", FunctionName(prefix, in.NNN))
				case loop[start]:
					emitBlockTailYield(&body, r, b, in, prefix, opts, ModePerFunction, func(a uint16) {
						yieldAddrSet[a] = true
					})
				default:
					emitBlockTail(&body, r, b, in, prefix, opts, ModePerFunction)
				}
			} else if loop[start] {
				yieldAddrSet[in.Address+2] = true
				emitYieldCheck(&body, in.Address+2)
			}
		}

		body.WriteString("\n")
	}

	yieldAddrs := sortedKeysFromSet(yieldAddrSet)

	var out strings.Builder
	fmt.Fprintf(&out, "void %s(Chip8Context* ctx) {\n", name)
	if len(yieldAddrs) > 0 {
		out.WriteString("    if (ctx->should_yield) {\n")
		out.WriteString("        ctx->should_yield = false;\n")
		out.WriteString("        switch (ctx->resume_pc) {\n")
		for _, a := range yieldAddrs {
			fmt.Fprintf(&out, "        case 0x%03X: goto %s;\n", a, LabelName(a))
		}
		out.WriteString("        default: break;\n")
		out.WriteString("        }\n")
		out.WriteString("    }\n")
	}
	out.WriteString(body.String())
	out.WriteString("}\n\n")
	return out.String()
}

// emitProgramSingleFunction renders the whole ROM as one C routine (§4.D,
// §9 Design Note 3): CALL/RET go through a software stack (runtime_stack_*)
// since there is no native call/return to carry them, and every
// instruction gets its own label so a popped return address or a yield
// resume target can always be reached by goto.
func emitProgramSingleFunction(r *analysis.Result, prefix string, entry uint16, opts Options) string {
	name := EntryName(prefix)

	scope := make(map[uint16]bool, len(r.Blocks))
	for start, b := range r.Blocks {
		if b.IsReachable {
			scope[start] = true
		}
	}
	loop := loopBlocks(r, scope)

	starts := sortedKeys(scope)

	var body strings.Builder
	resumeTargets := map[uint16]bool{}

	for _, start := range starts {
		b := r.Blocks[start]
		if b == nil {
			continue
		}

		for idx, iidx := range b.Instrs {
			in := r.Instructions[iidx]
			last := idx == len(b.Instrs)-1

			fmt.Fprintf(&body, "%s:\n", LabelName(in.Address))

			emitInstrStmt(&body, in, prefix, ModeSingleFunction, opts)

			if in.Kind == chip8.KindCALL {
				resumeTargets[in.Address+2] = true
			}

			forcedDraw := opts.Quirks.DisplayWait && in.Kind == chip8.KindDRW
			if forcedDraw {
				resumeTargets[in.Address+2] = true
				emitDisplayWaitYield(&body, in.Address+2)
			}

			if last {
				switch {
				case forcedDraw:
					// Already yielded unconditionally above.
				case loop[start]:
					emitBlockTailYield(&body, r, b, in, prefix, opts, ModeSingleFunction, func(a uint16) {
						resumeTargets[a] = true
					})
				default:
					emitBlockTail(&body, r, b, in, prefix, opts, ModeSingleFunction)
				}
			} else if loop[start] {
				resumeTargets[in.Address+2] = true
				emitYieldCheck(&body, in.Address+2)
			}
		}
	}

	targets := sortedKeysFromSet(resumeTargets)

	var out strings.Builder
	fmt.Fprintf(&out, "void %s(Chip8Context* ctx) {\n", name)
	out.WriteString("    if (ctx->should_yield) {\n")
	out.WriteString("        ctx->should_yield = false;\n")
	out.WriteString("        goto resume_dispatch;\n")
	out.WriteString("    }\n")
	fmt.Fprintf(&out, "    goto %s;\n\n", LabelName(entry))
	out.WriteString("resume_dispatch:\n")
	out.WriteString("    switch (ctx->resume_pc) {\n")
	for _, a := range targets {
		fmt.Fprintf(&out, "    case 0x%03X: goto %s;\n", a, LabelName(a))
	}
	out.WriteString("    default:\n")
	out.WriteString("        chip8_panic(\"unresolvable resume target\", ctx->resume_pc);\n")
	out.WriteString("        return;\n")
	out.WriteString("    }\n\n")
	out.WriteString(body.String())
	out.WriteString("}\n\n")
	return out.String()
}

// emitBlockTail emits the control-transfer statement for a block's final
// instruction.
func emitBlockTail(out *strings.Builder, r *analysis.Result, b *analysis.Block, in chip8.Instruction, prefix string, opts Options, mode Mode) {
	switch {
	case in.IsBranch:
		fmt.Fprintf(out, "    if (%s) { goto %s; }\n", branchCondition(in), LabelName(in.Address+4))
		fmt.Fprintf(out, "    goto %s;\n", LabelName(in.Address+2))

	case in.Kind == chip8.KindJP:
		target := in.NNN
		if mode == ModeSingleFunction {
			fmt.Fprintf(out, "    goto %s;\n", LabelName(target))
		} else if _, ok := r.Blocks[target]; ok {
			fmt.Fprintf(out, "    goto %s;\n", LabelName(target))
		} else {
			// Target has no block of its own: translated as
			// tail-call-then-return to a routine named for that address.
			// Jumps to another function's block are handled by the caller
			// (emitFunctionPerFunction) before reaching here.
			fmt.Fprintf(out, "    %s(ctx); return;\n", FunctionName(prefix, target))
		}

	case in.Kind == chip8.KindJPV0:
		if mode == ModeSingleFunction {
			emitComputedJumpSingle(out, in, opts)
		} else {
			emitComputedJumpPerFunction(out, in, opts)
		}

	case in.IsReturn:
		if mode == ModeSingleFunction {
			out.WriteString("    ctx->resume_pc = runtime_stack_pop(ctx);\n")
			out.WriteString("    goto resume_dispatch;\n")
		} else {
			out.WriteString("    return;\n")
		}

	default:
		// Ordinary fall-through into the next block.
		if len(b.Succ) == 1 {
			fmt.Fprintf(out, "    goto %s;\n", LabelName(b.Succ[0]))
		} else {
			out.WriteString("    return;\n")
		}
	}
}

// emitBlockTailYield emits the control-transfer statement for the final
// instruction of a loop-closing block, folding the cycle-budget check into
// each exit path with that path's real resume address instead of a blanket
// addr+2 (§8 yield idempotence: resuming must land exactly where execution
// would have gone had it not yielded). record is called once per resume
// address actually emitted, so the caller can add it to its dispatch
// switch. Only branch, JP, and single-successor fall-through terminators
// can close a loop: buildBlocks gives RET and JP_V0 no successors, so
// reaches() can never cycle back through them, and those kinds cannot
// reach this function with loop[start] true.
func emitBlockTailYield(out *strings.Builder, r *analysis.Result, b *analysis.Block, in chip8.Instruction, prefix string, opts Options, mode Mode, record func(uint16)) {
	switch {
	case in.IsBranch:
		taken := in.Address + 4
		notTaken := in.Address + 2
		fmt.Fprintf(out, "    if (%s) {\n", branchCondition(in))
		emitYieldCheckIndent(out, "        ", taken)
		fmt.Fprintf(out, "        goto %s;\n", LabelName(taken))
		out.WriteString("    }\n")
		emitYieldCheck(out, notTaken)
		fmt.Fprintf(out, "    goto %s;\n", LabelName(notTaken))
		record(taken)
		record(notTaken)

	case in.Kind == chip8.KindJP:
		target := in.NNN
		if mode == ModeSingleFunction {
			emitYieldCheck(out, target)
			fmt.Fprintf(out, "    goto %s;\n", LabelName(target))
			record(target)
		} else if _, ok := r.Blocks[target]; ok {
			emitYieldCheck(out, target)
			fmt.Fprintf(out, "    goto %s;\n", LabelName(target))
			record(target)
		} else {
			// Target has no block of its own, so reaches() cannot use
			// it to close a cycle back to start and this path is never
			// reached with loop[start] true. Kept as a plain tail-call
			// for safety.
			fmt.Fprintf(out, "    %s(ctx); return;\n", FunctionName(prefix, target))
		}

	default:
		// Ordinary fall-through into the next block.
		if len(b.Succ) == 1 {
			target := b.Succ[0]
			emitYieldCheck(out, target)
			fmt.Fprintf(out, "    goto %s;\n", LabelName(target))
			record(target)
		} else {
			out.WriteString("    return;\n")
		}
	}
}

// jumpV0Register returns which V register supplies the computed-jump
// offset: always V0 unless the jump_uses_vx quirk is set, in which case it
// is the instruction's own X nibble (BXNN's "jump to XNN + VX" reading,
// the CHIP-48/SCHIP variant of BNNN). Decode already stores that nibble in
// in.X for every opcode, so no extra decoding is needed here.
func jumpV0Register(in chip8.Instruction, opts Options) byte {
	if opts.Quirks.JumpUsesVx {
		return in.X
	}
	return 0
}

// emitComputedJumpPerFunction resolves JP_V0 through the process-wide
// dispatch table, since the target may live in a different emitted
// function (§4.D, §5).
func emitComputedJumpPerFunction(out *strings.Builder, in chip8.Instruction, opts Options) {
	reg := jumpV0Register(in, opts)
	out.WriteString("    {\n")
	fmt.Fprintf(out, "        uint16_t target = (uint16_t)(0x%03X + ctx->V[0x%X]);\n", in.NNN, reg)
	out.WriteString("        Chip8Func fn = chip8_dispatch_lookup(target);\n")
	out.WriteString("        if (fn == NULL) { chip8_panic(\"unregistered computed jump target\", target); return; }\n")
	out.WriteString("        fn(ctx);\n")
	out.WriteString("        return;\n")
	out.WriteString("    }\n")
}

// emitComputedJumpSingle resolves JP_V0 with a dense local switch bounded
// by opts.JumpV0TableEntries (§9 Open Question: default 16 two-byte
// entries), since in single-function mode the target is just another
// label in the same routine.
func emitComputedJumpSingle(out *strings.Builder, in chip8.Instruction, opts Options) {
	entries := opts.JumpV0TableEntries
	if entries <= 0 {
		entries = 16
	}
	reg := jumpV0Register(in, opts)
	fmt.Fprintf(out, "    switch (ctx->V[0x%X]) {\n", reg)
	for i := 0; i < entries; i++ {
		offset := uint16(i * 2)
		target := in.NNN + offset
		fmt.Fprintf(out, "    case 0x%02X: goto %s;\n", offset, LabelName(target))
	}
	out.WriteString("    default:\n")
	fmt.Fprintf(out, "        chip8_panic(\"JP V0 offset outside dense table\", (uint16_t)(0x%03X + ctx->V[0x%X]));\n", in.NNN, reg)
	out.WriteString("        return;\n")
	out.WriteString("    }\n")
}

// drawWaitTargets returns the set of addresses immediately following a
// DRW instruction in block b, under the display_wait quirk. These need
// their own goto label in per-function mode even though the block isn't a
// loop, since a forced yield can resume execution there.
func drawWaitTargets(r *analysis.Result, b *analysis.Block, opts Options) map[uint16]bool {
	targets := map[uint16]bool{}
	if !opts.Quirks.DisplayWait {
		return targets
	}
	for _, iidx := range b.Instrs {
		in := r.Instructions[iidx]
		if in.Kind == chip8.KindDRW {
			targets[in.Address+2] = true
		}
	}
	return targets
}

// emitDisplayWaitYield forces a yield right after a sprite draw, modeling
// the display_wait quirk (§4.D quirk table, §9 GLOSSARY): the COSMAC VIP
// blocks CPU execution on DRW until the next vertical blank, which here
// means ending the current frame's cycle budget unconditionally rather
// than only when cycles_remaining is exhausted.
func emitDisplayWaitYield(out *strings.Builder, resumeAddr uint16) {
	fmt.Fprintf(out, "    ctx->resume_pc = 0x%03X;\n", resumeAddr)
	out.WriteString("    ctx->should_yield = true;\n")
	out.WriteString("    return;\n")
}

func emitYieldCheck(out *strings.Builder, resumeAddr uint16) {
	emitYieldCheckIndent(out, "    ", resumeAddr)
}

// emitYieldCheckIndent is emitYieldCheck with a caller-chosen indent, for
// use inside an already-opened brace (e.g. the taken side of a branch).
func emitYieldCheckIndent(out *strings.Builder, indent string, resumeAddr uint16) {
	fmt.Fprintf(out, "%sif (--ctx->cycles_remaining <= 0) {\n", indent)
	fmt.Fprintf(out, "%s    ctx->resume_pc = 0x%03X;\n", indent, resumeAddr)
	fmt.Fprintf(out, "%s    ctx->should_yield = true;\n", indent)
	fmt.Fprintf(out, "%s    return;\n", indent)
	fmt.Fprintf(out, "%s}\n", indent)
}

func branchCondition(in chip8.Instruction) string {
	switch in.Kind {
	case chip8.KindSEVxNN:
		return fmt.Sprintf("ctx->V[0x%X] == 0x%02X", in.X, in.NN)
	case chip8.KindSNEVxNN:
		return fmt.Sprintf("ctx->V[0x%X] != 0x%02X", in.X, in.NN)
	case chip8.KindSEVxVy:
		return fmt.Sprintf("ctx->V[0x%X] == ctx->V[0x%X]", in.X, in.Y)
	case chip8.KindSNEVxVy:
		return fmt.Sprintf("ctx->V[0x%X] != ctx->V[0x%X]", in.X, in.Y)
	case chip8.KindSKP:
		return fmt.Sprintf("runtime_key_pressed(ctx, ctx->V[0x%X])", in.X)
	case chip8.KindSKNP:
		return fmt.Sprintf("!runtime_key_pressed(ctx, ctx->V[0x%X])", in.X)
	default:
		return "0"
	}
}

// emitInstrStmt emits the C statement(s) for a single instruction,
// excluding block-tail control transfer handled separately (§4.D table).
func emitInstrStmt(out *strings.Builder, in chip8.Instruction, prefix string, mode Mode, opts Options) {
	if opts.EmitAddressComments {
		fmt.Fprintf(out, "    /* 0x%03X: %04X - %s */\n", in.Address, in.Opcode, in.String())
	}

	vfResetSuffix := func(x byte) {
		if opts.Quirks.VFReset && x != 0xF {
			out.WriteString("    ctx->V[0xF] = 0;\n")
		}
	}

	switch in.Kind {
	case chip8.KindSYS, chip8.KindUnknown:
		if in.Kind == chip8.KindUnknown {
			fmt.Fprintf(out, "    /* unhandled opcode 0x%04X at 0x%03X */\n", in.Opcode, in.Address)
		}
		// no-op

	case chip8.KindCLS:
		out.WriteString("    runtime_clear_screen(ctx);\n")

	case chip8.KindCALL:
		if mode == ModePerFunction {
			fmt.Fprintf(out, "    %s(ctx);\n", FunctionName(prefix, in.NNN))
		} else {
			fmt.Fprintf(out, "    runtime_stack_push(ctx, 0x%03X);\n", in.Address+2)
			fmt.Fprintf(out, "    goto %s;\n", LabelName(in.NNN))
		}

	case chip8.KindLDVxNN:
		fmt.Fprintf(out, "    ctx->V[0x%X] = 0x%02X;\n", in.X, in.NN)

	case chip8.KindADDVxNN:
		fmt.Fprintf(out, "    ctx->V[0x%X] = (uint8_t)(ctx->V[0x%X] + 0x%02X);\n", in.X, in.X, in.NN)

	case chip8.KindLDVxVy:
		fmt.Fprintf(out, "    ctx->V[0x%X] = ctx->V[0x%X];\n", in.X, in.Y)

	case chip8.KindORVxVy:
		fmt.Fprintf(out, "    ctx->V[0x%X] |= ctx->V[0x%X];\n", in.X, in.Y)
		vfResetSuffix(in.X)

	case chip8.KindANDVxVy:
		fmt.Fprintf(out, "    ctx->V[0x%X] &= ctx->V[0x%X];\n", in.X, in.Y)
		vfResetSuffix(in.X)

	case chip8.KindXORVxVy:
		fmt.Fprintf(out, "    ctx->V[0x%X] ^= ctx->V[0x%X];\n", in.X, in.Y)
		vfResetSuffix(in.X)

	case chip8.KindADDVxVy:
		fmt.Fprintf(out, "    runtime_add_with_carry(ctx, 0x%X, 0x%X);\n", in.X, in.Y)

	case chip8.KindSUBVxVy:
		fmt.Fprintf(out, "    runtime_sub(ctx, 0x%X, 0x%X);\n", in.X, in.Y)

	case chip8.KindSUBNVxVy:
		fmt.Fprintf(out, "    runtime_subn(ctx, 0x%X, 0x%X);\n", in.X, in.Y)

	case chip8.KindSHRVxVy:
		fmt.Fprintf(out, "    runtime_shr(ctx, 0x%X, 0x%X);\n", in.X, in.Y)

	case chip8.KindSHLVxVy:
		fmt.Fprintf(out, "    runtime_shl(ctx, 0x%X, 0x%X);\n", in.X, in.Y)

	case chip8.KindLDI:
		fmt.Fprintf(out, "    ctx->I = 0x%03X;\n", in.NNN)

	case chip8.KindRND:
		fmt.Fprintf(out, "    ctx->V[0x%X] = (uint8_t)(runtime_random_byte(ctx) & 0x%02X);\n", in.X, in.NN)

	case chip8.KindDRW:
		fmt.Fprintf(out, "    runtime_draw_sprite(ctx, 0x%X, 0x%X, 0x%X);\n", in.X, in.Y, in.N)

	case chip8.KindLDVxDT:
		fmt.Fprintf(out, "    ctx->V[0x%X] = ctx->delay_timer;\n", in.X)

	case chip8.KindLDDTVx:
		fmt.Fprintf(out, "    ctx->delay_timer = ctx->V[0x%X];\n", in.X)

	case chip8.KindLDSTVx:
		fmt.Fprintf(out, "    ctx->sound_timer = ctx->V[0x%X];\n", in.X)

	case chip8.KindADDIVx:
		fmt.Fprintf(out, "    ctx->I = (uint16_t)(ctx->I + ctx->V[0x%X]);\n", in.X)

	case chip8.KindLDVxK:
		fmt.Fprintf(out, "    runtime_wait_key(ctx, 0x%X);\n", in.X)

	case chip8.KindLDFVx:
		fmt.Fprintf(out, "    ctx->I = (uint16_t)(CHIP8_FONT_START + (ctx->V[0x%X] & 0x0F) * 5);\n", in.X)

	case chip8.KindLDBVx:
		fmt.Fprintf(out, "    runtime_store_bcd(ctx, 0x%X);\n", in.X)

	case chip8.KindLDIVx:
		fmt.Fprintf(out, "    runtime_store_registers(ctx, 0x%X);\n", in.X)

	case chip8.KindLDVxI:
		fmt.Fprintf(out, "    runtime_load_registers(ctx, 0x%X);\n", in.X)

		// SEVxNN, SNEVxNN, SEVxVy, SNEVxVy, SKP, SKNP, JP, RET, JPV0:
		// always block terminators, handled in emitBlockTail.
	}
}

func sortedKeys(m map[uint16]bool) []uint16 {
	out := make([]uint16, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedKeysFromSet(m map[uint16]bool) []uint16 {
	return sortedKeys(m)
}
