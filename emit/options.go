// Package emit produces the native (C) translation unit(s) for a ROM:
// per-function bodies, header, embedded ROM data, launcher glue, and a
// build file, plus the runtime contract files the emitted code links
// against (§4.D, §4.E).
package emit

// Quirks are platform-variant behavior toggles (§9, GLOSSARY).
type Quirks struct {
	VFReset           bool
	ShiftUsesVy       bool
	MemoryIncrementI  bool
	SpriteWrap        bool
	JumpUsesVx        bool
	DisplayWait       bool
}

// Options are the explicit, immutable config passed into emission (§9).
type Options struct {
	EmitComments        bool
	EmitAddressComments bool
	SingleFunctionMode  bool
	EmbedROMData        bool
	NoAuto              bool // disable automatic fallback to single-function mode
	Quirks              Quirks

	// JumpV0TableEntries bounds the dense switch emitted for JP_V0 in
	// single-function mode; default 16 two-byte entries (32 bytes) per
	// spec.md §9's stated heuristic.
	JumpV0TableEntries int

	// RecommendedCPUHz is the instructions/sec the standalone launcher
	// passes to chip8_run; overridable per ROM via a metadata sidecar
	// (§4.F catalog field, reused here for single-ROM emission too).
	RecommendedCPUHz int
}

// DefaultOptions mirror a faithful, quirk-free CHIP-8 interpretation with
// comments on and per-function mode preferred (§4.D, §9).
func DefaultOptions() Options {
	return Options{
		EmitComments:        true,
		EmitAddressComments: true,
		EmbedROMData:        true,
		JumpV0TableEntries:  16,
		RecommendedCPUHz:    700,
	}
}
