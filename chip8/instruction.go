// Package chip8 decodes CHIP-8 opcodes into structured instruction
// records with operand fields and control-flow flags (§3, §4.B).
package chip8

import "fmt"

// Kind enumerates the 35 documented CHIP-8 instructions plus Unknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindSYS          // 0NNN, no-op
	KindCLS          // 00E0
	KindRET          // 00EE
	KindJP           // 1NNN
	KindCALL         // 2NNN
	KindSEVxNN       // 3XNN
	KindSNEVxNN      // 4XNN
	KindSEVxVy       // 5XY0
	KindLDVxNN       // 6XNN
	KindADDVxNN      // 7XNN
	KindLDVxVy       // 8XY0
	KindORVxVy       // 8XY1
	KindANDVxVy      // 8XY2
	KindXORVxVy      // 8XY3
	KindADDVxVy      // 8XY4
	KindSUBVxVy      // 8XY5
	KindSHRVxVy      // 8XY6
	KindSUBNVxVy     // 8XY7
	KindSHLVxVy      // 8XYE
	KindSNEVxVy      // 9XY0
	KindLDI          // ANNN
	KindJPV0         // BNNN
	KindRND          // CXNN
	KindDRW          // DXYN
	KindSKP          // EX9E
	KindSKNP         // EXA1
	KindLDVxDT       // FX07
	KindLDVxK        // FX0A
	KindLDDTVx       // FX15
	KindLDSTVx       // FX18
	KindADDIVx       // FX1E
	KindLDFVx        // FX29
	KindLDBVx        // FX33
	KindLDIVx        // FX55, store [I], Vx
	KindLDVxI        // FX65, load Vx, [I]
)

var kindNames = map[Kind]string{
	KindUnknown:  "UNKNOWN",
	KindSYS:      "SYS",
	KindCLS:      "CLS",
	KindRET:      "RET",
	KindJP:       "JP",
	KindCALL:     "CALL",
	KindSEVxNN:   "SE",
	KindSNEVxNN:  "SNE",
	KindSEVxVy:   "SE",
	KindLDVxNN:   "LD",
	KindADDVxNN:  "ADD",
	KindLDVxVy:   "LD",
	KindORVxVy:   "OR",
	KindANDVxVy:  "AND",
	KindXORVxVy:  "XOR",
	KindADDVxVy:  "ADD",
	KindSUBVxVy:  "SUB",
	KindSHRVxVy:  "SHR",
	KindSUBNVxVy: "SUBN",
	KindSHLVxVy:  "SHL",
	KindSNEVxVy:  "SNE",
	KindLDI:      "LD",
	KindJPV0:     "JP",
	KindRND:      "RND",
	KindDRW:      "DRW",
	KindSKP:      "SKP",
	KindSKNP:     "SKNP",
	KindLDVxDT:   "LD",
	KindLDVxK:    "LD",
	KindLDDTVx:   "LD",
	KindLDSTVx:   "LD",
	KindADDIVx:   "ADD",
	KindLDFVx:    "LD",
	KindLDBVx:    "LD",
	KindLDIVx:    "LD",
	KindLDVxI:    "LD",
}

// branchKinds are the six conditional-skip instructions (§3: "is_branch
// denotes the six conditional-skip kinds").
var branchKinds = map[Kind]bool{
	KindSEVxNN:  true,
	KindSNEVxNN: true,
	KindSEVxVy:  true,
	KindSNEVxVy: true,
	KindSKP:     true,
	KindSKNP:    true,
}

// Instruction is a decoded record keyed by its address (§3).
type Instruction struct {
	Address uint16
	Opcode  uint16
	Kind    Kind

	X  byte
	Y  byte
	N  byte
	NN byte

	NNN uint16

	IsJump       bool
	IsBranch     bool
	IsCall       bool
	IsReturn     bool
	IsTerminator bool
}

// String renders a CHIP-8 disassembly mnemonic line, deterministic given
// only the instruction's own fields (§8 round-trip property).
func (i Instruction) String() string {
	name := kindNames[i.Kind]
	switch i.Kind {
	case KindSYS:
		return fmt.Sprintf("SYS 0x%03X", i.NNN)
	case KindCLS, KindRET:
		return name
	case KindJP:
		return fmt.Sprintf("JP 0x%03X", i.NNN)
	case KindCALL:
		return fmt.Sprintf("CALL 0x%03X", i.NNN)
	case KindSEVxNN:
		return fmt.Sprintf("SE V%X, 0x%02X", i.X, i.NN)
	case KindSNEVxNN:
		return fmt.Sprintf("SNE V%X, 0x%02X", i.X, i.NN)
	case KindSEVxVy:
		return fmt.Sprintf("SE V%X, V%X", i.X, i.Y)
	case KindLDVxNN:
		return fmt.Sprintf("LD V%X, 0x%02X", i.X, i.NN)
	case KindADDVxNN:
		return fmt.Sprintf("ADD V%X, 0x%02X", i.X, i.NN)
	case KindLDVxVy:
		return fmt.Sprintf("LD V%X, V%X", i.X, i.Y)
	case KindORVxVy:
		return fmt.Sprintf("OR V%X, V%X", i.X, i.Y)
	case KindANDVxVy:
		return fmt.Sprintf("AND V%X, V%X", i.X, i.Y)
	case KindXORVxVy:
		return fmt.Sprintf("XOR V%X, V%X", i.X, i.Y)
	case KindADDVxVy:
		return fmt.Sprintf("ADD V%X, V%X", i.X, i.Y)
	case KindSUBVxVy:
		return fmt.Sprintf("SUB V%X, V%X", i.X, i.Y)
	case KindSHRVxVy:
		return fmt.Sprintf("SHR V%X, V%X", i.X, i.Y)
	case KindSUBNVxVy:
		return fmt.Sprintf("SUBN V%X, V%X", i.X, i.Y)
	case KindSHLVxVy:
		return fmt.Sprintf("SHL V%X, V%X", i.X, i.Y)
	case KindSNEVxVy:
		return fmt.Sprintf("SNE V%X, V%X", i.X, i.Y)
	case KindLDI:
		return fmt.Sprintf("LD I, 0x%03X", i.NNN)
	case KindJPV0:
		return fmt.Sprintf("JP V0, 0x%03X", i.NNN)
	case KindRND:
		return fmt.Sprintf("RND V%X, 0x%02X", i.X, i.NN)
	case KindDRW:
		return fmt.Sprintf("DRW V%X, V%X, 0x%X", i.X, i.Y, i.N)
	case KindSKP:
		return fmt.Sprintf("SKP V%X", i.X)
	case KindSKNP:
		return fmt.Sprintf("SKNP V%X", i.X)
	case KindLDVxDT:
		return fmt.Sprintf("LD V%X, DT", i.X)
	case KindLDVxK:
		return fmt.Sprintf("LD V%X, K", i.X)
	case KindLDDTVx:
		return fmt.Sprintf("LD DT, V%X", i.X)
	case KindLDSTVx:
		return fmt.Sprintf("LD ST, V%X", i.X)
	case KindADDIVx:
		return fmt.Sprintf("ADD I, V%X", i.X)
	case KindLDFVx:
		return fmt.Sprintf("LD F, V%X", i.X)
	case KindLDBVx:
		return fmt.Sprintf("LD B, V%X", i.X)
	case KindLDIVx:
		return fmt.Sprintf("LD [I], V%X", i.X)
	case KindLDVxI:
		return fmt.Sprintf("LD V%X, [I]", i.X)
	default:
		return fmt.Sprintf("UNKNOWN 0x%04X", i.Opcode)
	}
}
