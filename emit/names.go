package emit

import "fmt"

// LabelName returns the emitted goto label for a block start address
// (§4.D: "label_0xHHH", uppercase hex).
func LabelName(addr uint16) string {
	return fmt.Sprintf("label_0x%03X", addr)
}

// FunctionName returns the emitted routine name for a function entry
// address. prefix is the sanitized ROM id, empty in single-ROM mode and
// non-empty in batch mode (§4.D).
func FunctionName(prefix string, addr uint16) string {
	if prefix == "" {
		return fmt.Sprintf("func_0x%03X", addr)
	}
	return fmt.Sprintf("%s_func_0x%03X", prefix, addr)
}

// RegisterHookName returns the name of the emitted function that
// registers all of a ROM's call targets into the process-wide dispatch
// table (§4.D "Register-functions hook").
func RegisterHookName(prefix string) string {
	if prefix == "" {
		return "chip8_register_functions"
	}
	return fmt.Sprintf("%s_register_functions", prefix)
}

// EntryName returns the name of the emitted chip8_main-equivalent entry
// routine.
func EntryName(prefix string) string {
	if prefix == "" {
		return "chip8_main"
	}
	return fmt.Sprintf("%s_main", prefix)
}

// DataSymbol returns the name of the embedded ROM-data constant array.
func DataSymbol(prefix string) string {
	if prefix == "" {
		return "chip8_rom_data"
	}
	return fmt.Sprintf("%s_rom_data", prefix)
}
