package analysis

import (
	"fmt"
	"io"
	"strings"
)

// ListInstructions prints one line per instruction in the ordered column
// style bbcdisasm's printInstruction uses for 6502: mnemonic, then a
// `\`-delimited address/opcode-bytes column starting near column 25.
// Used by the recompiler's --disasm flag for operator debugging (§6).
func (r *Result) ListInstructions(w io.Writer) {
	for _, in := range r.Instructions {
		var sb strings.Builder

		if r.Labels[in.Address] {
			fmt.Fprintf(&sb, "label_0x%03X:\n", in.Address)
		}
		lineStart := sb.Len()

		sb.WriteByte(' ')
		sb.WriteString(in.String())

		if n := sb.Len() - lineStart; n < 24 {
			sb.WriteString(strings.Repeat(" ", 24-n))
		}
		sb.WriteString(" \\ ")
		fmt.Fprintf(&sb, "0x%03X %04X", in.Address, in.Opcode)

		sb.WriteByte('\n')
		io.WriteString(w, sb.String())
	}
}
