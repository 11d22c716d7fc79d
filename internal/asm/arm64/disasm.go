package arm64

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
)

// Disassemble renders code as one line per instruction word in GNU syntax, prefixed by the offset
// and the raw word. Words the decoder does not know (e.g. udf) are rendered as ".word".
func Disassemble(code []byte) ([]string, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("code length %d is not a multiple of 4", len(code))
	}
	lines := make([]string, 0, len(code)/4)
	for off := 0; off < len(code); off += 4 {
		word := binary.LittleEndian.Uint32(code[off:])
		text := fmt.Sprintf(".word %#08x", word)
		if inst, err := arm64asm.Decode(code[off : off+4]); err == nil {
			text = strings.TrimSpace(arm64asm.GNUSyntax(inst))
		}
		lines = append(lines, fmt.Sprintf("0x%04x: %08x  %s", off, word, text))
	}
	return lines, nil
}
