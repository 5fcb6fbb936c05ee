// Package copper decodes Copper lists, the Amiga display coprocessor's
// instruction stream. Every instruction is two 16-bit words; there are only
// three of them: MOVE, WAIT and SKIP. The format is not self-describing, so
// callers must already know that a region of chip memory is a Copper list.
package copper

import (
	"fmt"
)

// InstructionLen is the fixed width of every Copper instruction in bytes.
const InstructionLen = 4

// Instruction is one decoded Copper instruction.
type Instruction struct {
	Address uint32
	Bytes   []byte
	Text    string
}

// customBase is where the custom chip register bank lives in the address
// space. MOVE destinations are offsets into this bank.
const customBase = 0xdff000

// names of the custom registers most often written from Copper lists,
// keyed by register offset
var customRegisters = map[uint16]string{
	0x080: "cop1lc",
	0x082: "cop1lcl",
	0x084: "cop2lc",
	0x086: "cop2lcl",
	0x088: "copjmp1",
	0x08a: "copjmp2",
	0x08e: "diwstrt",
	0x090: "diwstop",
	0x092: "ddfstrt",
	0x094: "ddfstop",
	0x096: "dmacon",
	0x09a: "intena",
	0x09c: "intreq",
	0x0e0: "bpl1pth",
	0x0e2: "bpl1ptl",
	0x0e4: "bpl2pth",
	0x0e6: "bpl2ptl",
	0x100: "bplcon0",
	0x102: "bplcon1",
	0x104: "bplcon2",
	0x108: "bpl1mod",
	0x10a: "bpl2mod",
	0x180: "color00",
	0x182: "color01",
	0x184: "color02",
	0x186: "color03",
}

// Decode decodes every complete instruction in data, assigning addresses
// starting at base. A trailing odd word is ignored.
func Decode(data []byte, base uint32) []Instruction {
	var out []Instruction

	for offset := 0; offset+InstructionLen <= len(data); offset += InstructionLen {
		ir1 := word(data, offset)
		ir2 := word(data, offset+2)

		out = append(out, Instruction{
			Address: base + uint32(offset),
			Bytes:   data[offset : offset+InstructionLen],
			Text:    text(ir1, ir2),
		})
	}
	return out
}

func text(ir1, ir2 uint16) string {
	// bit 0 of the first word selects MOVE, bit 0 of the second word
	// selects between WAIT and SKIP
	if ir1&1 == 0 {
		return moveText(ir1, ir2)
	}

	// the canonical end-of-list instruction waits for a beam position
	// that never arrives
	if ir1 == 0xffff && ir2 == 0xfffe {
		return "wait vp=$ff,hp=$fe ; end of copper list"
	}

	vp := (ir1 >> 8) & 0xff
	hp := ir1 & 0xfe
	if ir2&1 == 0 {
		return fmt.Sprintf("wait vp=$%02x,hp=$%02x", vp, hp)
	}
	return fmt.Sprintf("skip vp=$%02x,hp=$%02x", vp, hp)
}

func moveText(ir1, ir2 uint16) string {
	reg := ir1 & 0x01fe
	if name, ok := customRegisters[reg]; ok {
		return fmt.Sprintf("move #$%04x,%s", ir2, name)
	}
	return fmt.Sprintf("move #$%04x,$%06x", ir2, customBase+uint32(reg))
}

func word(b []byte, i int) uint16 {
	return uint16(b[i])<<8 | uint16(b[i+1])
}
