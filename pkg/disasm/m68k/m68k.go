// Package m68k decodes Motorola 68000 machine code into assembly text.
//
// The decoder is a pure function over a byte slice: it never touches the
// target and never fails. Words that do not match a supported encoding are
// emitted as `dc.w` directives so that decoding a whole segment always
// produces one entry per location, even across data embedded in code.
package m68k

import (
	"fmt"
)

// MaxInstructionLen is the longest possible 68000 instruction in bytes
// (opword plus four extension words).
const MaxInstructionLen = 10

// Instruction is one decoded instruction.
type Instruction struct {
	Address uint32
	Bytes   []byte
	Text    string
}

// condition code mnemonics, indexed by the condition field of the opword
var conditions = [16]string{
	"t", "f", "hi", "ls", "cc", "cs", "ne", "eq",
	"vc", "vs", "pl", "mi", "ge", "lt", "gt", "le",
}

var sizeSuffix = [3]string{".b", ".w", ".l"}

// Decode decodes as many complete instructions as fit in data, assigning
// addresses starting at base. It always makes forward progress: an
// unrecognized opword becomes a two-byte `dc.w` entry.
func Decode(data []byte, base uint32) []Instruction {
	var out []Instruction

	offset := 0
	for offset+2 <= len(data) {
		addr := base + uint32(offset)
		text, size := decodeOne(data[offset:], addr)

		out = append(out, Instruction{
			Address: addr,
			Bytes:   data[offset : offset+size],
			Text:    text,
		})
		offset += size
	}
	return out
}

// decodeOne decodes the instruction at the start of data and returns its
// text and byte length. data holds at least two bytes.
func decodeOne(data []byte, addr uint32) (string, int) {
	op := word(data, 0)

	switch op {
	case 0x4e70:
		return "reset", 2
	case 0x4e71:
		return "nop", 2
	case 0x4e73:
		return "rte", 2
	case 0x4e75:
		return "rts", 2
	case 0x4e77:
		return "rtr", 2
	case 0x4afc:
		return "illegal", 2
	case 0x4e72:
		if len(data) >= 4 {
			return fmt.Sprintf("stop #$%x", word(data, 2)), 4
		}
	}

	// trap #vector
	if op&0xfff0 == 0x4e40 {
		return fmt.Sprintf("trap #%d", op&0xf), 2
	}

	// moveq #imm,dn
	if op&0xf100 == 0x7000 {
		return fmt.Sprintf("moveq #%d,d%d", int8(op), (op>>9)&7), 2
	}

	// move / movea
	if s, ok := moveSize(op); ok {
		if text, size, ok := decodeMove(data, op, s); ok {
			return text, size
		}
	}

	// lea ea,an
	if op&0xf1c0 == 0x41c0 {
		if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, 2); ok {
			return fmt.Sprintf("lea %s,a%d", ea, (op>>9)&7), 2 + n
		}
	}

	// jsr / jmp
	if op&0xffc0 == 0x4e80 || op&0xffc0 == 0x4ec0 {
		name := "jsr"
		if op&0xffc0 == 0x4ec0 {
			name = "jmp"
		}
		if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, 2); ok {
			return fmt.Sprintf("%s %s", name, ea), 2 + n
		}
	}

	// clr / tst
	if op&0xff00 == 0x4200 || op&0xff00 == 0x4a00 {
		if s := (op >> 6) & 3; s < 3 {
			name := "clr"
			if op&0xff00 == 0x4a00 {
				name = "tst"
			}
			if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, s); ok {
				return fmt.Sprintf("%s%s %s", name, sizeSuffix[s], ea), 2 + n
			}
		}
	}

	// dbcc dn,target
	if op&0xf0f8 == 0x50c8 {
		if len(data) >= 4 {
			cond := conditions[(op>>8)&0xf]
			if cond == "f" {
				cond = "ra"
			}
			target := addr + 2 + uint32(int32(int16(word(data, 2))))
			return fmt.Sprintf("db%s d%d,$%x", cond, op&7, target), 4
		}
	}

	// addq / subq #q,ea
	if op&0xf100 == 0x5000 || op&0xf100 == 0x5100 {
		if s := (op >> 6) & 3; s < 3 {
			name := "addq"
			if op&0x0100 != 0 {
				name = "subq"
			}
			q := (op >> 9) & 7
			if q == 0 {
				q = 8
			}
			if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, s); ok {
				return fmt.Sprintf("%s%s #%d,%s", name, sizeSuffix[s], q, ea), 2 + n
			}
		}
	}

	// bra / bsr / bcc
	if op&0xf000 == 0x6000 {
		name := "b" + conditions[(op>>8)&0xf]
		switch (op >> 8) & 0xf {
		case 0:
			name = "bra"
		case 1:
			name = "bsr"
		}
		switch disp := int8(op); disp {
		case 0:
			if len(data) >= 4 {
				target := addr + 2 + uint32(int32(int16(word(data, 2))))
				return fmt.Sprintf("%s $%x", name, target), 4
			}
		default:
			target := addr + 2 + uint32(int32(disp))
			return fmt.Sprintf("%s $%x", name, target), 2
		}
	}

	// cmp / cmpa ea,dn|an
	if op&0xf000 == 0xb000 {
		reg := (op >> 9) & 7
		switch opmode := (op >> 6) & 7; opmode {
		case 0, 1, 2:
			if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, opmode); ok {
				return fmt.Sprintf("cmp%s %s,d%d", sizeSuffix[opmode], ea, reg), 2 + n
			}
		case 3, 7:
			s := uint16(1)
			if opmode == 7 {
				s = 2
			}
			if ea, n, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, s); ok {
				return fmt.Sprintf("cmpa%s %s,a%d", sizeSuffix[s], ea, reg), 2 + n
			}
		}
	}

	return fmt.Sprintf("dc.w $%04x", op), 2
}

// moveSize maps the two size bits of a move opword to a 0/1/2 size index.
func moveSize(op uint16) (uint16, bool) {
	switch op >> 12 {
	case 1:
		return 0, true // byte
	case 3:
		return 1, true // word
	case 2:
		return 2, true // long
	}
	return 0, false
}

func decodeMove(data []byte, op, s uint16) (string, int, bool) {
	src, n1, ok := effectiveAddress(data[2:], (op>>3)&7, op&7, s)
	if !ok {
		return "", 0, false
	}
	dstMode := (op >> 6) & 7
	dstReg := (op >> 9) & 7
	dst, n2, ok := effectiveAddress(data[2+n1:], dstMode, dstReg, s)
	if !ok {
		return "", 0, false
	}
	name := "move"
	if dstMode == 1 {
		name = "movea"
	}
	return fmt.Sprintf("%s%s %s,%s", name, sizeSuffix[s], src, dst), 2 + n1 + n2, true
}

// effectiveAddress formats one effective-address operand. ext holds the
// bytes following any extension words already consumed, size selects the
// width of immediate operands, and the returned count is the number of
// extension bytes the operand consumed.
func effectiveAddress(ext []byte, mode, reg, size uint16) (string, int, bool) {
	switch mode {
	case 0:
		return fmt.Sprintf("d%d", reg), 0, true
	case 1:
		return fmt.Sprintf("a%d", reg), 0, true
	case 2:
		return fmt.Sprintf("(a%d)", reg), 0, true
	case 3:
		return fmt.Sprintf("(a%d)+", reg), 0, true
	case 4:
		return fmt.Sprintf("-(a%d)", reg), 0, true
	case 5:
		if len(ext) < 2 {
			return "", 0, false
		}
		return fmt.Sprintf("%d(a%d)", int16(word(ext, 0)), reg), 2, true
	case 7:
		switch reg {
		case 0:
			if len(ext) < 2 {
				return "", 0, false
			}
			return fmt.Sprintf("$%x.w", word(ext, 0)), 2, true
		case 1:
			if len(ext) < 4 {
				return "", 0, false
			}
			return fmt.Sprintf("$%x.l", long(ext, 0)), 4, true
		case 2:
			if len(ext) < 2 {
				return "", 0, false
			}
			return fmt.Sprintf("%d(pc)", int16(word(ext, 0))), 2, true
		case 4:
			switch size {
			case 2:
				if len(ext) < 4 {
					return "", 0, false
				}
				return fmt.Sprintf("#$%x", long(ext, 0)), 4, true
			default:
				if len(ext) < 2 {
					return "", 0, false
				}
				if size == 0 {
					return fmt.Sprintf("#$%x", ext[1]), 2, true
				}
				return fmt.Sprintf("#$%x", word(ext, 0)), 2, true
			}
		}
	}
	// mode 6 (indexed) and the remaining mode-7 forms are not supported,
	// the caller falls back to dc.w
	return "", 0, false
}

func word(b []byte, i int) uint16 {
	return uint16(b[i])<<8 | uint16(b[i+1])
}

func long(b []byte, i int) uint32 {
	return uint32(b[i])<<24 | uint32(b[i+1])<<16 | uint32(b[i+2])<<8 | uint32(b[i+3])
}
