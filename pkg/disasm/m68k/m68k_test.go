package m68k

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSingle(t *testing.T) {
	testcases := []struct {
		name string
		data []byte
		base uint32
		text string
		size int
	}{
		{"nop", []byte{0x4e, 0x71}, 0, "nop", 2},
		{"rts", []byte{0x4e, 0x75}, 0, "rts", 2},
		{"trap", []byte{0x4e, 0x40}, 0, "trap #0", 2},
		{"stop", []byte{0x4e, 0x72, 0x27, 0x00}, 0, "stop #$2700", 4},
		{"moveq", []byte{0x70, 0x01}, 0, "moveq #1,d0", 2},
		{"moveq negative", []byte{0x72, 0xff}, 0, "moveq #-1,d1", 2},
		{"move.w register to indirect", []byte{0x32, 0x80}, 0, "move.w d0,(a1)", 2},
		{"movea.l", []byte{0x22, 0x48}, 0, "movea.l a0,a1", 2},
		{"move.l immediate", []byte{0x22, 0x3c, 0x12, 0x34, 0x56, 0x78}, 0, "move.l #$12345678,d1", 6},
		{"move.l abs to abs", []byte{0x23, 0xf9, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x08}, 0, "move.l $4.l,$8.l", 10},
		{"lea custom chips", []byte{0x4d, 0xf9, 0x00, 0xdf, 0xf0, 0x00}, 0, "lea $dff000.l,a6", 6},
		{"jsr absolute word", []byte{0x4e, 0xb8, 0x10, 0x00}, 0, "jsr $1000.w", 4},
		{"bra word displacement", []byte{0x60, 0x00, 0x00, 0x10}, 0, "bra $12", 4},
		{"beq short", []byte{0x67, 0x04}, 0x100, "beq $106", 2},
		{"dbra backwards", []byte{0x51, 0xc8, 0xff, 0xfc}, 0x10, "dbra d0,$e", 4},
		{"addq.w", []byte{0x52, 0x40}, 0, "addq.w #1,d0", 2},
		{"subq.l with q=8", []byte{0x51, 0x88}, 0, "subq.l #8,a0", 2},
		{"tst.w", []byte{0x4a, 0x40}, 0, "tst.w d0", 2},
		{"clr.l", []byte{0x42, 0x81}, 0, "clr.l d1", 2},
		{"cmp.l", []byte{0xb0, 0x81}, 0, "cmp.l d1,d0", 2},
		{"unknown word", []byte{0xff, 0xff}, 0, "dc.w $ffff", 2},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			instrs := Decode(tc.data, tc.base)
			assert.Equal(t, 1, len(instrs))
			assert.Equal(t, tc.text, instrs[0].Text)
			assert.Equal(t, tc.size, len(instrs[0].Bytes))
			assert.Equal(t, tc.base, instrs[0].Address)
		})
	}
}

func TestDecodeStream(t *testing.T) {
	// moveq #0,d0; nop; rts
	data := []byte{0x70, 0x00, 0x4e, 0x71, 0x4e, 0x75}

	instrs := Decode(data, 0x1000)
	assert.Equal(t, 3, len(instrs))
	assert.Equal(t, uint32(0x1000), instrs[0].Address)
	assert.Equal(t, uint32(0x1002), instrs[1].Address)
	assert.Equal(t, uint32(0x1004), instrs[2].Address)
	assert.Equal(t, "rts", instrs[2].Text)
}

func TestDecodeNeverStalls(t *testing.T) {
	// data words interleaved with code must still decode one entry each
	data := []byte{0xff, 0xff, 0x4e, 0x71, 0xfa, 0xce}

	instrs := Decode(data, 0)
	assert.Equal(t, 3, len(instrs))
	assert.Equal(t, "dc.w $ffff", instrs[0].Text)
	assert.Equal(t, "nop", instrs[1].Text)
	assert.Equal(t, "dc.w $face", instrs[2].Text)
}

func TestDecodeTruncatedExtension(t *testing.T) {
	// a move.l immediate opword with its extension words cut off decodes
	// as data rather than reading out of bounds
	data := []byte{0x22, 0x3c, 0x12}

	instrs := Decode(data, 0)
	assert.Equal(t, 1, len(instrs))
	assert.Equal(t, "dc.w $223c", instrs[0].Text)
}
