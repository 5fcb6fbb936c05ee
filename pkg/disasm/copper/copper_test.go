package copper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	testcases := []struct {
		name string
		data []byte
		text string
	}{
		{"move to named register", []byte{0x01, 0x80, 0x0f, 0x00}, "move #$0f00,color00"},
		{"move to unnamed register", []byte{0x01, 0xc0, 0x12, 0x34}, "move #$1234,$dff1c0"},
		{"wait", []byte{0x2b, 0x07, 0xff, 0xfe}, "wait vp=$2b,hp=$06"},
		{"skip", []byte{0x2b, 0x07, 0xff, 0xff}, "skip vp=$2b,hp=$06"},
		{"end of list", []byte{0xff, 0xff, 0xff, 0xfe}, "wait vp=$ff,hp=$fe ; end of copper list"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			instrs := Decode(tc.data, 0)
			assert.Equal(t, 1, len(instrs))
			assert.Equal(t, tc.text, instrs[0].Text)
			assert.Equal(t, 4, len(instrs[0].Bytes))
		})
	}
}

func TestDecodeList(t *testing.T) {
	data := []byte{
		0x01, 0x80, 0x00, 0x00, // move #$0000,color00
		0x4d, 0x07, 0xff, 0xfe, // wait vp=$4d
		0x01, 0x80, 0x0f, 0xff, // move #$0fff,color00
		0xff, 0xff, 0xff, 0xfe, // end of list
	}

	instrs := Decode(data, 0x10000)
	assert.Equal(t, 4, len(instrs))
	assert.Equal(t, uint32(0x10000), instrs[0].Address)
	assert.Equal(t, uint32(0x10004), instrs[1].Address)
	assert.Equal(t, uint32(0x1000c), instrs[3].Address)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	data := []byte{0x01, 0x80, 0x0f, 0x00, 0x2b}

	instrs := Decode(data, 0)
	assert.Equal(t, 1, len(instrs))
}
