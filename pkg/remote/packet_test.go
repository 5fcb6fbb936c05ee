package remote

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, byte(0x00), checksum(nil))
	assert.Equal(t, byte(0x9a), checksum([]byte("OK")))
	// sums modulo 256
	assert.Equal(t, byte(0x5e), checksum([]byte("m100,4")))
}

func TestFrame(t *testing.T) {
	assert.Equal(t, "$OK#9a", string(frame("OK")))
	assert.Equal(t, "$m100,4#5e", string(frame("m100,4")))
	assert.Equal(t, "$#00", string(frame("")))
}

func TestReadPacket(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("$OK#9a"))
	payload, err := readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, "OK", payload)
}

func TestReadPacketSkipsAcksAndNoise(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("+-x$OK#9a"))
	payload, err := readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, "OK", payload)
}

func TestReadPacketChecksumMismatch(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("$OK#00"))
	_, err := readPacket(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestReadPacketTruncated(t *testing.T) {
	for _, input := range []string{"", "$OK", "$OK#9"} {
		r := bufio.NewReader(strings.NewReader(input))
		_, err := readPacket(r)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIsErrorReply(t *testing.T) {
	assert.True(t, isErrorReply("E01"))
	assert.True(t, isErrorReply("Eff"))
	assert.False(t, isErrorReply("OK"))
	assert.False(t, isErrorReply("E"))
	assert.False(t, isErrorReply("E0123"))
}

func TestStopReplyPC(t *testing.T) {
	pc, ok := stopReplyPC("T05pc:00c00276;thread:1;")
	assert.True(t, ok)
	assert.Equal(t, uint32(0xc00276), pc)

	pc, ok = stopReplyPC("T05thread:1;pc:1000;")
	assert.True(t, ok)
	assert.Equal(t, uint32(0x1000), pc)

	_, ok = stopReplyPC("S05")
	assert.False(t, ok)

	_, ok = stopReplyPC("T05thread:1;")
	assert.False(t, ok)

	_, ok = stopReplyPC("")
	assert.False(t, ok)
}
