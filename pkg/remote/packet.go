package remote

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
)

// packet framing of the GDB remote serial protocol: `$<payload>#<checksum>`
// where the checksum is the modulo-256 sum of the payload bytes, written as
// two lowercase hex digits. Every packet is answered with `+` (ack) or `-`
// (request retransmission).

const (
	packetStart = '$'
	packetEnd   = '#'
	packetAck   = '+'
	packetNak   = '-'
)

func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

func frame(payload string) []byte {
	return []byte(fmt.Sprintf("%c%s%c%02x", packetStart, payload, packetEnd, checksum([]byte(payload))))
}

// readPacket reads one framed packet and verifies its checksum, skipping
// any stray ack bytes before the packet start.
func readPacket(r *bufio.Reader) (string, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == packetStart {
			break
		}
		if b == packetAck || b == packetNak {
			continue
		}
		// anything else between packets is protocol noise, skip it
	}

	var payload []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == packetEnd {
			break
		}
		payload = append(payload, b)
	}

	var sum [2]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return "", err
	}

	var want byte
	if _, err := fmt.Sscanf(string(sum[:]), "%02x", &want); err != nil {
		return "", fmt.Errorf("malformed checksum %q: %v", sum, err)
	}
	if got := checksum(payload); got != want {
		return "", fmt.Errorf("checksum mismatch: got %02x, want %02x", got, want)
	}
	return string(payload), nil
}

// isErrorReply reports whether a reply is the protocol's `Exx` error form.
func isErrorReply(reply string) bool {
	return len(reply) == 3 && reply[0] == 'E'
}

func decodeHex(reply string) ([]byte, error) {
	return hex.DecodeString(reply)
}
