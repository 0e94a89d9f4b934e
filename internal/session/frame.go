package session

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	tagControl byte = 0x00
	tagAudio   byte = 0x01

	// maxFrameBytes bounds a single inbound frame so a malformed length
	// prefix cannot make the session allocate unbounded memory.
	maxFrameBytes = 64 << 20
)

// readFrame reads one length-prefixed inbound frame: a 4-byte big-endian
// length followed by that many bytes, the first of which is the type tag.
func readFrame(r io.Reader) (tag byte, payload []byte, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return 0, nil, fmt.Errorf("session: empty frame")
	}
	if n > maxFrameBytes {
		return 0, nil, fmt.Errorf("session: frame of %d bytes exceeds limit", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}

// writeFrame writes one length-prefixed outbound UTF-8 text frame (no type
// tag — every outbound frame is a JSON event, per §6).
func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// decodeAudioPayload converts a little-endian float32 byte payload to
// samples. Misaligned payloads (length not a multiple of 4) must be caught
// by the caller before calling this — §7(a)'s silent-drop rule.
func decodeAudioPayload(payload []byte) []float32 {
	n := len(payload) / 4
	samples := make([]float32, n)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(payload[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
