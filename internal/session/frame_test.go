package session

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := append([]byte{tagControl}, []byte(`{"type":"stop"}`)...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)

	tag, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if tag != tagControl {
		t.Fatalf("expected control tag, got %v", tag)
	}
	if string(payload) != `{"type":"stop"}` {
		t.Fatalf("unexpected payload: %s", payload)
	}
}

func TestWriteFrameThenReadAudio(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte(`{"type":"started"}`)); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	var lenBuf [4]byte
	if _, err := buf.Read(lenBuf[:]); err != nil {
		t.Fatalf("read length: %v", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if int(n) != buf.Len() {
		t.Fatalf("expected length prefix %d to match remaining %d bytes", n, buf.Len())
	}
}

func TestDecodeAudioPayload(t *testing.T) {
	samples := []float32{0, 0.5, -0.25, 1.0}
	payload := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(s))
	}

	got := decodeAudioPayload(payload)
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i, want := range samples {
		if got[i] != want {
			t.Fatalf("sample %d: want %v got %v", i, want, got[i])
		}
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(maxFrameBytes)+1)
	buf.Write(lenBuf[:])

	if _, _, err := readFrame(&buf); err == nil {
		t.Fatalf("expected error for oversized frame length")
	}
}
