package wav

import (
	"bytes"
	"math"
	"testing"
)

func TestEncodeInt16RoundTrip(t *testing.T) {
	sampleRate := 44100
	samples := []float64{0, 0.5, -0.5, 1, -1, 0.25}

	var buf bytes.Buffer
	if err := EncodeInt16(&buf, samples, sampleRate); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SampleRate != sampleRate {
		t.Fatalf("expected sample rate %d, got %d", sampleRate, decoded.SampleRate)
	}
	if len(decoded.Samples) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded.Samples))
	}
	for i, want := range samples {
		got := float64(decoded.Samples[i])
		if math.Abs(got-want) > 0.001 {
			t.Fatalf("sample %d: want %v got %v", i, want, got)
		}
	}
}

func TestEncodeInt16ClampsOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeInt16(&buf, []float64{5, -5}, 44100); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Samples[0] < 0.99 || decoded.Samples[1] > -0.99 {
		t.Fatalf("expected clamped samples near +-1, got %v", decoded.Samples)
	}
}

func TestEncodeFloat32RoundTrip(t *testing.T) {
	samples := []float32{0, 0.123456, -0.987654, 1.0}

	var buf bytes.Buffer
	if err := EncodeFloat32(&buf, samples, 48000); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SampleRate != 48000 {
		t.Fatalf("expected sample rate 48000, got %d", decoded.SampleRate)
	}
	for i, want := range samples {
		if math.Abs(float64(decoded.Samples[i]-want)) > 1e-6 {
			t.Fatalf("sample %d: want %v got %v", i, want, decoded.Samples[i])
		}
	}
}

func TestDecodeRejectsNonRIFF(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatalf("expected error decoding non-RIFF data")
	}
}

func TestHeaderHasCanonicalFields(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeInt16(&buf, []float64{0, 0, 0}, 22050); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("missing canonical RIFF/WAVE markers")
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		t.Fatalf("missing canonical fmt/data chunk markers")
	}
}
