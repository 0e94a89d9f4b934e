// Package wav encodes and decodes mono PCM WAV files, generalized from the
// fixture generator's canonical RIFF/WAVE writer so both session persistence
// and synthetic fixtures share one codec (C8).
package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// EncodeInt16 writes samples (expected in [-1, 1]) as a 16-bit mono PCM WAV.
// Out-of-range samples are clamped, matching the teacher's fixture writer.
func EncodeInt16(w io.Writer, samples []float64, sampleRate int) error {
	buf := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf[i] = int16(s * 32767)
	}

	const bitsPerSample = 16
	const blockAlign = bitsPerSample / 8
	dataSize := len(buf) * blockAlign

	if err := writeHeader(w, sampleRate, blockAlign, bitsPerSample, formatPCM, dataSize); err != nil {
		return err
	}
	for _, v := range buf {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// EncodeFloat32 writes samples as a 32-bit IEEE float mono WAV, the session
// save-path's alternative format per the float-sample persistence option.
func EncodeFloat32(w io.Writer, samples []float32, sampleRate int) error {
	const bitsPerSample = 32
	const blockAlign = bitsPerSample / 8
	dataSize := len(samples) * blockAlign

	if err := writeHeader(w, sampleRate, blockAlign, bitsPerSample, formatFloat, dataSize); err != nil {
		return err
	}
	for _, v := range samples {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w io.Writer, sampleRate, blockAlign, bitsPerSample, format, dataSize int) error {
	riffSize := 36 + dataSize
	byteRate := sampleRate * blockAlign

	fields := []any{
		[]byte("RIFF"),
		uint32(riffSize),
		[]byte("WAVE"),
		[]byte("fmt "),
		uint32(16),
		uint16(format),
		uint16(1), // mono
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[]byte("data"),
		uint32(dataSize),
	}
	for _, f := range fields {
		if b, ok := f.([]byte); ok {
			if _, err := w.Write(b); err != nil {
				return err
			}
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Decoded holds a decoded WAV file's samples, normalized to float32 in
// [-1, 1] regardless of source bit depth/format, plus its sample rate.
type Decoded struct {
	Samples    []float32
	SampleRate int
}

// Decode reads a mono 16-bit PCM or 32-bit float WAV file.
func Decode(r io.Reader) (Decoded, error) {
	var riffID [4]byte
	if _, err := io.ReadFull(r, riffID[:]); err != nil {
		return Decoded{}, fmt.Errorf("wav: reading RIFF header: %w", err)
	}
	if string(riffID[:]) != "RIFF" {
		return Decoded{}, fmt.Errorf("wav: not a RIFF file")
	}
	var riffSize uint32
	if err := binary.Read(r, binary.LittleEndian, &riffSize); err != nil {
		return Decoded{}, err
	}
	var waveID [4]byte
	if _, err := io.ReadFull(r, waveID[:]); err != nil {
		return Decoded{}, err
	}
	if string(waveID[:]) != "WAVE" {
		return Decoded{}, fmt.Errorf("wav: not a WAVE file")
	}

	var sampleRate int
	var bitsPerSample, format uint16
	var foundFmt bool

	for {
		var chunkID [4]byte
		var chunkSize uint32
		if _, err := io.ReadFull(r, chunkID[:]); err != nil {
			if err == io.EOF {
				break
			}
			return Decoded{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return Decoded{}, err
		}

		switch string(chunkID[:]) {
		case "fmt ":
			var audioFormat, numChannels uint16
			var rate, byteRate uint32
			var blockAlign uint16
			if err := binary.Read(r, binary.LittleEndian, &audioFormat); err != nil {
				return Decoded{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &numChannels); err != nil {
				return Decoded{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &rate); err != nil {
				return Decoded{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &byteRate); err != nil {
				return Decoded{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &blockAlign); err != nil {
				return Decoded{}, err
			}
			if err := binary.Read(r, binary.LittleEndian, &bitsPerSample); err != nil {
				return Decoded{}, err
			}
			format = audioFormat
			sampleRate = int(rate)
			foundFmt = true
			if remaining := int64(chunkSize) - 16; remaining > 0 {
				if _, err := io.CopyN(io.Discard, r, remaining); err != nil {
					return Decoded{}, err
				}
			}

		case "data":
			if !foundFmt {
				return Decoded{}, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			samples, err := decodeData(r, int64(chunkSize), format, bitsPerSample)
			if err != nil {
				return Decoded{}, err
			}
			return Decoded{Samples: samples, SampleRate: sampleRate}, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkSize)); err != nil {
				return Decoded{}, err
			}
		}
	}
	return Decoded{}, fmt.Errorf("wav: no data chunk found")
}

func decodeData(r io.Reader, size int64, format, bitsPerSample uint16) ([]float32, error) {
	switch {
	case format == formatPCM && bitsPerSample == 16:
		n := int(size / 2)
		samples := make([]float32, n)
		for i := range samples {
			var v int16
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return nil, err
			}
			samples[i] = float32(v) / 32768.0
		}
		return samples, nil

	case format == formatFloat && bitsPerSample == 32:
		n := int(size / 4)
		samples := make([]float32, n)
		for i := range samples {
			if err := binary.Read(r, binary.LittleEndian, &samples[i]); err != nil {
				return nil, err
			}
		}
		return samples, nil

	default:
		return nil, fmt.Errorf("wav: unsupported format %d / %d-bit", format, bitsPerSample)
	}
}
