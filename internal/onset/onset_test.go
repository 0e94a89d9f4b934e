package onset

import "testing"

func clickTrain(sampleRate int, bpm float64, beats int) []float32 {
	secondsPerBeat := 60.0 / bpm
	totalSamples := int(secondsPerBeat * float64(beats) * float64(sampleRate))
	samples := make([]float32, totalSamples)
	clickLen := int(0.005 * float64(sampleRate))
	for b := 0; b < beats; b++ {
		start := int(float64(b) * secondsPerBeat * float64(sampleRate))
		for j := 0; j < clickLen && start+j < len(samples); j++ {
			samples[start+j] = 1.0
		}
	}
	return samples
}

func TestRealtimeDetectorFindsClicks(t *testing.T) {
	sr := 44100
	d := NewRealtimeDetector(sr)
	samples := clickTrain(sr, 120, 8)

	onsets := d.ProcessChunk(samples)
	if len(onsets) < 4 {
		t.Fatalf("expected at least 4 onsets, got %d: %v", len(onsets), onsets)
	}
}

func TestRealtimeDetectorSplitChunksMatchWhole(t *testing.T) {
	sr := 44100
	samples := clickTrain(sr, 100, 10)

	whole := NewRealtimeDetector(sr)
	wholeOnsets := whole.ProcessChunk(samples)

	split := NewRealtimeDetector(sr)
	var splitOnsets []float64
	// Arbitrary, uneven sub-chunk boundaries.
	boundaries := []int{0, 137, 500, 501, 4096, 9000}
	boundaries = append(boundaries, len(samples))
	for i := 0; i < len(boundaries)-1; i++ {
		if boundaries[i] >= len(samples) {
			break
		}
		end := boundaries[i+1]
		if end > len(samples) {
			end = len(samples)
		}
		splitOnsets = append(splitOnsets, split.ProcessChunk(samples[boundaries[i]:end])...)
	}

	if len(splitOnsets) != len(wholeOnsets) {
		t.Fatalf("split produced %d onsets, whole produced %d", len(splitOnsets), len(wholeOnsets))
	}
	for i := range wholeOnsets {
		if math_abs(splitOnsets[i]-wholeOnsets[i]) > 1e-9 {
			t.Fatalf("onset %d differs: split=%v whole=%v", i, splitOnsets[i], wholeOnsets[i])
		}
	}
}

func TestRealtimeDetectorTreatsNonFiniteAsZero(t *testing.T) {
	d := NewRealtimeDetector(44100)
	bad := make([]float32, 2048)
	for i := range bad {
		if i%100 == 0 {
			bad[i] = float32(nan())
		}
	}
	// Must not panic and must not treat NaN noise as a sustained onset train.
	onsets := d.ProcessChunk(bad)
	if len(onsets) > 1 {
		t.Fatalf("expected at most one spurious onset from NaN noise, got %d", len(onsets))
	}
}

func TestRealtimeDetectorReset(t *testing.T) {
	d := NewRealtimeDetector(44100)
	d.ProcessChunk(clickTrain(44100, 120, 4))
	d.Reset()
	if d.hasLastOnset || len(d.buf) != 0 || d.bufBase != 0 {
		t.Fatalf("reset did not restore initial state")
	}
}

func TestOfflineDetectShortRecording(t *testing.T) {
	sr := 44100
	samples := clickTrain(sr, 120, 6) // ~3 seconds
	onsets := Detect(samples, sr)
	if len(onsets) < 3 {
		t.Fatalf("expected at least 3 onsets in short recording, got %d", len(onsets))
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func math_abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
