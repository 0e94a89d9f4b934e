package onset

import "math"

const (
	offlineFrameSize  = 1024
	offlineHopSize    = 512
	offlineDebounceS  = 0.100
	offlinePeakFactor = 1.3
)

// Detect runs a high-quality, non-causal onset pass over a complete
// recording, used by the calibration profiler (C3) where a full buffer is
// available up front and there is no need for streaming causality. Spec.md
// §4.2 specifies only the interface (hop 512, no backtrack, seconds output)
// and leaves the exact algorithm to the implementation; this one follows the
// dynamic-threshold peak-picking idiom from the pack's spectral-flux BPM
// detector (mean + 1.5*stddev threshold, peak-over-predecessor gate, a
// minimum re-trigger gap) applied to frame RMS rather than spectral flux,
// since onset timing here only needs energy, not pitched-note separation.
func Detect(samples []float32, sampleRate int) []float64 {
	if len(samples) < offlineFrameSize {
		return nil
	}

	frames := (len(samples)-offlineFrameSize)/offlineHopSize + 1
	energies := make([]float64, frames)
	for i := 0; i < frames; i++ {
		start := i * offlineHopSize
		var sum float64
		for j := 0; j < offlineFrameSize; j++ {
			v := float64(samples[start+j])
			sum += v * v
		}
		energies[i] = math.Sqrt(sum / float64(offlineFrameSize))
	}

	mean, stddev := meanStddev(energies)
	threshold := mean + 1.5*stddev

	var onsets []float64
	lastOnsetS := math.Inf(-1)
	for i := 1; i < len(energies); i++ {
		if energies[i] <= threshold {
			continue
		}
		if energies[i] <= energies[i-1]*offlinePeakFactor {
			continue
		}
		onsetS := float64(i*offlineHopSize) / float64(sampleRate)
		if onsetS-lastOnsetS < offlineDebounceS {
			continue
		}
		onsets = append(onsets, onsetS)
		lastOnsetS = onsetS
	}

	return onsets
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(len(values)))
	return mean, stddev
}
