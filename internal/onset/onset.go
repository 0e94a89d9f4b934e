// Package onset implements streaming and offline onset detection on a
// monophonic audio signal (C1, and the offline detector used by C3).
package onset

import "math"

const (
	frameSize           = 512
	hopSize             = 256
	alphaSmooth         = 0.3
	alphaRise           = 0.01
	alphaFall           = 0.05
	floorThreshold      = 0.001
	thresholdMultiplier = 1.5
	hysteresisRatio     = 0.4
	minOnsetIntervalS   = 0.050
)

// RealtimeDetector is the causal, streaming energy-based onset detector.
// Frames are 512 samples with a 256-sample hop; a chunk boundary never
// resets the frame counter — partial frames carry over between ProcessChunk
// calls, so splitting one chunk into many arbitrary sub-chunks yields the
// same onset sequence as feeding it whole.
type RealtimeDetector struct {
	sampleRate int

	buf     []float64
	bufBase int64 // absolute sample index of buf[0]

	smoothedRMS    float64
	meanRMS        float64
	aboveThreshold bool

	lastOnsetS   float64
	hasLastOnset bool
}

// NewRealtimeDetector constructs a detector for the given sample rate.
func NewRealtimeDetector(sampleRate int) *RealtimeDetector {
	return &RealtimeDetector{sampleRate: sampleRate}
}

// Reset restores the initial state, preserving the configured sample rate.
func (d *RealtimeDetector) Reset() {
	*d = RealtimeDetector{sampleRate: d.sampleRate}
}

// ProcessChunk feeds new samples and returns any onset times (seconds from
// stream start) discovered by frames completed during this call. Non-finite
// samples are tolerated and treated as zero.
func (d *RealtimeDetector) ProcessChunk(samples []float32) []float64 {
	for _, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		d.buf = append(d.buf, v)
	}

	var onsets []float64
	for len(d.buf) >= frameSize {
		frame := d.buf[:frameSize]
		rms := rootMeanSquare(frame)

		d.smoothedRMS = alphaSmooth*rms + (1-alphaSmooth)*d.smoothedRMS
		if rms > d.meanRMS {
			d.meanRMS = alphaRise*rms + (1-alphaRise)*d.meanRMS
		} else {
			d.meanRMS = alphaFall*rms + (1-alphaFall)*d.meanRMS
		}

		threshold := math.Max(floorThreshold, d.meanRMS*thresholdMultiplier)
		frameStartS := float64(d.bufBase) / float64(d.sampleRate)

		switch {
		case !d.aboveThreshold && d.smoothedRMS > threshold:
			if !d.hasLastOnset || frameStartS-d.lastOnsetS >= minOnsetIntervalS {
				onsets = append(onsets, frameStartS)
				d.lastOnsetS = frameStartS
				d.hasLastOnset = true
			}
			d.aboveThreshold = true
		case d.aboveThreshold && d.smoothedRMS < hysteresisRatio*threshold:
			d.aboveThreshold = false
		}

		d.buf = d.buf[hopSize:]
		d.bufBase += hopSize
	}

	return onsets
}

func rootMeanSquare(frame []float64) float64 {
	var sumSquares float64
	for _, v := range frame {
		sumSquares += v * v
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}
