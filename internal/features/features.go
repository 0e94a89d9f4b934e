// Package features extracts per-onset-window spectral features (C2): a
// 13-coefficient MFCC-like vector, spectral centroid, and an energy-decay
// ratio, used by the calibration profiler and the online classifier.
package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// WindowSize is the fixed analysis window taken at an onset's sample index.
	WindowSize = 2048

	subFrameSize = 512
	subHopSize   = 256
	numMelBands  = 26
	numMFCC      = 13

	silenceThreshold = 1e-6
)

// Features holds the per-window spectral summary (§4.2).
type Features struct {
	MFCC     [numMFCC]float64
	Centroid float64 // Hz
	Decay    float64 // energy-decay ratio
}

// Extractor caches the FFT plan and mel filterbank across windows.
type Extractor struct {
	sampleRate int
	fft        *fourier.FFT
	melFilters [][]float64 // numMelBands x (subFrameSize/2+1)
	hann       []float64
}

// NewExtractor builds an extractor for the given sample rate.
func NewExtractor(sampleRate int) *Extractor {
	e := &Extractor{
		sampleRate: sampleRate,
		fft:        fourier.NewFFT(subFrameSize),
		hann:       hannWindow(subFrameSize),
	}
	e.melFilters = buildMelFilterbank(numMelBands, subFrameSize, sampleRate)
	return e
}

// Extract computes features for the 2048-sample window starting at startIdx
// within buffer. ok is false if the window would overrun the buffer, startIdx
// is negative, or the window is silent (max|window| < 1e-6).
func (e *Extractor) Extract(buffer []float32, startIdx int) (Features, bool) {
	if startIdx < 0 || startIdx+WindowSize > len(buffer) {
		return Features{}, false
	}
	window := buffer[startIdx : startIdx+WindowSize]

	var peak float64
	for _, s := range window {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	if peak < silenceThreshold {
		return Features{}, false
	}

	mfccSum := make([]float64, numMFCC)
	var centroidSum float64
	frames := 0

	for start := 0; start+subFrameSize <= len(window); start += subHopSize {
		frame := window[start : start+subFrameSize]
		mfcc, centroid := e.analyzeFrame(frame)
		for i := range mfccSum {
			mfccSum[i] += mfcc[i]
		}
		centroidSum += centroid
		frames++
	}
	if frames == 0 {
		// Window shorter than a single sub-frame: analyze it directly,
		// matching the "FFT size min(window_len, 2048)" fallback.
		mfcc, centroid := e.analyzeFrame(window)
		mfccSum = mfcc[:]
		centroidSum = centroid
		frames = 1
	}

	var f Features
	for i := range f.MFCC {
		f.MFCC[i] = mfccSum[i] / float64(frames)
	}
	f.Centroid = centroidSum / float64(frames)
	f.Decay = energyDecayRatio(window)

	return f, true
}

func (e *Extractor) analyzeFrame(frame []float32) ([numMFCC]float64, float64) {
	n := len(frame)
	windowed := make([]float64, subFrameSize)
	hann := e.hann
	if n != subFrameSize {
		hann = hannWindow(n)
	}
	for i := 0; i < n && i < subFrameSize; i++ {
		windowed[i] = float64(frame[i]) * hann[i]
	}

	coeffs := e.fft.Coefficients(nil, windowed)

	nyquistBins := subFrameSize/2 + 1
	power := make([]float64, nyquistBins)
	for i := 0; i < nyquistBins && i < len(coeffs); i++ {
		c := coeffs[i]
		power[i] = real(c)*real(c) + imag(c)*imag(c)
	}

	var centroid float64
	var magSum float64
	for i, p := range power {
		mag := math.Sqrt(p)
		freq := float64(i) * float64(e.sampleRate) / float64(subFrameSize)
		centroid += freq * mag
		magSum += mag
	}
	if magSum > 1e-12 {
		centroid /= magSum
	}

	melEnergies := make([]float64, numMelBands)
	for b, filter := range e.melFilters {
		var sum float64
		for i, p := range power {
			if i < len(filter) {
				sum += p * filter[i]
			}
		}
		if sum < 1e-12 {
			sum = 1e-12
		}
		melEnergies[b] = math.Log(sum)
	}

	var mfcc [numMFCC]float64
	for k := 0; k < numMFCC; k++ {
		var sum float64
		for n := 0; n < numMelBands; n++ {
			sum += melEnergies[n] * math.Cos(math.Pi/float64(numMelBands)*(float64(n)+0.5)*float64(k))
		}
		mfcc[k] = sum
	}

	return mfcc, centroid
}

// energyDecayRatio compares the second half's energy to the first half's.
func energyDecayRatio(window []float32) float64 {
	half := len(window) / 2
	var firstEnergy, secondEnergy float64
	for i := 0; i < half; i++ {
		v := float64(window[i])
		firstEnergy += v * v
	}
	for i := half; i < len(window); i++ {
		v := float64(window[i])
		secondEnergy += v * v
	}
	if firstEnergy < 1e-10 {
		return 1.0
	}
	return secondEnergy / firstEnergy
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// buildMelFilterbank constructs a triangular mel filterbank over the
// magnitude-spectrum bins of an fftSize-point real FFT.
func buildMelFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	nyquistBins := fftSize/2 + 1
	minMel := hzToMel(0)
	maxMel := hzToMel(float64(sampleRate) / 2)

	points := make([]float64, numFilters+2)
	for i := range points {
		mel := minMel + (maxMel-minMel)*float64(i)/float64(numFilters+1)
		points[i] = melToHz(mel)
	}

	binOf := func(hz float64) int {
		bin := int(math.Round(hz / (float64(sampleRate) / float64(fftSize))))
		if bin < 0 {
			bin = 0
		}
		if bin > nyquistBins-1 {
			bin = nyquistBins - 1
		}
		return bin
	}

	filters := make([][]float64, numFilters)
	for i := 0; i < numFilters; i++ {
		left := binOf(points[i])
		center := binOf(points[i+1])
		right := binOf(points[i+2])

		filter := make([]float64, nyquistBins)
		for b := left; b < center; b++ {
			if center > left {
				filter[b] = float64(b-left) / float64(center-left)
			}
		}
		for b := center; b < right; b++ {
			if right > center {
				filter[b] = float64(right-b) / float64(right-center)
			}
		}
		filters[i] = filter
	}
	return filters
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}
