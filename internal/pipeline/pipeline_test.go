package pipeline

import (
	"testing"

	"github.com/rhythmcoach/engine/internal/grid"
)

// burstsAt renders a unit-amplitude 5ms pulse at each given time, inside a
// buffer long enough to hold the last pulse plus a trailing second.
func burstsAt(sampleRate int, times []float64) []float32 {
	last := 0.0
	for _, t := range times {
		if t > last {
			last = t
		}
	}
	total := int((last + 1.0) * float64(sampleRate))
	samples := make([]float32, total)
	pulseLen := int(0.005 * float64(sampleRate))
	for _, t := range times {
		start := int(t * float64(sampleRate))
		for j := 0; j < pulseLen && start+j < len(samples); j++ {
			samples[start+j] = 1.0
		}
	}
	return samples
}

func clickTimes(bpm float64, beats int) []float64 {
	period := 60.0 / bpm
	times := make([]float64, beats)
	for i := range times {
		times[i] = float64(i) * period
	}
	return times
}

func TestPipelinePureMetronomeYieldsNoNotesError(t *testing.T) {
	sr := 44100
	p := New(Config{SampleRate: sr})

	samples := burstsAt(sr, clickTimes(120, 16))
	p.ProcessChunk(samples)

	report := p.Stop()
	if report.Error != "No guitar notes detected" {
		t.Fatalf("expected 'No guitar notes detected', got report: %+v", report)
	}
}

func TestPipelineNeverLockedYieldsError(t *testing.T) {
	sr := 44100
	p := New(Config{SampleRate: sr})

	// Only 3 periodic onsets: never reaches the 4-onset lock threshold.
	samples := burstsAt(sr, clickTimes(120, 3))
	p.ProcessChunk(samples)

	report := p.Stop()
	if report.Error == "" {
		t.Fatalf("expected an error report when metronome never locks, got %+v", report)
	}
}

func TestPipelineEmptyBufferYieldsError(t *testing.T) {
	p := New(Config{SampleRate: 44100})
	report := p.Stop()
	if report.Error != "No audio recorded" {
		t.Fatalf("expected 'No audio recorded', got %+v", report)
	}
}

func TestPipelineOffBeatNotesScoreHighAccuracy(t *testing.T) {
	sr := 44100
	p := New(Config{SampleRate: sr, Resolution: grid.Eighth})

	bpm := 120.0
	period := 60.0 / bpm
	clicks := clickTimes(bpm, 16)

	var times []float64
	times = append(times, clicks...)
	// Only add off-beat notes from beat 6 onward, after the first few
	// clean clicks have let the metronome lock onto the beat period rather
	// than onto the eighth-note subdivision — unlocked-phase periodicity
	// search has no way yet to tell a click onset from a note onset.
	for _, c := range clicks[6:] {
		// Exactly on the eighth-note subdivision between beats.
		times = append(times, c+period/2)
	}
	sortFloats(times)

	p.ProcessChunk(burstsAt(sr, times))
	report := p.Stop()

	if report.Error != "" {
		t.Fatalf("unexpected error: %v", report.Error)
	}
	if report.Stats == nil {
		t.Fatalf("expected note stats")
	}
	if report.Stats.OnTimePercent < 90 {
		t.Fatalf("expected high on-time percentage for grid-aligned notes, got %v", report.Stats.OnTimePercent)
	}
}

func TestPipelineDriftReflectedInMetronomeStats(t *testing.T) {
	sr := 44100

	p := New(Config{SampleRate: sr})
	var times []float64
	interval := 0.5
	cur := 0.0
	for i := 0; i < 40; i++ {
		times = append(times, cur)
		interval += 0.0008 // drift upward each beat
		cur += interval
	}
	// Need at least one note, or Stop() reports "No guitar notes detected".
	times = append(times, cur+0.15)

	p.ProcessChunk(burstsAt(sr, times))
	report := p.Stop()

	if report.Error != "" {
		t.Fatalf("unexpected error: %v", report.Error)
	}
	if report.MetronomeStats == nil || report.MetronomeStats.DriftMsPerBeat == nil {
		t.Fatalf("expected a drift estimate with 40 tracked clicks, got %+v", report.MetronomeStats)
	}
	if *report.MetronomeStats.DriftMsPerBeat <= 0 {
		t.Fatalf("expected positive drift for a widening interval, got %v", *report.MetronomeStats.DriftMsPerBeat)
	}
}

func TestPipelineMisalignedChunkProducesNoPanic(t *testing.T) {
	p := New(Config{SampleRate: 44100})
	// An odd-length, non-frame-aligned chunk should never panic the detector.
	odd := make([]float32, 37)
	p.ProcessChunk(odd)
}

func sortFloats(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
