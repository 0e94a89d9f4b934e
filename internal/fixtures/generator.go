// Package fixtures synthesizes WAV recordings of practice sessions —
// metronome click tracks, guitar-note onsets placed relative to the grid,
// and tempo ramps — for exercising the pipeline without a live microphone.
package fixtures

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rhythmcoach/engine/internal/wav"
)

// Config controls which fixtures are emitted.
type Config struct {
	OutputDir    string
	SampleRate   int
	Seed         int64
	BPMLadder    []float64
	SwingRatio   float64 // e.g., 0.6 means offbeat delayed to 60% of beat duration
	IncludeSwing bool
	IncludeRamp  bool
	RampStartBPM float64
	RampEndBPM   float64

	// IncludePractice renders a click-plus-guitar-note session with the
	// notes deliberately offset from the grid by DeviationsMs (cycled across
	// onsets), for exercising accuracy scoring end to end.
	IncludePractice bool
	PracticeBPM     float64
	DeviationsMs    []float64
}

// Manifest describes generated fixtures for tests/consumers.
type Manifest struct {
	SampleRate int               `json:"sample_rate"`
	Seed       int64             `json:"seed"`
	Fixtures   []ManifestFixture `json:"fixtures"`
}

type ManifestFixture struct {
	File        string  `json:"file"`
	Type        string  `json:"type"`
	BPM         float64 `json:"bpm,omitempty"`
	TargetBPM   float64 `json:"target_bpm,omitempty"`
	Beats       int     `json:"beats,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	SwingRatio  float64 `json:"swing_ratio,omitempty"`
}

// Generate writes WAV fixtures and a manifest.json into OutputDir.
func Generate(cfg Config) (*Manifest, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./testdata/audio"
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir output: %w", err)
	}

	manifest := &Manifest{SampleRate: cfg.SampleRate, Seed: cfg.Seed}

	// 1) BPM ladder click tracks
	for _, bpm := range cfg.BPMLadder {
		filename := fmt.Sprintf("click_%dbpm.wav", int(bpm))
		path := filepath.Join(cfg.OutputDir, filename)
		durationSec, err := renderClickTrack(path, cfg.SampleRate, bpm, 32 /*beats*/, 0)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", filename, err)
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Type:        "click",
			BPM:         bpm,
			Beats:       32,
			DurationSec: durationSec,
		})
	}

	// 2) Swing click
	if cfg.IncludeSwing {
		bpm := cfg.BPMLadder[len(cfg.BPMLadder)/2]
		filename := "swing_click.wav"
		path := filepath.Join(cfg.OutputDir, filename)
		durationSec, err := renderClickTrack(path, cfg.SampleRate, bpm, 32, cfg.SwingRatio)
		if err != nil {
			return nil, fmt.Errorf("render swing click: %w", err)
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Type:        "swing_click",
			BPM:         bpm,
			SwingRatio:  cfg.SwingRatio,
			Beats:       32,
			DurationSec: durationSec,
		})
	}

	// 3) Tempo ramp
	if cfg.IncludeRamp {
		filename := "tempo_ramp.wav"
		path := filepath.Join(cfg.OutputDir, filename)
		durationSec, err := renderTempoRamp(path, cfg.SampleRate, cfg.RampStartBPM, cfg.RampEndBPM, 64)
		if err != nil {
			return nil, fmt.Errorf("render tempo ramp: %w", err)
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Type:        "tempo_ramp",
			BPM:         cfg.RampStartBPM,
			TargetBPM:   cfg.RampEndBPM,
			Beats:       64,
			DurationSec: durationSec,
		})
	}

	// 4) Click-plus-guitar-note practice session
	if cfg.IncludePractice {
		bpm := cfg.PracticeBPM
		if bpm == 0 {
			bpm = 96
		}
		filename := "practice_session.wav"
		path := filepath.Join(cfg.OutputDir, filename)
		durationSec, err := renderPracticeSession(path, cfg.SampleRate, bpm, 32, cfg.DeviationsMs)
		if err != nil {
			return nil, fmt.Errorf("render practice session: %w", err)
		}
		manifest.Fixtures = append(manifest.Fixtures, ManifestFixture{
			File:        filename,
			Type:        "practice_session",
			BPM:         bpm,
			Beats:       32,
			DurationSec: durationSec,
		})
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return manifest, nil
}

const clickDurationSec = 0.01 // 10ms click, sharp enough for the onset detector's energy gate

// addClick stamps a short exponential-decay click, matching the spectral
// centroid profile the classifier learns during metronome calibration.
func addClick(data []float64, sampleRate int, atSample int) {
	clickLen := int(clickDurationSec * float64(sampleRate))
	for j := 0; j < clickLen && atSample+j < len(data) && atSample+j >= 0; j++ {
		data[atSample+j] += math.Exp(-4 * float64(j) / float64(clickLen))
	}
}

const noteDurationSec = 0.08

// addGuitarNote stamps a longer, harmonically-rich decay — a fundamental plus
// two decaying overtones — distinguishing it from the click's flat spectrum
// in the classifier's cosine-similarity comparison.
func addGuitarNote(data []float64, sampleRate int, atSample int, freq float64) {
	noteLen := int(noteDurationSec * float64(sampleRate))
	for j := 0; j < noteLen && atSample+j < len(data); j++ {
		if atSample+j < 0 {
			continue
		}
		t := float64(j) / float64(sampleRate)
		envelope := math.Exp(-8 * t)
		sample := math.Sin(2*math.Pi*freq*t) +
			0.5*math.Sin(2*math.Pi*2*freq*t) +
			0.25*math.Sin(2*math.Pi*3*freq*t)
		data[atSample+j] += 0.4 * envelope * sample
	}
}

// renderClickTrack writes a mono WAV with short clicks per beat.
func renderClickTrack(path string, sampleRate int, bpm float64, beats int, swingRatio float64) (float64, error) {
	secondsPerBeat := 60.0 / bpm
	totalDuration := secondsPerBeat * float64(beats)
	samples := int(totalDuration * float64(sampleRate))
	data := make([]float64, samples)

	for i := 0; i < beats; i++ {
		offsetSec := secondsPerBeat * float64(i)
		// Swing applies to off-beats (odd beats)
		if swingRatio > 0 && i%2 == 1 {
			offsetSec = secondsPerBeat*float64(i-1) + secondsPerBeat*swingRatio
		}
		addClick(data, sampleRate, int(offsetSec*float64(sampleRate)))
	}

	return totalDuration, writeWAV(path, data, sampleRate)
}

// renderTempoRamp writes clicks whose interval ramps linearly from start to end BPM.
func renderTempoRamp(path string, sampleRate int, startBPM, endBPM float64, beats int) (float64, error) {
	var data []float64
	currentTime := 0.0

	for i := 0; i < beats; i++ {
		progress := float64(i) / float64(beats-1)
		bpm := startBPM + (endBPM-startBPM)*progress
		secondsPerBeat := 60.0 / bpm
		offset := int(currentTime * float64(sampleRate))

		clickLen := int(clickDurationSec * float64(sampleRate))
		if need := offset + clickLen; need > len(data) {
			data = append(data, make([]float64, need-len(data))...)
		}
		addClick(data, sampleRate, offset)

		currentTime += secondsPerBeat
	}

	return currentTime, writeWAV(path, data, sampleRate)
}

// renderPracticeSession writes clicks on every beat plus a guitar note near
// each beat, offset by deviationsMs[i % len(deviationsMs)] milliseconds — the
// synthetic analogue of a player drifting ahead of or behind the metronome.
func renderPracticeSession(path string, sampleRate int, bpm float64, beats int, deviationsMs []float64) (float64, error) {
	if len(deviationsMs) == 0 {
		deviationsMs = []float64{0}
	}
	secondsPerBeat := 60.0 / bpm
	totalDuration := secondsPerBeat*float64(beats) + noteDurationSec
	samples := int(totalDuration * float64(sampleRate))
	data := make([]float64, samples)

	noteFreq := 196.0 // open G string
	for i := 0; i < beats; i++ {
		beatSample := int(secondsPerBeat * float64(i) * float64(sampleRate))
		addClick(data, sampleRate, beatSample)

		deviationSec := deviationsMs[i%len(deviationsMs)] / 1000.0
		noteSample := beatSample + int(deviationSec*float64(sampleRate))
		addGuitarNote(data, sampleRate, noteSample, noteFreq)
	}

	return totalDuration, writeWAV(path, data, sampleRate)
}

// writeWAV writes mono 16-bit PCM WAV via the shared encoder.
func writeWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return wav.EncodeInt16(f, samples, sampleRate)
}
