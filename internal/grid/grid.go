// Package grid maps onset times onto a metronome-relative beat grid.
package grid

import "math"

// Resolution is the subdivision a grid line represents.
type Resolution string

const (
	Eighth     Resolution = "8th"
	Sixteenth  Resolution = "16th"
)

// subdivisionsPerBeat returns the number of grid lines per quarter-note beat.
func (r Resolution) subdivisionsPerBeat() float64 {
	if r == Sixteenth {
		return 4
	}
	return 2
}

// Config is the beat grid derived from a locked metronome estimate.
// Rebuilt whenever the metronome state refits.
type Config struct {
	BPM        float64
	Resolution Resolution
	Reference  float64

	BeatDuration float64
	GridInterval float64
}

// New derives beat_duration and grid_interval from bpm/resolution/reference.
func New(bpm float64, resolution Resolution, reference float64) Config {
	beatDuration := 60.0 / bpm
	return Config{
		BPM:          bpm,
		Resolution:   resolution,
		Reference:    reference,
		BeatDuration: beatDuration,
		GridInterval: beatDuration / resolution.subdivisionsPerBeat(),
	}
}

// Deviation is the result of aligning a single onset time to the grid.
type Deviation struct {
	DeviationMs   float64
	NearestGridS  float64
	Bar           int
	BeatPosition  float64
}

// ComputeDeviation maps t to the nearest grid line and its bar/beat coordinate.
//
// Bar numbering uses mathematical flooring, not truncating integer division —
// Go's native "/" truncates toward zero for negative operands, which would
// diverge from the source behavior for onsets before reference. See DESIGN.md
// open-question (b).
func (c Config) ComputeDeviation(t float64) Deviation {
	g := c.GridInterval
	rel := t - c.Reference
	k := math.Round(rel / g)

	nearestGridS := c.Reference + k*g
	deviationMs := round1(( t - nearestGridS) * 1000)

	sPerBeat := c.Resolution.subdivisionsPerBeat()
	sPerBar := 4 * sPerBeat

	bar := int(math.Floor(k/sPerBar)) + 1
	position := flooredMod(k, sPerBar)
	beatPosition := round2(1 + position/sPerBeat)

	return Deviation{
		DeviationMs:  deviationMs,
		NearestGridS: nearestGridS,
		Bar:          bar,
		BeatPosition: beatPosition,
	}
}

func flooredMod(a, m float64) float64 {
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
