// Package pipeline glues the onset detector, metronome detector, grid
// aligner, feature extractor, and calibration classifier into the per-chunk
// orchestration that makes click/note decisions and produces session reports
// (C6).
package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/rhythmcoach/engine/internal/calibration"
	"github.com/rhythmcoach/engine/internal/features"
	"github.com/rhythmcoach/engine/internal/grid"
	"github.com/rhythmcoach/engine/internal/metronome"
	"github.com/rhythmcoach/engine/internal/onset"
)

const defaultThresholdMs = 30.0

// CalibrationRecord carries the two optional profiles supplied at session start.
type CalibrationRecord struct {
	Metronome *calibration.Profile
	Guitar    *calibration.Profile
}

// Config configures a session's pipeline, taken verbatim from the `start`
// control message (§4.6).
type Config struct {
	SampleRate  int
	Resolution  grid.Resolution
	ThresholdMs float64
	Calibration *CalibrationRecord
}

// NoteEvent is a single classified onset (§3).
type NoteEvent struct {
	TimeS        float64
	NearestGridS float64
	DeviationMs  float64
	Kind         string // "note" (always, in the current core), "rest", "extra"
	Pitch        *float64
	Bar          int
	BeatPosition float64
	IsOnTime     bool
}

// Event is one outbound progress/result event (§6).
type Event struct {
	Type          string
	Time          float64
	ClickCount    int
	TotalOnsets   int
	BPM           float64
	ReferenceTime float64
	DeviationMs   float64
	Bar           int
	BeatPosition  float64
	IsOnTime      bool
}

// Pipeline is the per-session orchestrator; its state is created on `start`
// and destroyed after the report at `stop` (§3 Lifecycle). It is driven by a
// single goroutine per session (§5) — nothing here is safe for concurrent use.
type Pipeline struct {
	cfg Config

	buffer        []float32
	onsetDetector *onset.RealtimeDetector
	metro         *metronome.Detector
	extractor     *features.Extractor
	grid          *grid.Config

	noteEvents []NoteEvent
}

// New allocates a fresh pipeline for a session.
func New(cfg Config) *Pipeline {
	if cfg.ThresholdMs == 0 {
		cfg.ThresholdMs = defaultThresholdMs
	}
	if cfg.Resolution == "" {
		cfg.Resolution = grid.Eighth
	}
	return &Pipeline{
		cfg:           cfg,
		onsetDetector: onset.NewRealtimeDetector(cfg.SampleRate),
		metro:         metronome.New(),
		extractor:     features.NewExtractor(cfg.SampleRate),
	}
}

// ProcessChunk appends samples to the session buffer, runs onset detection,
// and returns the events produced by this chunk, in order (§4.5, §5).
func (p *Pipeline) ProcessChunk(samples []float32) []Event {
	p.buffer = append(p.buffer, samples...)

	var events []Event
	for _, t := range p.onsetDetector.ProcessChunk(samples) {
		events = append(events, p.handleOnset(t)...)
	}
	return events
}

func (p *Pipeline) handleOnset(t float64) []Event {
	if !p.metro.Locked() {
		return p.handleUnlockedOnset(t)
	}
	return p.handleLockedOnset(t)
}

func (p *Pipeline) handleUnlockedOnset(t float64) []Event {
	justLocked := p.metro.AddOnset(t)

	events := []Event{{
		Type:        "click_detected",
		Time:        t,
		ClickCount:  p.metro.ClickCount(),
		TotalOnsets: p.metro.TotalOnsets(),
	}}

	if justLocked {
		cfg := grid.New(p.metro.BPM(), p.cfg.Resolution, p.metro.Reference())
		p.grid = &cfg
		events = append(events, Event{
			Type:          "grid_established",
			BPM:           p.metro.BPM(),
			ReferenceTime: p.metro.Reference(),
		})
	}
	return events
}

func (p *Pipeline) handleLockedOnset(t float64) []Event {
	timingIsClick := p.metro.TrackOnset(t)

	isClick := timingIsClick
	if p.cfg.Calibration != nil {
		startIdx := int(math.Round(t * float64(p.cfg.SampleRate)))
		f, ok := p.extractor.Extract(p.buffer, startIdx)
		spectralClass := calibration.Classify(f, ok, p.cfg.Calibration.Metronome, p.cfg.Calibration.Guitar)

		switch {
		case timingIsClick && spectralClass == calibration.ClassGuitar:
			// Timing said click, spectrum says guitar: trust the spectrum,
			// undo the click tentatively recorded by TrackOnset.
			isClick = false
			p.metro.UntrackLastClick()
		case !timingIsClick && spectralClass == calibration.ClassMetronome:
			// Timing wins here: a guitar note sitting near a grid line
			// should not be reclassified as a click from spectrum alone.
			isClick = false
		default:
			isClick = timingIsClick
		}
	}

	if p.metro.GridUpdated() {
		cfg := grid.New(p.metro.BPM(), p.cfg.Resolution, p.metro.Reference())
		p.grid = &cfg
	}

	if isClick {
		return p.emitClick(t)
	}
	return p.emitNote(t)
}

func (p *Pipeline) emitClick(t float64) []Event {
	events := []Event{{
		Type:        "click_detected",
		Time:        t,
		ClickCount:  p.metro.ClickCount(),
		TotalOnsets: p.metro.TotalOnsets(),
	}}

	// A click landing close after the last recorded note suggests the
	// player's note and the metronome's click merged into one onset.
	// Requires a prior note_event to exist — so the very first on-beat
	// note of a session is silently absorbed into this click branch and
	// never surfaces as its own note_event. Preserved per §9 open question (a).
	if len(p.noteEvents) > 0 {
		last := p.noteEvents[len(p.noteEvents)-1]
		if t-last.TimeS < 2*p.metro.Period() {
			ne, ev := p.noteFromDeviation(t)
			p.noteEvents = append(p.noteEvents, ne)
			events = append(events, ev)
		}
	}
	return events
}

func (p *Pipeline) emitNote(t float64) []Event {
	ne, ev := p.noteFromDeviation(t)
	p.noteEvents = append(p.noteEvents, ne)
	return []Event{ev}
}

func (p *Pipeline) noteFromDeviation(t float64) (NoteEvent, Event) {
	dev := p.grid.ComputeDeviation(t)
	isOnTime := math.Abs(dev.DeviationMs) <= p.cfg.ThresholdMs

	ne := NoteEvent{
		TimeS:        t,
		NearestGridS: dev.NearestGridS,
		DeviationMs:  dev.DeviationMs,
		Kind:         "note",
		Bar:          dev.Bar,
		BeatPosition: dev.BeatPosition,
		IsOnTime:     isOnTime,
	}
	ev := Event{
		Type:         "note_event",
		Time:         t,
		DeviationMs:  dev.DeviationMs,
		Bar:          dev.Bar,
		BeatPosition: dev.BeatPosition,
		IsOnTime:     isOnTime,
	}
	return ne, ev
}

// Buffer returns the accumulated session audio, for save_session.
func (p *Pipeline) Buffer() []float32 { return p.buffer }

// SampleRate returns the configured session sample rate.
func (p *Pipeline) SampleRate() int { return p.cfg.SampleRate }

// NoteStats summarizes per-note timing accuracy.
type NoteStats struct {
	MeanAbsoluteMs float64
	MeanSignedMs   float64
	StdDevMs       float64
	MedianMs       float64
	WorstMs        float64
	WorstBar       int
	WorstBeat      float64
	OnTimePercent  float64
}

// MetronomeStats summarizes click-tracking consistency against the fitted grid.
type MetronomeStats struct {
	ClickCount        int
	ExpectedIntervalMs float64
	JitterMs          float64
	MeanAbsoluteErrorMs float64
	MaxAbsoluteErrorMs  float64
	DriftMsPerBeat      *float64
	TightPercent        float64
	OkPercent           float64
	Error               string
}

// Report is the terminal session-report payload (§3, §4.5).
type Report struct {
	Error          string
	BPM            float64
	GridResolution string
	TotalBars      int
	Events         []NoteEvent
	ClickTimes     []float64
	Stats          *NoteStats
	MetronomeStats *MetronomeStats
}

// Stop aggregates the final session report. Error-shaped reports are
// returned (not Go errors) per §7's error taxonomy — the session boundary is
// the only place errors surface to the peer, and always as a terminal event.
func (p *Pipeline) Stop() Report {
	if len(p.buffer) == 0 {
		return Report{Error: "No audio recorded"}
	}
	if !p.metro.Locked() {
		return Report{Error: fmt.Sprintf(
			"Metronome never locked (total_onsets=%d, click_count=%d)",
			p.metro.TotalOnsets(), p.metro.ClickCount())}
	}
	if len(p.noteEvents) == 0 {
		return Report{Error: "No guitar notes detected"}
	}

	totalBars := 0
	for _, ne := range p.noteEvents {
		if ne.Bar > totalBars {
			totalBars = ne.Bar
		}
	}

	return Report{
		BPM:            p.metro.BPM(),
		GridResolution: string(p.cfg.Resolution),
		TotalBars:      totalBars,
		Events:         p.noteEvents,
		ClickTimes:     p.metro.ClickTimes(),
		Stats:          computeNoteStats(p.noteEvents),
		MetronomeStats: computeMetronomeStats(p.metro),
	}
}

func computeNoteStats(events []NoteEvent) *NoteStats {
	n := float64(len(events))
	var sumAbs, sumSigned float64
	deviations := make([]float64, len(events))
	onTime := 0
	worstMs := 0.0
	worstIdx := 0
	for i, e := range events {
		sumAbs += math.Abs(e.DeviationMs)
		sumSigned += e.DeviationMs
		deviations[i] = e.DeviationMs
		if math.Abs(e.DeviationMs) > math.Abs(worstMs) || i == 0 {
			worstMs = e.DeviationMs
			worstIdx = i
		}
		if e.IsOnTime {
			onTime++
		}
	}

	meanAbs := sumAbs / n
	meanSigned := sumSigned / n

	var sumSqDiff float64
	for _, d := range deviations {
		diff := d - meanSigned
		sumSqDiff += diff * diff
	}
	stddev := math.Sqrt(sumSqDiff / n)

	sorted := append([]float64(nil), deviations...)
	sort.Float64s(sorted)
	median := medianOf(sorted)

	return &NoteStats{
		MeanAbsoluteMs: meanAbs,
		MeanSignedMs:   meanSigned,
		StdDevMs:       stddev,
		MedianMs:       median,
		WorstMs:        worstMs,
		WorstBar:       events[worstIdx].Bar,
		WorstBeat:      events[worstIdx].BeatPosition,
		OnTimePercent:  100 * float64(onTime) / n,
	}
}

func medianOf(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func computeMetronomeStats(m *metronome.Detector) *MetronomeStats {
	times := m.ClickTimes()
	indices := m.ClickIndices()
	if len(times) < 3 || m.Period() <= 0 {
		return &MetronomeStats{Error: "insufficient click history for metronome statistics"}
	}

	period := m.Period()
	reference := m.Reference()

	errorsMs := make([]float64, len(times))
	for i := range times {
		expected := reference + float64(indices[i])*period
		errorsMs[i] = (times[i] - expected) * 1000
	}

	var sumAbs, sum float64
	maxAbs := 0.0
	tight, ok := 0, 0
	for _, e := range errorsMs {
		abs := math.Abs(e)
		sumAbs += abs
		sum += e
		if abs > maxAbs {
			maxAbs = abs
		}
		if abs <= 2.0 {
			tight++
		}
		if abs <= 5.0 {
			ok++
		}
	}
	n := float64(len(errorsMs))
	mean := sum / n

	var sumSqDiff float64
	for _, e := range errorsMs {
		diff := e - mean
		sumSqDiff += diff * diff
	}
	jitter := math.Sqrt(sumSqDiff / n)

	stats := &MetronomeStats{
		ClickCount:          len(times),
		ExpectedIntervalMs:  period * 1000,
		JitterMs:            jitter,
		MeanAbsoluteErrorMs: sumAbs / n,
		MaxAbsoluteErrorMs:  maxAbs,
		TightPercent:        100 * float64(tight) / n,
		OkPercent:           100 * float64(ok) / n,
	}

	if len(errorsMs) >= 4 {
		drift := linearFitSlope(indices, errorsMs)
		stats.DriftMsPerBeat = &drift
	}

	return stats
}

// linearFitSlope fits errorsMs ~ indices by ordinary least squares and
// returns the slope (ms per beat index).
func linearFitSlope(indices []int, errorsMs []float64) float64 {
	n := float64(len(indices))
	var sumX, sumY, sumXY, sumXX float64
	for i, idx := range indices {
		x := float64(idx)
		y := errorsMs[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
