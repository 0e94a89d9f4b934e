// Package metronome implements blind metronome discovery by periodicity
// search over detected onsets, and post-lock click tracking with continuous
// least-squares grid refinement (C4).
package metronome

import "math"

const (
	minPeriodicOnsets = 4
	searchWindowS     = 6.0
	minPeriodS        = 0.25
	maxPeriodS        = 1.5
	alignToleranceMs  = 25.0
	earlyExitCount    = 6
	maxDivisor        = 4
	refitInterval     = 4

	trackToleranceCapMs   = 50.0
	trackToleranceScale   = 250.0
	minClickGapPeriodFrac = 0.5
)

// Detector models the two-phase metronome state (§3, §9 "variant state"):
// Unlocked{onsets, best_periodic_count} before a periodicity lock, and
// Locked{period, reference, bpm, click_times, click_indices,
// clicks_since_refit} after. Both phases are represented on one struct
// because Go has no tagged-union type that Detector's callers could match
// on as ergonomically as the locked/unlocked method set below; the `locked`
// field is the discriminant, and fields belonging to the other phase are
// simply unused once it flips.
type Detector struct {
	locked bool

	// Unlocked phase.
	onsets            []float64
	bestPeriodicCount int

	// Locked phase.
	period           float64
	reference        float64
	bpm              float64
	clickTimes       []float64
	clickIndices     []int
	clicksSinceRefit int

	totalOnsets int
}

// New returns a fresh, unlocked detector.
func New() *Detector {
	return &Detector{}
}

// AddOnset feeds an onset while unlocked and re-runs the periodicity search.
// It returns true exactly when this call transitions the detector to the
// locked phase. Calling it after lock is a no-op that still counts toward
// TotalOnsets.
func (d *Detector) AddOnset(t float64) bool {
	d.totalOnsets++
	if d.locked {
		return false
	}

	d.onsets = append(d.onsets, t)
	if len(d.onsets) < minPeriodicOnsets {
		return false
	}

	windowed := onsetsInWindow(d.onsets, searchWindowS)
	count, aligned, period := periodicitySearch(windowed)
	d.bestPeriodicCount = count

	if count >= minPeriodicOnsets {
		d.lockWith(aligned, period)
		return true
	}
	return false
}

// onsetsInWindow restricts to a trailing window ending at the latest onset.
func onsetsInWindow(onsets []float64, windowS float64) []float64 {
	if len(onsets) == 0 {
		return onsets
	}
	latest := onsets[len(onsets)-1]
	cutoff := latest - windowS
	start := 0
	for start < len(onsets) && onsets[start] < cutoff {
		start++
	}
	return onsets[start:]
}

// periodicitySearch finds the period/divisor candidate with the largest
// aligned onset set, per §4.3. Onsets must be sorted ascending.
func periodicitySearch(onsets []float64) (bestCount int, bestSet []float64, bestPeriod float64) {
	for i := 0; i < len(onsets); i++ {
		for j := i + 1; j < len(onsets); j++ {
			for div := 1; div <= maxDivisor; div++ {
				period := (onsets[j] - onsets[i]) / float64(div)
				if period < minPeriodS || period > maxPeriodS {
					continue
				}
				aligned := alignedOnsets(onsets, onsets[i], period)
				if len(aligned) > bestCount {
					bestCount = len(aligned)
					bestSet = aligned
					bestPeriod = period
				}
			}
		}
		if bestCount >= earlyExitCount {
			break
		}
	}
	return
}

func alignedOnsets(onsets []float64, ref, period float64) []float64 {
	var set []float64
	for _, t := range onsets {
		offset := (t - ref) / period
		nearest := math.Round(offset)
		errorMs := math.Abs(offset-nearest) * period * 1000
		if errorMs <= alignToleranceMs {
			set = append(set, t)
		}
	}
	return set
}

func (d *Detector) lockWith(aligned []float64, period float64) {
	d.clickTimes = append([]float64(nil), aligned...)
	d.clickIndices = make([]int, len(aligned))
	for i, t := range aligned {
		d.clickIndices[i] = int(math.Round((t - aligned[0]) / period))
	}

	d.period = period
	d.reference = aligned[0] - float64(d.clickIndices[0])*period
	d.bpm = 60 / period
	d.locked = true
	d.clicksSinceRefit = 0

	d.refit()
}

// refit re-estimates period and reference from the full click history by
// ordinary least squares of time ~ index, accepting the result only if the
// fitted period stays in range; otherwise the previous estimate is kept.
func (d *Detector) refit() {
	n := len(d.clickIndices)
	if n == 0 {
		return
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, idx := range d.clickIndices {
		x := float64(idx)
		y := d.clickTimes[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	if slope < minPeriodS || slope > maxPeriodS {
		return
	}
	d.period = slope
	d.reference = intercept
	d.bpm = 60 / slope
}

// TrackOnset evaluates a post-lock onset against the fitted grid and reports
// whether it lands close enough to an expected click position to be counted
// as a click.
func (d *Detector) TrackOnset(t float64) bool {
	d.totalOnsets++

	offset := (t - d.reference) / d.period
	nearest := math.Round(offset)
	errorMs := math.Abs(offset-nearest) * d.period * 1000

	tolerance := math.Min(d.period*trackToleranceScale, trackToleranceCapMs)
	if errorMs > tolerance {
		return false
	}

	if len(d.clickTimes) > 0 && t-d.clickTimes[len(d.clickTimes)-1] < minClickGapPeriodFrac*d.period {
		return false
	}

	d.clickTimes = append(d.clickTimes, t)
	d.clickIndices = append(d.clickIndices, int(nearest))
	d.clicksSinceRefit++
	if d.clicksSinceRefit >= refitInterval {
		d.clicksSinceRefit = 0
		d.refit()
	}
	return true
}

// UntrackLastClick pops the most recently tracked click, for use when the
// pipeline orchestrator (C6) reclassifies a timing-click as a played note.
// A dedicated operation per §9's design note, rather than C6 mutating
// Detector's internal lists directly.
func (d *Detector) UntrackLastClick() {
	if len(d.clickTimes) == 0 {
		return
	}
	d.clickTimes = d.clickTimes[:len(d.clickTimes)-1]
	d.clickIndices = d.clickIndices[:len(d.clickIndices)-1]
	if d.clicksSinceRefit > 0 {
		d.clicksSinceRefit--
	}
}

// GridUpdated reports the edge signal "a refit just happened", derived as
// clicks_since_refit == 0 with enough history to have refit at least once.
// Per §9's design note (d), this also reads true between refits that were
// attempted but rejected for an out-of-range period; an explicit refit-
// accepted signal is the cleaner alternative but the imprecise derivation is
// preserved here to match the documented wire contract.
func (d *Detector) GridUpdated() bool {
	return d.locked && d.clicksSinceRefit == 0 && len(d.clickTimes) >= minPeriodicOnsets
}

// Locked reports whether the detector has transitioned to the locked phase.
func (d *Detector) Locked() bool { return d.locked }

// BPM returns the current tempo estimate (meaningful only once locked).
func (d *Detector) BPM() float64 { return d.bpm }

// Period returns the current period estimate in seconds (locked only).
func (d *Detector) Period() float64 { return d.period }

// Reference returns the current grid reference time in seconds (locked only).
func (d *Detector) Reference() float64 { return d.reference }

// TotalOnsets returns the count of onsets ever fed to the detector, across
// both phases.
func (d *Detector) TotalOnsets() int { return d.totalOnsets }

// ClickCount is best_periodic_count pre-lock and len(click_times) post-lock.
func (d *Detector) ClickCount() int {
	if d.locked {
		return len(d.clickTimes)
	}
	return d.bestPeriodicCount
}

// ClickTimes returns the recorded click timestamps (locked only); used for
// the session report's click_times and metronome-consistency statistics.
func (d *Detector) ClickTimes() []float64 {
	return d.clickTimes
}

// ClickIndices returns the recorded click grid indices, parallel to
// ClickTimes, for metronome-consistency statistics.
func (d *Detector) ClickIndices() []int {
	return d.clickIndices
}
