package grid

import "testing"

func TestComputeDeviationIdempotentOnOwnOutput(t *testing.T) {
	c := New(120, Eighth, 0.5)
	for _, probe := range []float64{0.5, 1.0, 1.7, 3.25, -0.3} {
		d := c.ComputeDeviation(probe)
		d2 := c.ComputeDeviation(d.NearestGridS)
		if d2.DeviationMs != 0 {
			t.Fatalf("expected idempotent deviation at %v, got %v", d.NearestGridS, d2.DeviationMs)
		}
	}
}

func TestComputeDeviationHalfPeriodOffset(t *testing.T) {
	c := New(120, Eighth, 0.0)
	// period = 0.5s; grid_interval = 0.25s (8th notes).
	d := c.ComputeDeviation(0.125) // half of an 8th-grid interval
	// k = round(0.5) = 1 (math.Round rounds halves away from zero), so the
	// nearest grid line is 0.25s and the onset reads 125ms early.
	if d.DeviationMs < -130 || d.DeviationMs > -120 {
		t.Fatalf("expected ~-125ms deviation, got %v", d.DeviationMs)
	}
}

func TestComputeDeviationBarBeatMath(t *testing.T) {
	c := New(120, Eighth, 0.0) // beat=0.5s, grid_interval=0.25s, 8 grid lines/bar
	d := c.ComputeDeviation(2.0)
	// k = 2.0/0.25 = 8 -> bar = floor(8/8)+1 = 2, position = 0, beat=1.0
	if d.Bar != 2 {
		t.Fatalf("expected bar 2, got %d", d.Bar)
	}
	if d.BeatPosition != 1.0 {
		t.Fatalf("expected beat_position 1.0, got %v", d.BeatPosition)
	}
}

func TestComputeDeviationNegativeKFlooring(t *testing.T) {
	c := New(120, Eighth, 1.0)
	// t well before reference: k negative, must floor not truncate.
	d := c.ComputeDeviation(0.1) // rel = -0.9, g = 0.25 -> k = round(-3.6) = -4
	if d.Bar > 0 {
		t.Fatalf("expected non-positive bar for pre-reference onset, got %d", d.Bar)
	}
}

func TestResolutionSixteenthSubdivisions(t *testing.T) {
	c := New(60, Sixteenth, 0)
	if c.GridInterval != 0.25 {
		t.Fatalf("expected 0.25s grid interval for 16th @ 60bpm, got %v", c.GridInterval)
	}
}
