package session

// envelope reads just the discriminant field shared by every control message.
type envelope struct {
	Type string `json:"type"`
}

type startControl struct {
	Grid          string            `json:"grid"`
	SampleRate    int               `json:"sample_rate"`
	Threshold     float64           `json:"threshold"`
	Calibration   *calibrationField `json:"calibration"`
	AuthToken     string            `json:"auth_token"`
	PersistFormat string            `json:"persist_format"`
}

type calibrationField struct {
	Metronome *wireProfile `json:"metronome"`
	Guitar    *wireProfile `json:"guitar"`
}

type wireProfile struct {
	MFCC       [13]float64 `json:"mfcc"`
	Centroid   float64     `json:"centroid"`
	Decay      float64     `json:"decay"`
	OnsetCount int         `json:"onset_count"`
}

type calibrateControl struct {
	Step       string `json:"step"`
	SampleRate int    `json:"sample_rate"`
}

type stopCalibrationControl struct {
	Persist bool `json:"persist"`
}

// Outbound event shapes (§6). Every field a given event type doesn't use is
// tagged omitempty so the marshaled JSON only carries what that event needs.
type outEvent struct {
	Type string `json:"type"`

	Step    string       `json:"step,omitempty"`
	Profile *wireProfile `json:"profile,omitempty"`
	Error   string       `json:"error,omitempty"`

	Time          float64 `json:"time,omitempty"`
	ClickCount    int     `json:"click_count,omitempty"`
	TotalOnsets   int     `json:"total_onsets,omitempty"`
	BPM           float64 `json:"bpm,omitempty"`
	ReferenceTime float64 `json:"reference_time,omitempty"`
	DeviationMs   float64 `json:"deviation_ms,omitempty"`
	Bar           int     `json:"bar,omitempty"`
	BeatPosition  float64 `json:"beat_position,omitempty"`
	IsOnTime      bool    `json:"is_on_time,omitempty"`

	GridResolution string          `json:"grid_resolution,omitempty"`
	TotalBars      int             `json:"total_bars,omitempty"`
	Events         []wireNoteEvent `json:"events,omitempty"`
	ClickTimes     []float64       `json:"click_times,omitempty"`
	Stats          *wireNoteStats  `json:"stats,omitempty"`
	MetronomeStats *wireMetroStats `json:"metronome_stats,omitempty"`
}

type wireNoteEvent struct {
	TimeS        float64 `json:"time_s"`
	NearestGridS float64 `json:"nearest_grid_s"`
	DeviationMs  float64 `json:"deviation_ms"`
	Kind         string  `json:"kind"`
	Bar          int     `json:"bar"`
	BeatPosition float64 `json:"beat_position"`
	IsOnTime     bool    `json:"is_on_time"`
}

type wireNoteStats struct {
	MeanAbsoluteMs float64 `json:"mean_absolute_ms"`
	MeanSignedMs   float64 `json:"mean_signed_ms"`
	StdDevMs       float64 `json:"stddev_ms"`
	MedianMs       float64 `json:"median_ms"`
	WorstMs        float64 `json:"worst_ms"`
	WorstBar       int     `json:"worst_bar"`
	WorstBeat      float64 `json:"worst_beat"`
	OnTimePercent  float64 `json:"on_time_percent"`
	AccuracyPercent float64 `json:"accuracy_percent"`
}

type wireMetroStats struct {
	ClickCount          int      `json:"click_count"`
	ExpectedIntervalMs  float64  `json:"expected_interval_ms"`
	JitterMs            float64  `json:"jitter_ms"`
	MeanAbsoluteErrorMs float64  `json:"mean_absolute_error_ms"`
	MaxAbsoluteErrorMs  float64  `json:"max_absolute_error_ms"`
	DriftMsPerBeat      *float64 `json:"drift_ms_per_beat,omitempty"`
	TightPercent        float64  `json:"tight_percent"`
	OkPercent           float64  `json:"ok_percent"`
	Error               string   `json:"error,omitempty"`
}
