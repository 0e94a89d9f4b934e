package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SessionRecord is a persisted summary of one terminal session report.
type SessionRecord struct {
	ID              string
	StartedAt       time.Time
	EndedAt         time.Time
	BPM             float64
	GridResolution  string
	TotalBars       int
	AccuracyPercent float64
	WAVPath         string
	Error           string
}

// SaveSession inserts a session history row. Best-effort by convention of
// the caller: a failure here must never abort an in-progress session report.
func (d *DB) SaveSession(r SessionRecord) error {
	_, err := d.db.Exec(`
		INSERT INTO sessions (id, started_at, ended_at, bpm, grid_resolution, total_bars, accuracy_percent, wav_path, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt, r.EndedAt, r.BPM, r.GridResolution, r.TotalBars, r.AccuracyPercent, r.WAVPath, r.Error)
	if err != nil {
		return fmt.Errorf("storage: save session %q: %w", r.ID, err)
	}
	return nil
}

// ListSessions returns the most recent sessions, newest first.
func (d *DB) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := d.db.Query(`
		SELECT id, started_at, ended_at, bpm, grid_resolution, total_bars, accuracy_percent, wav_path, error
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var bpm, accuracy sql.NullFloat64
		var totalBars sql.NullInt64
		var gridRes, wavPath, errStr sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &bpm, &gridRes, &totalBars, &accuracy, &wavPath, &errStr); err != nil {
			return nil, fmt.Errorf("storage: scan session row: %w", err)
		}
		r.BPM = bpm.Float64
		r.GridResolution = gridRes.String
		r.TotalBars = int(totalBars.Int64)
		r.AccuracyPercent = accuracy.Float64
		r.WAVPath = wavPath.String
		r.Error = errStr.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSession looks up a single session by ID. Returns nil, nil if not found.
func (d *DB) GetSession(id string) (*SessionRecord, error) {
	var r SessionRecord
	r.ID = id
	var bpm, accuracy sql.NullFloat64
	var totalBars sql.NullInt64
	var gridRes, wavPath, errStr sql.NullString
	row := d.db.QueryRow(`
		SELECT started_at, ended_at, bpm, grid_resolution, total_bars, accuracy_percent, wav_path, error
		FROM sessions WHERE id = ?
	`, id)
	if err := row.Scan(&r.StartedAt, &r.EndedAt, &bpm, &gridRes, &totalBars, &accuracy, &wavPath, &errStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get session %q: %w", id, err)
	}
	r.BPM = bpm.Float64
	r.GridResolution = gridRes.String
	r.TotalBars = int(totalBars.Int64)
	r.AccuracyPercent = accuracy.Float64
	r.WAVPath = wavPath.String
	r.Error = errStr.String
	return &r, nil
}
