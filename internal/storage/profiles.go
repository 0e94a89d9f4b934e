package storage

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Profile is a persisted calibration profile, keyed by name ("metronome",
// "guitar", or any front-end-assigned label).
type Profile struct {
	Name       string
	MFCCMean   [13]float64
	Centroid   float64
	Decay      float64
	OnsetCount int
	CreatedAt  time.Time
}

// SaveProfile upserts a calibration profile by name.
func (d *DB) SaveProfile(p Profile) error {
	blob := encodeMFCC(p.MFCCMean)
	_, err := d.db.Exec(`
		INSERT INTO profiles (name, mfcc_mean, centroid, decay, onset_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			mfcc_mean = excluded.mfcc_mean,
			centroid = excluded.centroid,
			decay = excluded.decay,
			onset_count = excluded.onset_count,
			created_at = CURRENT_TIMESTAMP
	`, p.Name, blob, p.Centroid, p.Decay, p.OnsetCount)
	if err != nil {
		return fmt.Errorf("storage: save profile %q: %w", p.Name, err)
	}
	return nil
}

// GetProfile looks up a calibration profile by name. Returns nil, nil if no
// profile by that name has been saved.
func (d *DB) GetProfile(name string) (*Profile, error) {
	var blob []byte
	p := Profile{Name: name}
	row := d.db.QueryRow(`SELECT mfcc_mean, centroid, decay, onset_count, created_at FROM profiles WHERE name = ?`, name)
	if err := row.Scan(&blob, &p.Centroid, &p.Decay, &p.OnsetCount, &p.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get profile %q: %w", name, err)
	}
	mfcc, err := decodeMFCC(blob)
	if err != nil {
		return nil, fmt.Errorf("storage: decode profile %q: %w", name, err)
	}
	p.MFCCMean = mfcc
	return &p, nil
}

func encodeMFCC(v [13]float64) []byte {
	buf := make([]byte, 13*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeMFCC(buf []byte) ([13]float64, error) {
	var v [13]float64
	if len(buf) != 13*8 {
		return v, fmt.Errorf("expected %d bytes, got %d", 13*8, len(buf))
	}
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, nil
}
