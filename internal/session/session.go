// Package session implements the length-prefixed binary/JSON session
// protocol (C7): control-message handling, audio-frame routing between the
// calibration staging buffer and the pipeline, and event serialization.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/rhythmcoach/engine/internal/auth"
	"github.com/rhythmcoach/engine/internal/calibration"
	"github.com/rhythmcoach/engine/internal/grid"
	"github.com/rhythmcoach/engine/internal/pipeline"
	"github.com/rhythmcoach/engine/internal/report"
	"github.com/rhythmcoach/engine/internal/storage"
	"github.com/rhythmcoach/engine/internal/wav"
)

const defaultSampleRate = 44100
const defaultThresholdMs = 30.0

// session holds the per-connection mutable state; one goroutine per
// connection owns it exclusively (§5) — nothing here needs a lock.
type session struct {
	conn    net.Conn
	logger  *slog.Logger
	authCfg auth.Config
	store   *storage.DB
	dataDir string

	id        string
	startedAt time.Time

	pl            *pipeline.Pipeline
	persistFormat string
	done          bool

	calibrating           bool
	calibrationStep       string
	calibrationSampleRate int
	calibrationBuf        []float32
}

// Handle drives one session to completion: reads frames until the peer
// disconnects or `stop` ends the session cleanly, closing conn on return.
func Handle(conn net.Conn, logger *slog.Logger, authCfg auth.Config, store *storage.DB, dataDir string) {
	s := &session{
		conn:    conn,
		authCfg: authCfg,
		store:   store,
		dataDir: dataDir,
		id:      uuid.NewString(),
	}
	s.logger = logger.With("session_id", s.id, "remote_addr", conn.RemoteAddr().String())

	defer conn.Close()
	defer s.teardown()

	first := true
	for {
		tag, payload, err := readFrame(conn)
		if err != nil {
			return
		}

		if first {
			first = false
			if authCfg.Enabled && !firstFrameAuthorized(tag, payload, authCfg, s.logger, conn.RemoteAddr().String()) {
				return
			}
		}

		switch tag {
		case tagControl:
			s.handleControl(payload)
			if s.done {
				return
			}
		case tagAudio:
			s.handleAudio(payload)
		default:
			s.logger.Warn("session: unknown frame tag", "tag", tag)
		}
	}
}

func firstFrameAuthorized(tag byte, payload []byte, cfg auth.Config, logger *slog.Logger, remoteAddr string) bool {
	if tag != tagControl {
		return false
	}
	var peek struct {
		Type      string `json:"type"`
		AuthToken string `json:"auth_token"`
	}
	if err := json.Unmarshal(payload, &peek); err != nil {
		return false
	}
	if peek.Type != "start" {
		return false
	}
	return auth.Check(cfg, peek.AuthToken, logger, remoteAddr)
}

func (s *session) handleControl(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.logger.Warn("session: malformed control message", "error", err)
		return
	}

	switch env.Type {
	case "start":
		s.handleStart(payload)
	case "stop":
		s.handleStop()
	case "calibrate":
		s.handleCalibrate(payload)
	case "stop_calibration":
		s.handleStopCalibration(payload)
	default:
		s.logger.Warn("session: unknown control message type", "type", env.Type)
	}
}

func (s *session) handleStart(payload []byte) {
	var msg startControl
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("session: malformed start message", "error", err)
		return
	}
	if msg.SampleRate == 0 {
		msg.SampleRate = defaultSampleRate
	}
	if msg.Threshold == 0 {
		msg.Threshold = defaultThresholdMs
	}

	resolution := grid.Eighth
	if msg.Grid == "16th" {
		resolution = grid.Sixteenth
	}

	var calib *pipeline.CalibrationRecord
	if msg.Calibration != nil {
		calib = &pipeline.CalibrationRecord{
			Metronome: fromWireProfile(msg.Calibration.Metronome),
			Guitar:    fromWireProfile(msg.Calibration.Guitar),
		}
	}

	s.pl = pipeline.New(pipeline.Config{
		SampleRate:  msg.SampleRate,
		Resolution:  resolution,
		ThresholdMs: msg.Threshold,
		Calibration: calib,
	})
	s.startedAt = time.Now()
	s.persistFormat = msg.PersistFormat

	s.send(outEvent{Type: "started"})
}

func (s *session) handleStop() {
	if s.pl == nil {
		s.logger.Warn("session: stop received with no active session")
		return
	}
	report := s.generateReportSafely()
	s.finishSession(report)
	s.done = true
}

// generateReportSafely converts an unexpected DSP panic into an error-shaped
// report rather than crashing the session goroutine, per §7(d).
func (s *session) generateReportSafely() (report pipeline.Report) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session: panic generating report", "panic", r)
			report = pipeline.Report{Error: fmt.Sprintf("internal error generating report: %v", r)}
		}
	}()
	return s.pl.Stop()
}

func (s *session) finishSession(rep pipeline.Report) {
	wavPath := s.saveWAV()
	s.persistSessionRecord(rep, wavPath)
	s.saveReport(rep)
	s.send(reportToWire(rep))
	s.pl = nil
}

// saveReport writes the terminal report to disk as JSON/CSV on a best-effort
// basis; a failure here never aborts session teardown.
func (s *session) saveReport(rep pipeline.Report) {
	dir := filepath.Join(s.dataDir, "reports")
	baseName := fmt.Sprintf("session-%s", s.startedAt.Format("20060102-150405"))
	if _, err := report.Write(dir, baseName, rep); err != nil {
		s.logger.Warn("session: failed to write report", "error", err)
	}
}

func (s *session) saveWAV() string {
	if s.pl == nil || len(s.pl.Buffer()) == 0 {
		return ""
	}
	dir := filepath.Join(s.dataDir, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("session: failed to create sessions dir", "error", err)
		return ""
	}
	name := fmt.Sprintf("session-%s.wav", s.startedAt.Format("20060102-150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		s.logger.Warn("session: failed to create wav file", "error", err)
		return ""
	}
	defer f.Close()

	var encErr error
	if s.persistFormat == "float32" {
		encErr = wav.EncodeFloat32(f, s.pl.Buffer(), s.pl.SampleRate())
	} else {
		buffer := s.pl.Buffer()
		samples := make([]float64, len(buffer))
		for i, v := range buffer {
			samples[i] = float64(v)
		}
		encErr = wav.EncodeInt16(f, samples, s.pl.SampleRate())
	}
	if encErr != nil {
		s.logger.Warn("session: failed to encode wav", "error", encErr)
		return ""
	}
	return path
}

func (s *session) persistSessionRecord(report pipeline.Report, wavPath string) {
	if s.store == nil {
		return
	}
	rec := storage.SessionRecord{
		ID:             s.id,
		StartedAt:      s.startedAt,
		EndedAt:        time.Now(),
		BPM:            report.BPM,
		GridResolution: report.GridResolution,
		TotalBars:      report.TotalBars,
		WAVPath:        wavPath,
		Error:          report.Error,
	}
	if report.Stats != nil {
		rec.AccuracyPercent = report.Stats.OnTimePercent
	}
	if err := s.store.SaveSession(rec); err != nil {
		s.logger.Warn("session: failed to persist session record", "error", err)
	}
}

func (s *session) handleCalibrate(payload []byte) {
	var msg calibrateControl
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("session: malformed calibrate message", "error", err)
		return
	}
	if msg.Step == "" {
		msg.Step = "metronome"
	}
	if msg.SampleRate == 0 {
		msg.SampleRate = defaultSampleRate
	}

	s.calibrating = true
	s.calibrationStep = msg.Step
	s.calibrationSampleRate = msg.SampleRate
	s.calibrationBuf = nil

	s.send(outEvent{Type: "calibration_started", Step: msg.Step})
}

func (s *session) handleStopCalibration(payload []byte) {
	if !s.calibrating {
		s.logger.Warn("session: stop_calibration received with no calibration in progress")
		return
	}
	var msg stopCalibrationControl
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("session: malformed stop_calibration message", "error", err)
	}

	profile := calibration.ExtractProfile(s.calibrationBuf, s.calibrationSampleRate)
	step := s.calibrationStep
	s.calibrating = false
	s.calibrationBuf = nil

	if profile.OnsetCount == 0 {
		s.send(outEvent{Type: "calibration_result", Step: step, Error: "no onsets detected in calibration recording"})
		return
	}

	if msg.Persist && s.store != nil {
		rec := storage.Profile{Name: step, MFCCMean: profile.MFCC, Centroid: profile.Centroid, Decay: profile.Decay, OnsetCount: profile.OnsetCount}
		if err := s.store.SaveProfile(rec); err != nil {
			s.logger.Warn("session: failed to persist calibration profile", "error", err)
		}
	}

	s.send(outEvent{Type: "calibration_result", Step: step, Profile: toWireProfile(profile)})
}

func (s *session) handleAudio(payload []byte) {
	if len(payload)%4 != 0 {
		// Misaligned payload: silently dropped per §7(a).
		return
	}
	samples := decodeAudioPayload(payload)

	if s.calibrating {
		s.calibrationBuf = append(s.calibrationBuf, samples...)
		return
	}
	if s.pl == nil {
		return
	}
	for _, e := range s.pl.ProcessChunk(samples) {
		s.send(pipelineEventToWire(e))
	}
}

func (s *session) send(e outEvent) {
	body, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("session: failed to marshal outbound event", "error", err)
		return
	}
	if err := writeFrame(s.conn, body); err != nil {
		s.logger.Warn("session: failed to write frame", "error", err)
	}
}

// teardown emits a best-effort error-shaped report if the peer disconnected
// mid-session without sending `stop`, per §5's cancellation rule.
func (s *session) teardown() {
	if s.pl == nil || s.done {
		return
	}
	report := s.generateReportSafely()
	s.finishSession(report)
}
