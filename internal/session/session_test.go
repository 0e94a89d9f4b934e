package session

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"os"
	"testing"
	"time"

	"github.com/rhythmcoach/engine/internal/auth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeControl(t *testing.T, conn net.Conn, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal control: %v", err)
	}
	frame := append([]byte{tagControl}, body...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		t.Fatalf("write length: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func writeAudio(t *testing.T, conn net.Conn, samples []float32) {
	t.Helper()
	body := make([]byte, 1+len(samples)*4)
	body[0] = tagAudio
	for i, s := range samples {
		binary.LittleEndian.PutUint32(body[1+i*4:], math.Float32bits(s))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		t.Fatalf("write length: %v", err)
	}
	if _, err := conn.Write(body); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readEvent(t *testing.T, conn net.Conn) outEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	var ev outEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("unmarshal event %s: %v", payload, err)
	}
	return ev
}

func clickBurst(sampleRate int) []float32 {
	samples := make([]float32, int(0.005*float64(sampleRate)))
	for i := range samples {
		samples[i] = 1.0
	}
	return samples
}

// collectEvents reads frames in the background until it sees a
// session_report (or the connection errors), so the test's writer goroutine
// never blocks behind an unread outbound event on the synchronous net.Pipe.
func collectEvents(conn net.Conn) <-chan []outEvent {
	out := make(chan []outEvent, 1)
	go func() {
		var events []outEvent
		for {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, payload, err := readFrame(conn)
			if err != nil {
				out <- events
				return
			}
			var ev outEvent
			if err := json.Unmarshal(payload, &ev); err != nil {
				out <- events
				return
			}
			events = append(events, ev)
			if ev.Type == "session_report" {
				out <- events
				return
			}
		}
	}()
	return out
}

func TestSessionPureMetronomeEndsWithNoNotesError(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, testLogger(), auth.Config{}, nil, t.TempDir())
	events := collectEvents(client)

	writeControl(t, client, map[string]any{"type": "start", "grid": "8th", "sample_rate": 44100, "threshold": 30.0})

	sr := 44100
	period := 0.5
	burst := clickBurst(sr)
	for i := 0; i < 16; i++ {
		writeAudio(t, client, burst)
		writeAudio(t, client, make([]float32, int(period*float64(sr))-len(burst)))
	}

	writeControl(t, client, map[string]any{"type": "stop"})

	got := <-events
	if len(got) == 0 || got[0].Type != "started" {
		t.Fatalf("expected first event to be 'started', got %+v", got)
	}
	last := got[len(got)-1]
	if last.Type != "session_report" || last.Error != "No guitar notes detected" {
		t.Fatalf("expected terminal session_report 'No guitar notes detected', got %+v", last)
	}
}

func TestSessionCalibrationEmptyRecordingYieldsError(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, testLogger(), auth.Config{}, nil, t.TempDir())

	writeControl(t, client, map[string]any{"type": "calibrate", "step": "metronome", "sample_rate": 44100})
	started := readEvent(t, client)
	if started.Type != "calibration_started" || started.Step != "metronome" {
		t.Fatalf("expected calibration_started/metronome, got %+v", started)
	}

	writeAudio(t, client, make([]float32, 44100*2))

	writeControl(t, client, map[string]any{"type": "stop_calibration"})
	result := readEvent(t, client)
	if result.Type != "calibration_result" || result.Error == "" {
		t.Fatalf("expected calibration_result error for silent recording, got %+v", result)
	}
}

func TestSessionAuthRejectsBadToken(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, testLogger(), auth.Config{Enabled: true, Secret: "right"}, nil, t.TempDir())

	writeControl(t, client, map[string]any{"type": "start", "auth_token": "wrong"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	if _, err := client.Read(buf); err == nil {
		t.Fatalf("expected connection to be closed without a response on bad auth token")
	}
}

func TestSessionAuthAcceptsGoodToken(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, testLogger(), auth.Config{Enabled: true, Secret: "right"}, nil, t.TempDir())

	writeControl(t, client, map[string]any{"type": "start", "auth_token": "right"})
	started := readEvent(t, client)
	if started.Type != "started" {
		t.Fatalf("expected started event with valid auth token, got %+v", started)
	}
}

func TestSessionMisalignedAudioPayloadSilentlyDropped(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	go Handle(server, testLogger(), auth.Config{}, nil, t.TempDir())
	events := collectEvents(client)

	writeControl(t, client, map[string]any{"type": "start"})

	// 5-byte audio payload: not a multiple of 4, must be silently dropped.
	body := append([]byte{tagAudio}, []byte{1, 2, 3, 4, 5}...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	client.Write(lenBuf[:])
	client.Write(body)

	// Follow with a clean stop; the only events must be started/report,
	// proving the misaligned frame produced no outbound event of its own.
	writeControl(t, client, map[string]any{"type": "stop"})

	got := <-events
	if len(got) != 2 || got[0].Type != "started" || got[1].Type != "session_report" {
		t.Fatalf("expected exactly [started, session_report], got %+v", got)
	}
}
