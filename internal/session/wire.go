package session

import (
	"github.com/rhythmcoach/engine/internal/calibration"
	"github.com/rhythmcoach/engine/internal/pipeline"
)

func toWireProfile(p calibration.Profile) *wireProfile {
	return &wireProfile{
		MFCC:       p.MFCC,
		Centroid:   p.Centroid,
		Decay:      p.Decay,
		OnsetCount: p.OnsetCount,
	}
}

func fromWireProfile(p *wireProfile) *calibration.Profile {
	if p == nil {
		return nil
	}
	return &calibration.Profile{
		MFCC:       p.MFCC,
		Centroid:   p.Centroid,
		Decay:      p.Decay,
		OnsetCount: p.OnsetCount,
	}
}

func pipelineEventToWire(e pipeline.Event) outEvent {
	return outEvent{
		Type:          e.Type,
		Time:          e.Time,
		ClickCount:    e.ClickCount,
		TotalOnsets:   e.TotalOnsets,
		BPM:           e.BPM,
		ReferenceTime: e.ReferenceTime,
		DeviationMs:   e.DeviationMs,
		Bar:           e.Bar,
		BeatPosition:  e.BeatPosition,
		IsOnTime:      e.IsOnTime,
	}
}

func reportToWire(r pipeline.Report) outEvent {
	if r.Error != "" {
		return outEvent{Type: "session_report", Error: r.Error}
	}

	events := make([]wireNoteEvent, len(r.Events))
	for i, ev := range r.Events {
		events[i] = wireNoteEvent{
			TimeS:        ev.TimeS,
			NearestGridS: ev.NearestGridS,
			DeviationMs:  ev.DeviationMs,
			Kind:         ev.Kind,
			Bar:          ev.Bar,
			BeatPosition: ev.BeatPosition,
			IsOnTime:     ev.IsOnTime,
		}
	}

	var stats *wireNoteStats
	if r.Stats != nil {
		stats = &wireNoteStats{
			MeanAbsoluteMs:  r.Stats.MeanAbsoluteMs,
			MeanSignedMs:    r.Stats.MeanSignedMs,
			StdDevMs:        r.Stats.StdDevMs,
			MedianMs:        r.Stats.MedianMs,
			WorstMs:         r.Stats.WorstMs,
			WorstBar:        r.Stats.WorstBar,
			WorstBeat:       r.Stats.WorstBeat,
			OnTimePercent:   r.Stats.OnTimePercent,
			AccuracyPercent: r.Stats.OnTimePercent,
		}
	}

	var metro *wireMetroStats
	if r.MetronomeStats != nil {
		metro = &wireMetroStats{
			ClickCount:          r.MetronomeStats.ClickCount,
			ExpectedIntervalMs:  r.MetronomeStats.ExpectedIntervalMs,
			JitterMs:            r.MetronomeStats.JitterMs,
			MeanAbsoluteErrorMs: r.MetronomeStats.MeanAbsoluteErrorMs,
			MaxAbsoluteErrorMs:  r.MetronomeStats.MaxAbsoluteErrorMs,
			DriftMsPerBeat:      r.MetronomeStats.DriftMsPerBeat,
			TightPercent:        r.MetronomeStats.TightPercent,
			OkPercent:           r.MetronomeStats.OkPercent,
			Error:               r.MetronomeStats.Error,
		}
	}

	return outEvent{
		Type:           "session_report",
		BPM:            r.BPM,
		GridResolution: r.GridResolution,
		TotalBars:      r.TotalBars,
		Events:         events,
		ClickTimes:     r.ClickTimes,
		Stats:          stats,
		MetronomeStats: metro,
	}
}
