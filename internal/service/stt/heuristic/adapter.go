// Package heuristic provides a signal-only engine for running without any
// speech recognition backend. Its output describes the audio, it never
// pretends to be recognized speech.
package heuristic

import (
	"context"
	"fmt"

	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/stt"
)

// Prefix tags every placeholder text.
const Prefix = "[placeholder]"

// Energy level bounds on normalized RMS.
const (
	lowEnergy    = 0.05
	mediumEnergy = 0.2
)

// Adapter implements stt.Engine from clip duration and energy alone.
type Adapter struct{}

// New creates a new heuristic engine.
func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return stt.EngineHeuristic }

// Transcribe describes the clip. Silent clips yield stt.ErrNoSpeech.
func (a *Adapter) Transcribe(ctx context.Context, clip stt.Clip) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}

	rms := audio.RMS(clip.Samples)
	if rms == 0 {
		return stt.Transcript{}, stt.ErrNoSpeech
	}

	return stt.Transcript{
		Text:        fmt.Sprintf("%s speech activity %.1fs, energy %s", Prefix, clip.Duration(), Level(rms)),
		Confidence:  0,
		Placeholder: true,
	}, nil
}

// Close is a no-op.
func (a *Adapter) Close() error { return nil }

// Level buckets a normalized RMS value.
func Level(rms float64) string {
	switch {
	case rms < lowEnergy:
		return "low"
	case rms < mediumEnergy:
		return "medium"
	default:
		return "high"
	}
}
