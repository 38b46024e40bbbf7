// Package stt defines the interface for transcription engines.
package stt

import (
	"context"
	"errors"
	"fmt"

	"ai-call-transcriber/internal/models"
)

// Engine names reported in results and metrics.
const (
	EngineAssemblyAI = "assemblyai"
	EngineGoogle     = "google_speech"
	EngineWhisper    = "whisper_local"
	EngineHeuristic  = "signal_heuristic_placeholder"
)

// ErrNoSpeech is returned when the engine completed but recognized nothing.
var ErrNoSpeech = errors.New("no speech recognized")

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindUnavailable ErrorKind = "unavailable"
	KindRejected    ErrorKind = "rejected"
	KindInternal    ErrorKind = "internal"
	// KindAborted marks units abandoned after a fatal failure elsewhere.
	KindAborted ErrorKind = "aborted"
)

// EngineError is a classified engine failure.
type EngineError struct {
	Engine string
	Kind   ErrorKind
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// NewError wraps err with an engine name and kind.
func NewError(engine string, kind ErrorKind, err error) *EngineError {
	return &EngineError{Engine: engine, Kind: kind, Err: err}
}

// KindOf returns the kind of an EngineError in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}

// Clip is one work unit's audio handed to an engine.
type Clip struct {
	Index      int
	Start      float64
	End        float64
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 { return c.End - c.Start }

// Transcript is an engine's answer for one clip.
type Transcript struct {
	Text       string
	Confidence float64
	// Speaker is SpeakerUnknown when the engine does not label speakers.
	Speaker models.Speaker
	// Placeholder marks text that was not produced by speech recognition.
	Placeholder bool
}

// Engine transcribes clips. Implementations must be safe for concurrent use.
type Engine interface {
	// Name returns the engine name reported in results.
	Name() string

	// Transcribe returns the transcript for one clip. It returns ErrNoSpeech
	// when nothing was recognized and an *EngineError on failure.
	Transcribe(ctx context.Context, clip Clip) (Transcript, error)

	// Close releases resources.
	Close() error
}
