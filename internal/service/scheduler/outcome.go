package scheduler

import (
	"fmt"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/service/stt"
)

// OutcomeKind tags the result of one work unit.
type OutcomeKind int

const (
	KindSuccess OutcomeKind = iota
	KindEmpty
	KindEngineError
	KindTimeout
)

// String returns the metrics label of the kind.
func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindEmpty:
		return "empty"
	case KindEngineError:
		return "engine_error"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the single result recorded for a work unit.
type Outcome struct {
	Index int
	Kind  OutcomeKind

	// Success fields.
	Text        string
	Confidence  float64
	Speaker     models.Speaker
	Placeholder bool

	// EngineError fields.
	ErrorKind stt.ErrorKind
	Err       error

	// Engine is the engine that produced the outcome.
	Engine string
}

// FatalError is returned by Schedule when an engine failure aborted the run.
type FatalError struct {
	Index int
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("unit %d: fatal engine error: %v", e.Index, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
