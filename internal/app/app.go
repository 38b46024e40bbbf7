// Package app holds process-wide state for one transcriber invocation.
package app

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/observability/logging"
)

// Stage is the pipeline step the invocation is currently in.
type Stage string

const (
	StageStarting     Stage = "starting"
	StageIngesting    Stage = "ingesting"
	StageSegmenting   Stage = "segmenting"
	StageTranscribing Stage = "transcribing"
	StageMerging      Stage = "merging"
	StageAnalyzing    Stage = "analyzing"
	StagePublishing   Stage = "publishing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Status is the snapshot served on /v1/status.
type Status struct {
	InvocationID string    `json:"invocationId"`
	Source       string    `json:"source"`
	Stage        Stage     `json:"stage"`
	Ready        bool      `json:"ready"`
	Engine       string    `json:"engine,omitempty"`
	StartupTime  time.Time `json:"startupTime"`
}

// Application holds process-wide state for the transcriber.
type Application struct {
	StartupTime  time.Time
	InvocationID string
	Logger       zerolog.Logger
	Cfg          *config.Config

	source atomic.Value // string
	engine atomic.Value // string
	stage  atomic.Value // Stage
	ready  atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:          cfg,
		InvocationID: uuid.NewString(),
	}
	a.stage.Store(StageStarting)
	a.source.Store("")
	a.engine.Store("")
	a.Logger = logging.WithComponent("application").With().
		Str("invocationId", a.InvocationID).
		Logger()

	a.Logger.Debug().Msg("Call transcriber application created")
	return a
}

// Start records the startup time for the invocation on source.
func (a *Application) Start(source string) error {
	a.StartupTime = time.Now().UTC()
	a.source.Store(source)
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("source", source).
		Msg("Call transcriber starting")
	return nil
}

// SetStage moves the invocation to s.
func (a *Application) SetStage(s Stage) {
	prev := a.Stage()
	a.stage.Store(s)
	a.Logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("Stage changed")
}

// Stage returns the current stage.
func (a *Application) Stage() Stage {
	return a.stage.Load().(Stage)
}

// MarkReady flags that configuration and the engine were built successfully.
func (a *Application) MarkReady(engine string) {
	a.engine.Store(engine)
	a.ready.Store(true)
}

// Ready reports readiness.
func (a *Application) Ready() bool { return a.ready.Load() }

// Status returns a snapshot of the invocation.
func (a *Application) Status() Status {
	return Status{
		InvocationID: a.InvocationID,
		Source:       a.source.Load().(string),
		Stage:        a.Stage(),
		Ready:        a.Ready(),
		Engine:       a.engine.Load().(string),
		StartupTime:  a.StartupTime,
	}
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().
		Str("stage", string(a.Stage())).
		Dur("elapsed", time.Since(a.StartupTime)).
		Msg("Call transcriber shutting down")
}
