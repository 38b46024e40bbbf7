// Package pipeline runs one invocation end to end: ingest, segment,
// schedule, merge, analyze, validate and publish.
package pipeline

import (
	"context"
	"errors"
	"time"

	"ai-call-transcriber/internal/app"
	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability/logging"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/schema"
	"ai-call-transcriber/internal/service/analysis"
	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/merger"
	"ai-call-transcriber/internal/service/scheduler"
	"ai-call-transcriber/internal/service/stt"
	"ai-call-transcriber/internal/service/stt/heuristic"
	"ai-call-transcriber/internal/service/vad"
)

// Invocation results recorded in metrics.
const (
	resultSuccess = "success"
	resultEmpty   = "empty"
	resultFailed  = "failed"
	resultError   = "error"
)

// Publisher receives the result of each invocation.
type Publisher interface {
	PublishInvocation(ctx context.Context, invocationID, source string, r *models.TranscriptionResult) error
}

// StageTracker is told which step the invocation is in.
type StageTracker interface {
	SetStage(s app.Stage)
}

type noopTracker struct{}

func (noopTracker) SetStage(app.Stage) {}

// Pipeline wires the stages of one invocation.
type Pipeline struct {
	cfg          *config.Config
	engine       stt.Engine
	ingestor     *audio.Ingestor
	segmenter    vad.Segmenter
	scheduler    *scheduler.Scheduler
	validator    *schema.Validator
	publisher    Publisher
	tracker      StageTracker
	metrics      *metrics.Metrics
	invocationID string
	ingestOpts   []audio.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher sets where results are published.
func WithPublisher(p Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

// WithStageTracker reports stage changes to t.
func WithStageTracker(t StageTracker) Option {
	return func(pl *Pipeline) { pl.tracker = t }
}

// WithInvocationID tags logs and events with id.
func WithInvocationID(id string) Option {
	return func(pl *Pipeline) { pl.invocationID = id }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithIngestOptions passes extra options to the audio ingestor.
func WithIngestOptions(opts ...audio.Option) Option {
	return func(pl *Pipeline) { pl.ingestOpts = append(pl.ingestOpts, opts...) }
}

// New builds a pipeline around engine.
func New(cfg *config.Config, engine stt.Engine, opts ...Option) (*Pipeline, error) {
	segmenter, err := vad.New(cfg.VAD)
	if err != nil {
		return nil, errors.Join(config.ErrInvalidConfig, err)
	}

	p := &Pipeline{
		cfg:       cfg,
		engine:    engine,
		segmenter: segmenter,
		validator: schema.New(),
		tracker:   noopTracker{},
		metrics:   metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(p)
	}

	ingestOpts := []audio.Option{
		audio.WithFFmpegPath(cfg.Audio.FFmpegPath),
		audio.WithSampleRate(cfg.Audio.SampleRateHz),
		audio.WithTempDir(cfg.Audio.TempDir),
	}
	p.ingestor = audio.NewIngestor(append(ingestOpts, p.ingestOpts...)...)

	schedOpts := []scheduler.Option{
		scheduler.WithMetrics(p.metrics),
		scheduler.WithInvocationID(p.invocationID),
	}
	if cfg.Pipeline.FallbackToHeuristic && engine.Name() != stt.EngineHeuristic {
		schedOpts = append(schedOpts, scheduler.WithFallback(heuristic.New()))
	}
	p.scheduler = scheduler.New(scheduler.ConfigFrom(cfg.Pipeline), engine, schedOpts...)
	return p, nil
}

// Run transcribes the file at path. A non-nil error means no result could
// be built (missing file, decode failure, cancelled invocation); engine
// failures are reported inside the result instead.
func (p *Pipeline) Run(ctx context.Context, path string) (*models.TranscriptionResult, error) {
	start := time.Now()
	logger := logging.WithInvocation(p.invocationID, path)

	p.tracker.SetStage(app.StageIngesting)
	buf, err := p.ingestor.Ingest(ctx, path)
	if err != nil {
		p.fail(start)
		return nil, err
	}
	p.metrics.RecordAudio(buf.Duration())

	p.tracker.SetStage(app.StageSegmenting)
	spans := p.segmenter.Segment(buf)
	logger.Info().
		Str("strategy", p.segmenter.Name()).
		Int("spans", len(spans)).
		Float64("durationSeconds", buf.Duration()).
		Msg("Audio segmented")

	p.tracker.SetStage(app.StageTranscribing)
	report, err := p.scheduler.Schedule(ctx, buf, spans)
	p.metrics.RecordSpans(p.segmenter.Name(), len(spans), report.Dropped)
	if report.Dropped > 0 {
		logger.Warn().
			Int("dropped", report.Dropped).
			Int("maxUnits", p.cfg.Pipeline.MaxUnits).
			Msg("Spans beyond the unit ceiling were not transcribed")
	}

	var result *models.TranscriptionResult
	var fatal *scheduler.FatalError
	switch {
	case errors.As(err, &fatal):
		logger.Error().Err(fatal.Err).Int("unit", fatal.Index).Msg("Fatal engine error, invocation failed")
		result = models.Failed(report.Engine, fatal.Err, analysis.Neutral())
	case err != nil:
		p.fail(start)
		return nil, err
	default:
		p.tracker.SetStage(app.StageMerging)
		result = merger.Merge(report.Outcomes, spans, report.Engine)

		p.tracker.SetStage(app.StageAnalyzing)
		result.Analysis = analysis.Analyze(result.Text, result.Segments)
		for _, w := range result.Analysis.CriticalWords {
			p.metrics.RecordCriticalWord(w)
		}
		p.metrics.RecordSegments(len(result.Segments))
	}

	if err := p.validator.Validate(result); err != nil {
		logger.Error().Err(err).Msg("Result failed validation")
	}

	if p.publisher != nil {
		p.tracker.SetStage(app.StagePublishing)
		if err := p.publisher.PublishInvocation(ctx, p.invocationID, path, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish invocation events")
		}
	}

	outcome := resultSuccess
	switch {
	case result.Error != "":
		outcome = resultFailed
		p.tracker.SetStage(app.StageFailed)
	case !result.Success:
		outcome = resultEmpty
		p.tracker.SetStage(app.StageDone)
	default:
		p.tracker.SetStage(app.StageDone)
	}
	p.metrics.RecordInvocation(outcome, time.Since(start).Seconds())

	logger.Info().
		Str("engine", result.Engine).
		Bool("success", result.Success).
		Bool("placeholder", result.Placeholder).
		Int("segments", len(result.Segments)).
		Float64("sentiment", result.Analysis.Sentiment).
		Dur("elapsed", time.Since(start)).
		Msg("Invocation finished")
	return result, nil
}

// Close releases the engine.
func (p *Pipeline) Close() error {
	return p.engine.Close()
}

func (p *Pipeline) fail(start time.Time) {
	p.tracker.SetStage(app.StageFailed)
	p.metrics.RecordInvocation(resultError, time.Since(start).Seconds())
}
