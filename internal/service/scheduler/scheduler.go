// Package scheduler fans work units out to a transcription engine with
// bounded concurrency and collects exactly one outcome per unit.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/observability/logging"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/segment"
	"ai-call-transcriber/internal/service/stt"
	"ai-call-transcriber/internal/service/vad"
)

// Default limits.
const (
	DefaultMaxWorkers = 4
	DefaultMaxUnits   = 10
)

var errAborted = errors.New("unit abandoned after fatal failure")

// Config holds scheduling limits and the engine failure policy.
type Config struct {
	MaxWorkers     int
	MaxUnits       int
	PerUnitTimeout time.Duration
	// FatalKinds are the error kinds that stop the run. Defaults to auth.
	FatalKinds []stt.ErrorKind
	// AllErrorsFatal makes every engine error fatal.
	AllErrorsFatal bool
	// FallbackToHeuristic swaps in the fallback engine on a fatal error
	// instead of aborting.
	FallbackToHeuristic bool
}

// ConfigFrom builds a scheduler Config from the pipeline settings.
func ConfigFrom(p config.PipelineConfig) Config {
	return Config{
		MaxWorkers:          p.MaxWorkers,
		MaxUnits:            p.MaxUnits,
		PerUnitTimeout:      p.PerUnitTimeout(),
		AllErrorsFatal:      p.EngineErrorsFatal,
		FallbackToHeuristic: p.FallbackToHeuristic,
	}
}

// Report is the ordered result of one Schedule call.
type Report struct {
	// Outcomes holds one entry per unit, in index order.
	Outcomes []Outcome
	// Dropped counts spans beyond the unit ceiling.
	Dropped int
	// Engine names the engine, or "<primary>+<fallback>" when the fallback ran.
	Engine   string
	FellBack bool
}

// Scheduler dispatches spans to an engine.
type Scheduler struct {
	cfg          Config
	engine       stt.Engine
	fallback     stt.Engine
	metrics      *metrics.Metrics
	invocationID string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFallback sets the engine used when FallbackToHeuristic triggers.
func WithFallback(e stt.Engine) Option {
	return func(s *Scheduler) { s.fallback = e }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithInvocationID tags unit logs with the invocation.
func WithInvocationID(id string) Option {
	return func(s *Scheduler) { s.invocationID = id }
}

// New creates a Scheduler.
func New(cfg Config, engine stt.Engine, opts ...Option) *Scheduler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxUnits <= 0 {
		cfg.MaxUnits = DefaultMaxUnits
	}
	if len(cfg.FatalKinds) == 0 {
		cfg.FatalKinds = []stt.ErrorKind{stt.KindAuth}
	}
	s := &Scheduler{
		cfg:     cfg,
		engine:  engine,
		metrics: metrics.DefaultMetrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type engineRef struct{ stt.Engine }

// Schedule transcribes up to MaxUnits spans of buf. The returned report
// always carries one outcome per unit, also when err is a *FatalError.
func (s *Scheduler) Schedule(ctx context.Context, buf *audio.Buffer, spans []vad.Span) (Report, error) {
	n := len(spans)
	report := Report{Engine: s.engine.Name()}
	if n > s.cfg.MaxUnits {
		report.Dropped = n - s.cfg.MaxUnits
		n = s.cfg.MaxUnits
	}
	report.Outcomes = make([]Outcome, n)
	if n == 0 {
		return report, nil
	}

	units := make([]*segment.Lifecycle, n)
	for i := range units {
		units[i] = segment.NewLifecycle(i)
	}

	var active atomic.Value
	active.Store(engineRef{s.engine})
	var fellBack atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(s.cfg.MaxWorkers, n))

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i, lc := i, units[i]
		clip := stt.Clip{
			Index:      i,
			Start:      spans[i].Start,
			End:        spans[i].End,
			Samples:    buf.Slice(spans[i].Start, spans[i].End),
			SampleRate: buf.SampleRate,
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if err := lc.Dispatch(); err != nil {
				return nil
			}

			eng := active.Load().(engineRef).Engine
			out, aborted := s.run(gctx, eng, clip)
			if aborted {
				return nil
			}
			if err := lc.Resolve(); err != nil {
				return nil
			}
			report.Outcomes[i] = out

			if out.Kind != KindEngineError || !s.isFatal(out.ErrorKind) {
				return nil
			}
			if s.cfg.FallbackToHeuristic && s.fallback != nil {
				if fellBack.CompareAndSwap(false, true) {
					active.Store(engineRef{s.fallback})
					s.metrics.RecordFallback(eng.Name(), s.fallback.Name())
					ul := logging.WithUnit(s.invocationID, i)
					ul.Warn().
						Err(out.Err).
						Str("from", eng.Name()).
						Str("to", s.fallback.Name()).
						Msg("Fatal engine error, switching remaining units to fallback engine")
				}
				return nil
			}
			return &FatalError{Index: i, Err: out.Err}
		})
	}

	err := g.Wait()

	for i, lc := range units {
		if lc.Abandon() {
			report.Outcomes[i] = Outcome{
				Index:     i,
				Kind:      KindEngineError,
				ErrorKind: stt.KindAborted,
				Err:       stt.NewError(s.engine.Name(), stt.KindAborted, errAborted),
				Engine:    s.engine.Name(),
			}
		}
	}

	if fellBack.Load() {
		report.FellBack = true
		report.Engine = s.engine.Name() + "+" + s.fallback.Name()
	}
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// run transcribes one clip. aborted reports that the group was cancelled
// while the unit was in flight.
func (s *Scheduler) run(ctx context.Context, eng stt.Engine, clip stt.Clip) (Outcome, bool) {
	logger := logging.WithUnit(s.invocationID, clip.Index).With().
		Str("engine", eng.Name()).
		Float64("start", clip.Start).
		Float64("end", clip.End).
		Logger()

	uctx, cancel := s.unitContext(ctx)
	defer cancel()

	start := time.Now()
	s.metrics.RecordUnitStart(eng.Name())
	tr, err := s.transcribe(uctx, eng, clip)
	latency := time.Since(start)

	out := Outcome{Index: clip.Index, Engine: eng.Name()}
	switch {
	case err == nil:
		out.Text = strings.TrimSpace(tr.Text)
		out.Confidence = tr.Confidence
		out.Speaker = tr.Speaker
		out.Placeholder = tr.Placeholder
		out.Kind = KindSuccess
		if out.Text == "" {
			out.Kind = KindEmpty
		}
	case errors.Is(err, stt.ErrNoSpeech):
		out.Kind = KindEmpty
	case ctx.Err() != nil:
		s.metrics.RecordUnitEnd(eng.Name(), "aborted", latency.Seconds())
		logger.Debug().Err(err).Msg("Unit abandoned")
		return out, true
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(uctx.Err(), context.DeadlineExceeded):
		out.Kind = KindTimeout
		out.Err = err
	default:
		out.Kind = KindEngineError
		out.ErrorKind = stt.KindOf(err)
		out.Err = err
		s.metrics.RecordEngineError(eng.Name(), string(out.ErrorKind))
	}
	s.metrics.RecordUnitEnd(eng.Name(), out.Kind.String(), latency.Seconds())

	ev := logger.Info()
	if out.Err != nil {
		ev = logger.Warn().Err(out.Err).Str("errorKind", string(out.ErrorKind))
	}
	logOutcome(ev, out, latency)
	return out, false
}

type engineResult struct {
	tr  stt.Transcript
	err error
}

// transcribe returns when the engine answers or ctx is done, whichever
// comes first. An engine that ignores ctx keeps running in the background
// and its late answer is discarded.
func (s *Scheduler) transcribe(ctx context.Context, eng stt.Engine, clip stt.Clip) (stt.Transcript, error) {
	done := make(chan engineResult, 1)
	go func() {
		tr, err := eng.Transcribe(ctx, clip)
		done <- engineResult{tr, err}
	}()

	select {
	case r := <-done:
		return r.tr, r.err
	case <-ctx.Done():
		return stt.Transcript{}, ctx.Err()
	}
}

func logOutcome(ev *zerolog.Event, out Outcome, latency time.Duration) {
	ev.Str("outcome", out.Kind.String()).
		Dur("latency", latency).
		Int("textLength", len(out.Text)).
		Msg("Unit resolved")
}

func (s *Scheduler) unitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.PerUnitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.PerUnitTimeout)
}

func (s *Scheduler) isFatal(kind stt.ErrorKind) bool {
	if kind == stt.KindAborted {
		return false
	}
	if s.cfg.AllErrorsFatal {
		return true
	}
	for _, k := range s.cfg.FatalKinds {
		if k == kind {
			return true
		}
	}
	return false
}
