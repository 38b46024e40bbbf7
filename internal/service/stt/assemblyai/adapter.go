// Package assemblyai provides an AssemblyAI cloud transcription engine.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability/logging"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/stt"
)

// ErrPollTimeout is returned when a job does not finish within MaxWait.
var ErrPollTimeout = errors.New("transcript job did not complete in time")

// Adapter implements stt.Engine with the AssemblyAI upload/submit/poll flow.
type Adapter struct {
	apiKey        string
	baseURL       string
	languageCode  string
	speakerLabels bool
	pollInterval  time.Duration
	maxWait       time.Duration

	client  *http.Client
	backOff func() backoff.BackOff
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithBackOff replaces the retry policy for individual HTTP calls.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(a *Adapter) { a.backOff = f }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an AssemblyAI engine. fallbackLanguage is used when cfg has
// no language of its own.
func New(cfg config.AssemblyAIConfig, fallbackLanguage string, opts ...Option) *Adapter {
	lang := cfg.LanguageCode
	if lang == "" {
		lang = fallbackLanguage
	}
	a := &Adapter{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		languageCode:  lang,
		speakerLabels: cfg.SpeakerLabels,
		pollInterval:  cfg.PollInterval,
		maxWait:       cfg.MaxWait,
		client:        &http.Client{Timeout: 60 * time.Second},
		backOff:       defaultBackOff,
		metrics:       metrics.DefaultMetrics,
		logger:        logging.WithComponent(stt.EngineAssemblyAI),
	}
	if a.pollInterval <= 0 {
		a.pollInterval = 2 * time.Second
	}
	if a.maxWait <= 0 {
		a.maxWait = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return stt.EngineAssemblyAI }

// Transcribe uploads the clip, submits a job and polls it to completion.
func (a *Adapter) Transcribe(ctx context.Context, clip stt.Clip) (stt.Transcript, error) {
	var wav bytes.Buffer
	if err := audio.WriteWAV(&wav, clip.Samples, clip.SampleRate); err != nil {
		return stt.Transcript{}, stt.NewError(stt.EngineAssemblyAI, stt.KindInternal, err)
	}

	var up uploadResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", wav.Bytes(), &up); err != nil {
		return stt.Transcript{}, err
	}
	if up.UploadURL == "" {
		return stt.Transcript{}, stt.NewError(stt.EngineAssemblyAI, stt.KindInternal, errors.New("upload returned no url"))
	}

	body, err := json.Marshal(transcriptRequest{
		AudioURL:      up.UploadURL,
		LanguageCode:  a.languageCode,
		SpeakerLabels: a.speakerLabels,
		Punctuate:     true,
		FormatText:    true,
	})
	if err != nil {
		return stt.Transcript{}, stt.NewError(stt.EngineAssemblyAI, stt.KindInternal, err)
	}

	var job transcriptResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v2/transcript", "application/json", body, &job); err != nil {
		return stt.Transcript{}, err
	}
	if job.ID == "" {
		return stt.Transcript{}, stt.NewError(stt.EngineAssemblyAI, stt.KindInternal, errors.New("submit returned no id"))
	}

	a.logger.Debug().
		Int("unit", clip.Index).
		Str("jobId", job.ID).
		Msg("Transcript job submitted")

	done, err := a.poll(ctx, job.ID)
	if err != nil {
		return stt.Transcript{}, err
	}
	return toTranscript(done)
}

// poll drives the job state machine: queued|processing until completed,
// error or MaxWait.
func (a *Adapter) poll(ctx context.Context, id string) (transcriptResponse, error) {
	deadline := time.Now().Add(a.maxWait)
	for {
		var st transcriptResponse
		if err := a.doJSON(ctx, http.MethodGet, "/v2/transcript/"+id, "", nil, &st); err != nil {
			return st, err
		}
		a.metrics.RecordPoll(stt.EngineAssemblyAI, st.Status)

		switch st.Status {
		case statusCompleted:
			return st, nil
		case statusError:
			return st, stt.NewError(stt.EngineAssemblyAI, stt.KindRejected, fmt.Errorf("job %s: %s", id, st.Error))
		case statusQueued, statusProcessing:
		default:
			a.logger.Warn().Str("jobId", id).Str("status", st.Status).Msg("Unknown job status, still waiting")
		}

		if !time.Now().Add(a.pollInterval).Before(deadline) {
			return st, stt.NewError(stt.EngineAssemblyAI, stt.KindUnavailable, fmt.Errorf("job %s: %w", id, ErrPollTimeout))
		}

		timer := time.NewTimer(a.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st, ctx.Err()
		case <-timer.C:
		}
	}
}

// Close is a no-op; the HTTP client holds no per-engine state.
func (a *Adapter) Close() error { return nil }

func toTranscript(r transcriptResponse) (stt.Transcript, error) {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{
		Text:       text,
		Confidence: r.Confidence,
		Speaker:    dominantSpeaker(r.Utterances),
	}, nil
}

// dominantSpeaker returns the speaker with the most utterance time. Label
// "A" is the agent, any other label is the client.
func dominantSpeaker(utts []utterance) models.Speaker {
	if len(utts) == 0 {
		return models.SpeakerUnknown
	}
	talk := make(map[string]int64)
	for _, u := range utts {
		talk[u.Speaker] += u.End - u.Start
	}
	labels := make([]string, 0, len(talk))
	for l := range talk {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	best := labels[0]
	for _, l := range labels[1:] {
		if talk[l] > talk[best] {
			best = l
		}
	}
	if best == "A" {
		return models.SpeakerAgent
	}
	return models.SpeakerClient
}
