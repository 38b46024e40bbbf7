// Package whisper provides a local Whisper model engine, run either as an
// embedded Python helper or behind an HTTP ASR service.
package whisper

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/observability/logging"
	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/stt"
)

//go:embed assets/whisper_transcribe.py
var helperScript []byte

// Runner executes a program and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// output is the JSON produced by the helper and the HTTP service.
type output struct {
	Text       string    `json:"text"`
	Segments   []segment `json:"segments"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
}

// Adapter implements stt.Engine with a local Whisper model.
type Adapter struct {
	mode     string
	python   string
	model    string
	language string
	url      string
	tempDir  string

	runner Runner
	client *http.Client
	logger zerolog.Logger

	scriptOnce sync.Once
	scriptPath string
	scriptErr  error
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRunner replaces the process runner.
func WithRunner(r Runner) Option {
	return func(a *Adapter) { a.runner = r }
}

// WithHTTPClient replaces the HTTP client used in http mode.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

// WithTempDir sets where per-unit WAV files and the helper are written.
func WithTempDir(dir string) Option {
	return func(a *Adapter) { a.tempDir = dir }
}

// New creates a Whisper engine.
func New(cfg config.WhisperConfig, language string, opts ...Option) *Adapter {
	a := &Adapter{
		mode:     cfg.Mode,
		python:   cfg.Python,
		model:    cfg.Model,
		language: language,
		url:      strings.TrimRight(cfg.URL, "/"),
		runner:   execRunner{},
		client:   &http.Client{Timeout: 10 * time.Minute},
		logger:   logging.WithComponent(stt.EngineWhisper),
	}
	if a.mode == "" {
		a.mode = config.WhisperModeSubprocess
	}
	if a.python == "" {
		a.python = "python3"
	}
	if a.model == "" {
		a.model = "base"
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return stt.EngineWhisper }

// Transcribe runs the model over one clip.
func (a *Adapter) Transcribe(ctx context.Context, clip stt.Clip) (stt.Transcript, error) {
	var (
		out output
		err error
	)
	if a.mode == config.WhisperModeHTTP {
		out, err = a.transcribeHTTP(ctx, clip)
	} else {
		out, err = a.transcribeSubprocess(ctx, clip)
	}
	if err != nil {
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		return stt.Transcript{}, err
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		parts := make([]string, 0, len(out.Segments))
		for _, s := range out.Segments {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, " ")
	}
	if text == "" {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{Text: text, Confidence: out.Confidence}, nil
}

func (a *Adapter) transcribeSubprocess(ctx context.Context, clip stt.Clip) (output, error) {
	script, err := a.helper()
	if err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}

	wav, err := os.CreateTemp(a.tempDir, fmt.Sprintf("unit-%d-*.wav", clip.Index))
	if err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}
	defer os.Remove(wav.Name())
	if err := audio.WriteWAV(wav, clip.Samples, clip.SampleRate); err != nil {
		wav.Close()
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}
	if err := wav.Close(); err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}

	args := []string{script, "--audio", wav.Name(), "--model", a.model, "--language", a.language}
	raw, err := a.runner.Output(ctx, a.python, args)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return output{}, stt.NewError(stt.EngineWhisper, stt.KindUnavailable, err)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal,
				fmt.Errorf("helper exited %d: %s", ee.ExitCode(), strings.TrimSpace(string(ee.Stderr))))
		}
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}

	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, fmt.Errorf("parse helper output: %w", err))
	}
	a.logger.Debug().Int("unit", clip.Index).Str("language", out.Language).Int("segments", len(out.Segments)).Msg("Helper finished")
	return out, nil
}

func (a *Adapter) transcribeHTTP(ctx context.Context, clip stt.Clip) (output, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("file", fmt.Sprintf("unit-%d.wav", clip.Index))
	if err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}
	if err := audio.WriteWAV(fw, clip.Samples, clip.SampleRate); err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}
	if err := w.Close(); err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/transcribe", &b)
	if err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		kind := stt.KindRejected
		if resp.StatusCode >= 500 {
			kind = stt.KindUnavailable
		}
		return output{}, stt.NewError(stt.EngineWhisper, kind, fmt.Errorf("asr %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var out output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return output{}, stt.NewError(stt.EngineWhisper, stt.KindInternal, fmt.Errorf("asr decode: %w", err))
	}
	return out, nil
}

// helper writes the embedded script once per engine.
func (a *Adapter) helper() (string, error) {
	a.scriptOnce.Do(func() {
		f, err := os.CreateTemp(a.tempDir, "whisper-helper-*.py")
		if err != nil {
			a.scriptErr = fmt.Errorf("write helper script: %w", err)
			return
		}
		_, err = f.Write(helperScript)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(f.Name())
			a.scriptErr = fmt.Errorf("write helper script: %w", err)
			return
		}
		a.scriptPath = f.Name()
	})
	return a.scriptPath, a.scriptErr
}

// Close removes the helper script.
func (a *Adapter) Close() error {
	if a.scriptPath == "" {
		return nil
	}
	err := os.Remove(a.scriptPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
