package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ai-call-transcriber/internal/observability/logging"
)

// Ingest errors.
var (
	ErrFileNotFound = errors.New("audio file not found")
	ErrDecode       = errors.New("audio decode failed")
)

// DecodeError carries the codec's diagnostic output.
type DecodeError struct {
	Path   string
	Output string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s: %v", e.Path, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Is reports ErrDecode so callers can match with errors.Is.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func (e *DecodeError) Unwrap() error { return e.Err }

// CommandRunner executes an external program and returns its combined output.
type CommandRunner interface {
	CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) CombinedOutput(ctx context.Context, name string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Ingestor decodes recordings to 16 kHz mono PCM through ffmpeg.
type Ingestor struct {
	ffmpegPath string
	sampleRate int
	tempDir    string
	cmd        CommandRunner
	logger     zerolog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithFFmpegPath sets the ffmpeg binary.
func WithFFmpegPath(path string) Option {
	return func(i *Ingestor) {
		if path != "" {
			i.ffmpegPath = path
		}
	}
}

// WithSampleRate sets the normalized sample rate.
func WithSampleRate(hz int) Option {
	return func(i *Ingestor) {
		if hz > 0 {
			i.sampleRate = hz
		}
	}
}

// WithTempDir sets where the normalized artifact is written.
func WithTempDir(dir string) Option {
	return func(i *Ingestor) { i.tempDir = dir }
}

// WithCommandRunner replaces the process runner (used by tests).
func WithCommandRunner(r CommandRunner) Option {
	return func(i *Ingestor) { i.cmd = r }
}

// NewIngestor creates an Ingestor.
func NewIngestor(opts ...Option) *Ingestor {
	i := &Ingestor{
		ffmpegPath: "ffmpeg",
		sampleRate: DefaultSampleRate,
		cmd:        execRunner{},
		logger:     logging.WithComponent("audio"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest decodes path into a mono buffer at the configured sample rate.
// The temporary WAV produced by ffmpeg is removed before returning.
func (i *Ingestor) Ingest(ctx context.Context, path string) (*Buffer, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	tmp, err := os.CreateTemp(i.tempDir, "call-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(i.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		tmpPath,
	}
	i.logger.Debug().Str("path", path).Strs("args", args).Msg("Decoding audio")

	if out, err := i.cmd.CombinedOutput(ctx, i.ffmpegPath, args); err != nil {
		return nil, &DecodeError{Path: path, Output: tail(string(out), 512), Err: err}
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	buf, err := ReadWAV(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if buf.SampleRate != i.sampleRate {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("expected %d Hz, codec produced %d Hz", i.sampleRate, buf.SampleRate)}
	}

	i.logger.Info().
		Str("path", path).
		Int("sampleRate", buf.SampleRate).
		Float64("durationSeconds", buf.Duration()).
		Msg("Audio ingested")
	return buf, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
