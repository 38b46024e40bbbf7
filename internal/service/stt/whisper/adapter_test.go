package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/service/audio"
	"ai-call-transcriber/internal/service/stt"
)

type fakeRunner struct {
	out  string
	err  error
	name string
	args []string
	wav  []byte
}

func (f *fakeRunner) Output(ctx context.Context, name string, args []string) ([]byte, error) {
	f.name, f.args = name, args
	for i, a := range args {
		if a == "--audio" {
			f.wav, _ = os.ReadFile(args[i+1])
		}
	}
	return []byte(f.out), f.err
}

func clip() stt.Clip {
	return stt.Clip{Index: 2, Start: 3, End: 3.01, Samples: make([]int16, 160), SampleRate: 16000}
}

func subprocessAdapter(t *testing.T, r Runner) *Adapter {
	cfg := config.Default().Whisper
	return New(cfg, "pt", WithRunner(r), WithTempDir(t.TempDir()))
}

func TestAdapter_Subprocess(t *testing.T) {
	r := &fakeRunner{out: `{"text":" Olá, bom dia! ","segments":[{"start":0,"end":1,"text":"Olá, bom dia!"}],"language":"pt","confidence":0.8}`}
	a := subprocessAdapter(t, r)
	defer a.Close()

	tr, err := a.Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "Olá, bom dia!" {
		t.Errorf("expected trimmed text, got %q", tr.Text)
	}
	if tr.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", tr.Confidence)
	}
	if r.name != "python3" {
		t.Errorf("expected python3, got %s", r.name)
	}
	joined := strings.Join(r.args, " ")
	for _, want := range []string{"--model base", "--language pt", "--audio "} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %s", want, joined)
		}
	}
	if !strings.HasPrefix(string(r.wav), "RIFF") {
		t.Error("expected a WAV file to be passed to the helper")
	}

	script := r.args[0]
	if _, err := os.Stat(script); err != nil {
		t.Errorf("expected helper script to exist: %v", err)
	}
	a.Close()
	if _, err := os.Stat(script); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected helper script to be removed, got %v", err)
	}
}

func TestAdapter_SubprocessJoinsSegmentsWhenTextMissing(t *testing.T) {
	r := &fakeRunner{out: `{"segments":[{"text":" bom "},{"text":""},{"text":"dia"}]}`}
	tr, err := subprocessAdapter(t, r).Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "bom dia" {
		t.Errorf("expected 'bom dia', got %q", tr.Text)
	}
}

func TestAdapter_SubprocessErrors(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeRunner
		want stt.ErrorKind
	}{
		{"missing binary", &fakeRunner{err: &exec.Error{Name: "python3", Err: exec.ErrNotFound}}, stt.KindUnavailable},
		{"non-zero exit", &fakeRunner{err: &exec.ExitError{Stderr: []byte("ModuleNotFoundError: whisper")}}, stt.KindInternal},
		{"bad json", &fakeRunner{out: "not json"}, stt.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := subprocessAdapter(t, tt.r).Transcribe(context.Background(), clip())
			if got := stt.KindOf(err); got != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

func TestAdapter_EmptyTextIsNoSpeech(t *testing.T) {
	_, err := subprocessAdapter(t, &fakeRunner{out: `{"text":"","segments":[]}`}).Transcribe(context.Background(), clip())
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestAdapter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{err: fmt.Errorf("signal: killed")}

	_, err := subprocessAdapter(t, r).Transcribe(ctx, clip())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAdapter_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" {
			t.Errorf("expected /transcribe, got %s", r.URL.Path)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			return
		}
		buf, err := audio.ReadWAV(f)
		if err != nil {
			t.Errorf("expected WAV upload: %v", err)
			return
		}
		if len(buf.Samples) != 160 {
			t.Errorf("expected 160 samples, got %d", len(buf.Samples))
		}
		io.WriteString(w, `{"segments":[{"start":0,"end":0.01,"text":"quero cancelar"}],"language":"pt"}`)
	}))
	defer srv.Close()

	cfg := config.WhisperConfig{Mode: config.WhisperModeHTTP, URL: srv.URL + "/"}
	tr, err := New(cfg, "pt").Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "quero cancelar" {
		t.Errorf("expected 'quero cancelar', got %q", tr.Text)
	}
}

func TestAdapter_HTTPStatusKinds(t *testing.T) {
	tests := []struct {
		status int
		want   stt.ErrorKind
	}{
		{http.StatusBadGateway, stt.KindUnavailable},
		{http.StatusUnprocessableEntity, stt.KindRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			cfg := config.WhisperConfig{Mode: config.WhisperModeHTTP, URL: srv.URL}
			_, err := New(cfg, "pt").Transcribe(context.Background(), clip())
			if got := stt.KindOf(err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAdapter_HTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.WhisperConfig{Mode: config.WhisperModeHTTP, URL: url}
	_, err := New(cfg, "pt").Transcribe(context.Background(), clip())
	if got := stt.KindOf(err); got != stt.KindUnavailable {
		t.Errorf("expected unavailable, got %s", got)
	}
}
