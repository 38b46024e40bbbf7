package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ai-call-transcriber/internal/service/stt"
)

const maxResponseBytes = 8 << 20

// Job statuses reported by the transcript endpoint.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusError      = "error"
)

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	LanguageCode  string `json:"language_code,omitempty"`
	SpeakerLabels bool   `json:"speaker_labels"`
	Punctuate     bool   `json:"punctuate"`
	FormatText    bool   `json:"format_text"`
}

type utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"` // ms
	End     int64  `json:"end"`   // ms
}

type transcriptResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Error      string      `json:"error"`
	Utterances []utterance `json:"utterances"`
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second
	return bo
}

// doJSON sends one request and decodes the JSON answer into target.
// Network failures and 5xx/429 answers are retried; other 4xx are permanent.
func (a *Adapter) doJSON(ctx context.Context, method, path, contentType string, body []byte, target any) error {
	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(stt.NewError(stt.EngineAssemblyAI, stt.KindInternal, err))
		}
		req.Header.Set("authorization", a.apiKey)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return stt.NewError(stt.EngineAssemblyAI, stt.KindUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return stt.NewError(stt.EngineAssemblyAI, stt.KindUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(stt.NewError(stt.EngineAssemblyAI, stt.KindAuth, statusErr(resp.StatusCode, data)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return stt.NewError(stt.EngineAssemblyAI, stt.KindUnavailable, statusErr(resp.StatusCode, data))
		case resp.StatusCode >= 400:
			return backoff.Permanent(stt.NewError(stt.EngineAssemblyAI, stt.KindRejected, statusErr(resp.StatusCode, data)))
		}

		if err := json.Unmarshal(data, target); err != nil {
			return backoff.Permanent(stt.NewError(stt.EngineAssemblyAI, stt.KindInternal,
				fmt.Errorf("decode %s %s: %w", method, path, err)))
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(a.backOff(), ctx))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func statusErr(code int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return fmt.Errorf("http %d: %s", code, msg)
}
