package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/service/stt"
)

type fakeRecognizer struct {
	resp   *speechpb.RecognizeResponse
	err    error
	got    *speechpb.RecognizeRequest
	closed bool
}

func (f *fakeRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	f.got = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error {
	f.closed = true
	return nil
}

func word(tag int32, start, end time.Duration) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		SpeakerTag: tag,
		StartTime:  durationpb.New(start),
		EndTime:    durationpb.New(end),
	}
}

func result(text string, conf float32, words ...*speechpb.WordInfo) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: conf, Words: words}},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "pt-BR" {
		t.Errorf("expected default language 'pt-BR', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.Model != "latest_long" {
		t.Errorf("expected default model 'latest_long', got %s", cfg.Model)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.GoogleConfig{LanguageCode: "es-ES", AudioEncoding: "FLAC"}, 8000)

	if cfg.LanguageCode != "es-ES" {
		t.Errorf("expected language 'es-ES', got %s", cfg.LanguageCode)
	}
	if cfg.Model != "latest_long" {
		t.Errorf("expected default model kept, got %s", cfg.Model)
	}
	if cfg.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.SampleRateHz)
	}
	if cfg.Diarization {
		t.Error("expected diarization off when not configured")
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"linear16", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},         // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestAdapter_Transcribe(t *testing.T) {
	fake := &fakeRecognizer{resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result("Olá, bom dia!", 0.9, word(1, 0, 800*time.Millisecond)),
		result("Tudo bem?", 0.7, word(2, time.Second, 1200*time.Millisecond)),
	}}}
	a := newWithRecognizer(fake, DefaultConfig())

	tr, err := a.Transcribe(context.Background(), stt.Clip{Samples: []int16{1, -1, 2}, SampleRate: 16000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Text != "Olá, bom dia! Tudo bem?" {
		t.Errorf("unexpected text %q", tr.Text)
	}
	if tr.Confidence < 0.799 || tr.Confidence > 0.801 {
		t.Errorf("expected mean confidence 0.8, got %v", tr.Confidence)
	}
	if tr.Speaker != models.SpeakerAgent {
		t.Errorf("expected agent, got %v", tr.Speaker)
	}

	cfg := fake.got.GetConfig()
	if cfg.GetLanguageCode() != "pt-BR" || cfg.GetSampleRateHertz() != 16000 || !cfg.GetEnableAutomaticPunctuation() {
		t.Errorf("unexpected recognition config: %v", cfg)
	}
	if got := len(fake.got.GetAudio().GetContent()); got != 6 {
		t.Errorf("expected 6 bytes of PCM, got %d", got)
	}
}

func TestAdapter_NoResults(t *testing.T) {
	a := newWithRecognizer(&fakeRecognizer{resp: &speechpb.RecognizeResponse{}}, DefaultConfig())

	_, err := a.Transcribe(context.Background(), stt.Clip{SampleRate: 16000})
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
}

func TestAdapter_ErrorKinds(t *testing.T) {
	tests := []struct {
		code codes.Code
		want stt.ErrorKind
	}{
		{codes.Unauthenticated, stt.KindAuth},
		{codes.PermissionDenied, stt.KindAuth},
		{codes.Unavailable, stt.KindUnavailable},
		{codes.ResourceExhausted, stt.KindUnavailable},
		{codes.DeadlineExceeded, stt.KindUnavailable},
		{codes.InvalidArgument, stt.KindRejected},
		{codes.Internal, stt.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			a := newWithRecognizer(&fakeRecognizer{err: status.Error(tt.code, "x")}, DefaultConfig())
			_, err := a.Transcribe(context.Background(), stt.Clip{SampleRate: 16000})
			if got := stt.KindOf(err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAdapter_Close(t *testing.T) {
	fake := &fakeRecognizer{}
	if err := newWithRecognizer(fake, DefaultConfig()).Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.closed {
		t.Error("expected client to be closed")
	}
}

func TestDominantSpeaker_Untagged(t *testing.T) {
	if got := dominantSpeaker([]*speechpb.WordInfo{word(0, 0, time.Second)}); got != models.SpeakerUnknown {
		t.Errorf("expected unknown, got %v", got)
	}
}
