// Package google provides a Google Cloud Speech-to-Text engine.
package google

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/service/stt"
)

// Config holds Google Speech recognition settings.
type Config struct {
	LanguageCode  string
	SampleRateHz  int
	Model         string
	AudioEncoding string
	Diarization   bool
}

// DefaultConfig returns the recognition settings for Brazilian Portuguese calls.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "pt-BR",
		SampleRateHz:  16000,
		Model:         "latest_long",
		AudioEncoding: "LINEAR16",
		Diarization:   true,
	}
}

// FromConfig merges the service configuration over DefaultConfig.
func FromConfig(cfg config.GoogleConfig, sampleRateHz int) Config {
	c := DefaultConfig()
	if cfg.LanguageCode != "" {
		c.LanguageCode = cfg.LanguageCode
	}
	if cfg.Model != "" {
		c.Model = cfg.Model
	}
	if cfg.AudioEncoding != "" {
		c.AudioEncoding = cfg.AudioEncoding
	}
	if sampleRateHz > 0 {
		c.SampleRateHz = sampleRateHz
	}
	c.Diarization = cfg.Diarization
	return c
}

// parseAudioEncoding converts a string to a Google Speech audio encoding.
func parseAudioEncoding(enc string) speechpb.RecognitionConfig_AudioEncoding {
	switch enc {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// recognizer is the part of speech.Client the engine uses.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

type clientRecognizer struct {
	c *speech.Client
}

func (r clientRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return r.c.Recognize(ctx, req)
}

func (r clientRecognizer) Close() error { return r.c.Close() }

// Adapter implements stt.Engine using synchronous Google Speech recognition.
type Adapter struct {
	client recognizer
	cfg    Config
}

// New creates a Google Speech engine. Credentials come from
// cfg.CredentialsFile when set, otherwise from application default credentials.
func New(ctx context.Context, cfg config.GoogleConfig, sampleRateHz int, m *metrics.Metrics) (*Adapter, error) {
	opts := []option.ClientOption{
		option.WithGRPCDialOption(grpc.WithUnaryInterceptor(observability.UnaryClientInterceptor(m))),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, stt.NewError(stt.EngineGoogle, stt.KindAuth, err)
	}
	return newWithRecognizer(clientRecognizer{c: c}, FromConfig(cfg, sampleRateHz)), nil
}

func newWithRecognizer(r recognizer, cfg Config) *Adapter {
	return &Adapter{client: r, cfg: cfg}
}

func (a *Adapter) Name() string { return stt.EngineGoogle }

// Transcribe recognizes one clip.
func (a *Adapter) Transcribe(ctx context.Context, clip stt.Clip) (stt.Transcript, error) {
	rate := clip.SampleRate
	if rate <= 0 {
		rate = a.cfg.SampleRateHz
	}

	rc := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
		SampleRateHertz:            int32(rate),
		LanguageCode:               a.cfg.LanguageCode,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		Model:                      a.cfg.Model,
	}
	if a.cfg.Diarization {
		rc.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          2,
			MaxSpeakerCount:          2,
		}
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: rc,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm16(clip.Samples)},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return stt.Transcript{}, ctx.Err()
		}
		return stt.Transcript{}, classify(err)
	}
	return toTranscript(resp)
}

// Close releases the gRPC connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}

// classify maps gRPC status codes to engine error kinds.
func classify(err error) error {
	kind := stt.KindInternal
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = stt.KindAuth
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		kind = stt.KindUnavailable
	case codes.InvalidArgument:
		kind = stt.KindRejected
	}
	return stt.NewError(stt.EngineGoogle, kind, err)
}

func toTranscript(resp *speechpb.RecognizeResponse) (stt.Transcript, error) {
	var (
		parts []string
		conf  float64
		n     int
		words []*speechpb.WordInfo
	)
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		best := alts[0]
		if t := strings.TrimSpace(best.GetTranscript()); t != "" {
			parts = append(parts, t)
			conf += float64(best.GetConfidence())
			n++
		}
		words = append(words, best.GetWords()...)
	}
	if n == 0 {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: conf / float64(n),
		Speaker:    dominantSpeaker(words),
	}, nil
}

// dominantSpeaker returns the speaker tag with the most word time. Tag 1 is
// the agent, other tags are the client, and untagged words are ignored.
func dominantSpeaker(words []*speechpb.WordInfo) models.Speaker {
	talk := make(map[int32]time.Duration)
	for _, w := range words {
		tag := w.GetSpeakerTag()
		if tag == 0 {
			continue
		}
		talk[tag] += w.GetEndTime().AsDuration() - w.GetStartTime().AsDuration()
	}
	if len(talk) == 0 {
		return models.SpeakerUnknown
	}

	var best int32
	for tag, d := range talk {
		if best == 0 || d > talk[best] || (d == talk[best] && tag < best) {
			best = tag
		}
	}
	if best == 1 {
		return models.SpeakerAgent
	}
	return models.SpeakerClient
}

// pcm16 encodes samples as little-endian LINEAR16 bytes.
func pcm16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
