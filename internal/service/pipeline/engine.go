package pipeline

import (
	"context"
	"fmt"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/service/stt"
	"ai-call-transcriber/internal/service/stt/assemblyai"
	"ai-call-transcriber/internal/service/stt/google"
	"ai-call-transcriber/internal/service/stt/heuristic"
	"ai-call-transcriber/internal/service/stt/whisper"
)

// NewEngine builds the transcription engine selected by cfg.Pipeline.Engine.
func NewEngine(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (stt.Engine, error) {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	p := cfg.Pipeline
	switch p.Engine {
	case config.EngineCloudAPI:
		switch p.CloudProvider {
		case config.ProviderAssemblyAI, "":
			return assemblyai.New(cfg.AssemblyAI, p.LanguageCode, assemblyai.WithMetrics(m)), nil
		case config.ProviderGoogle:
			eng, err := google.New(ctx, cfg.Google, cfg.Audio.SampleRateHz, m)
			if err != nil {
				return nil, err
			}
			return eng, nil
		default:
			return nil, fmt.Errorf("%w: unknown cloudProvider %q", config.ErrInvalidConfig, p.CloudProvider)
		}
	case config.EngineLocalModel:
		return whisper.New(cfg.Whisper, p.LanguageCode, whisper.WithTempDir(cfg.Audio.TempDir)), nil
	case config.EngineHeuristic, "":
		return heuristic.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", config.ErrInvalidConfig, p.Engine)
	}
}
