// Package config loads the transcriber configuration from defaults, an optional
// YAML file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine selectors.
const (
	EngineCloudAPI   = "cloudApi"
	EngineLocalModel = "localModel"
	EngineHeuristic  = "heuristic"
)

// Cloud providers backing the cloudApi engine.
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderGoogle     = "google"
)

// VAD strategies.
const (
	VADEnergyThreshold = "energyThreshold"
	VADSilenceGap      = "silenceGap"
)

// Local model invocation modes.
const (
	WhisperModeSubprocess = "subprocess"
	WhisperModeHTTP       = "http"
)

var (
	// ErrInvalidConfig is returned by Validate when an option is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrMissingCredentials is returned by Validate when the selected engine has no credentials.
	ErrMissingCredentials = errors.New("missing engine credentials")
)

// Config holds all transcriber configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	VAD           VADConfig           `yaml:"vad"`
	Audio         AudioConfig         `yaml:"audio"`
	AssemblyAI    AssemblyAIConfig    `yaml:"assemblyai"`
	Google        GoogleConfig        `yaml:"google"`
	Whisper       WhisperConfig       `yaml:"whisper"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds process identity settings.
type ServiceConfig struct {
	Principal   string `yaml:"principal"`
	Environment string `yaml:"environment"`
}

// PipelineConfig holds engine selection and scheduling settings.
type PipelineConfig struct {
	Engine                string  `yaml:"engine"`
	CloudProvider         string  `yaml:"cloudProvider"`
	LanguageCode          string  `yaml:"languageCode"`
	MaxWorkers            int     `yaml:"maxWorkers"`
	PerUnitTimeoutSeconds float64 `yaml:"perUnitTimeoutSeconds"`
	MaxUnits              int     `yaml:"maxUnits"`
	EngineErrorsFatal     bool    `yaml:"engineErrorsFatal"`
	FallbackToHeuristic   bool    `yaml:"fallbackToHeuristic"`
}

// PerUnitTimeout returns the per-unit timeout as a duration.
func (p PipelineConfig) PerUnitTimeout() time.Duration {
	return time.Duration(p.PerUnitTimeoutSeconds * float64(time.Second))
}

// VADConfig holds segmentation settings.
type VADConfig struct {
	Strategy        string        `yaml:"strategy"`
	ThresholdRatio  float64       `yaml:"thresholdRatio"`
	WindowSeconds   float64       `yaml:"windowSeconds"`
	MergeGapSeconds float64       `yaml:"mergeGapSeconds"`
	SilenceOffsetDB float64       `yaml:"silenceOffsetDb"`
	MinSilence      time.Duration `yaml:"minSilence"`
	KeepSilence     time.Duration `yaml:"keepSilence"`
}

// AudioConfig holds decoding settings.
type AudioConfig struct {
	FFmpegPath   string `yaml:"ffmpegPath"`
	SampleRateHz int    `yaml:"sampleRateHz"`
	TempDir      string `yaml:"tempDir"`
}

// AssemblyAIConfig holds the AssemblyAI cloud engine settings.
type AssemblyAIConfig struct {
	APIKey        string        `yaml:"apiKey"`
	BaseURL       string        `yaml:"baseUrl"`
	LanguageCode  string        `yaml:"languageCode"`
	SpeakerLabels bool          `yaml:"speakerLabels"`
	PollInterval  time.Duration `yaml:"pollInterval"`
	MaxWait       time.Duration `yaml:"maxWait"`
}

// GoogleConfig holds the Google Cloud Speech engine settings.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentialsFile"`
	Endpoint        string `yaml:"endpoint"`
	LanguageCode    string `yaml:"languageCode"`
	Model           string `yaml:"model"`
	AudioEncoding   string `yaml:"audioEncoding"`
	Diarization     bool   `yaml:"diarization"`
}

// WhisperConfig holds the local model engine settings.
type WhisperConfig struct {
	Mode   string `yaml:"mode"`
	Python string `yaml:"python"`
	Model  string `yaml:"model"`
	URL    string `yaml:"url"`
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicSegment string   `yaml:"topicSegment"`
	TopicResult  string   `yaml:"topicResult"`
	Principal    string   `yaml:"principal"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"logLevel"`
	LogFormat      string `yaml:"logFormat"`
	MetricsAddr    string `yaml:"metricsAddr"`
	PushgatewayURL string `yaml:"pushgatewayUrl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   "svc-call-transcriber",
			Environment: "prod",
		},
		Pipeline: PipelineConfig{
			Engine:                EngineHeuristic,
			CloudProvider:         ProviderAssemblyAI,
			LanguageCode:          "pt",
			MaxWorkers:            4,
			PerUnitTimeoutSeconds: 120,
			MaxUnits:              10,
		},
		VAD: VADConfig{
			Strategy:        VADEnergyThreshold,
			ThresholdRatio:  0.15,
			WindowSeconds:   0.5,
			MergeGapSeconds: 2,
			SilenceOffsetDB: -16,
			MinSilence:      time.Second,
			KeepSilence:     500 * time.Millisecond,
		},
		Audio: AudioConfig{
			FFmpegPath:   "ffmpeg",
			SampleRateHz: 16000,
		},
		AssemblyAI: AssemblyAIConfig{
			BaseURL:       "https://api.assemblyai.com",
			SpeakerLabels: true,
			PollInterval:  2 * time.Second,
			MaxWait:       5 * time.Minute,
		},
		Google: GoogleConfig{
			LanguageCode:  "pt-BR",
			Model:         "latest_long",
			AudioEncoding: "LINEAR16",
			Diarization:   true,
		},
		Whisper: WhisperConfig{
			Mode:   WhisperModeSubprocess,
			Python: "python3",
			Model:  "base",
		},
		Kafka: KafkaConfig{
			TopicSegment: "call.transcript.segment",
			TopicResult:  "call.transcript.completed",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.Environment = envOrDefault("ENV", cfg.Service.Environment)

	p := &cfg.Pipeline
	p.Engine = envOrDefault("TRANSCRIBE_ENGINE", p.Engine)
	p.CloudProvider = envOrDefault("CLOUD_PROVIDER", p.CloudProvider)
	p.LanguageCode = envOrDefault("LANGUAGE_CODE", p.LanguageCode)
	p.MaxWorkers = envOrDefaultInt("MAX_WORKERS", p.MaxWorkers)
	p.PerUnitTimeoutSeconds = envOrDefaultFloat("PER_UNIT_TIMEOUT_SECONDS", p.PerUnitTimeoutSeconds)
	p.MaxUnits = envOrDefaultInt("MAX_UNITS", p.MaxUnits)
	p.EngineErrorsFatal = envOrDefaultBool("ENGINE_ERRORS_FATAL", p.EngineErrorsFatal)
	p.FallbackToHeuristic = envOrDefaultBool("FALLBACK_TO_HEURISTIC", p.FallbackToHeuristic)

	v := &cfg.VAD
	v.Strategy = envOrDefault("VAD_STRATEGY", v.Strategy)
	v.ThresholdRatio = envOrDefaultFloat("VAD_THRESHOLD_RATIO", v.ThresholdRatio)
	v.MergeGapSeconds = envOrDefaultFloat("VAD_MERGE_GAP_SECONDS", v.MergeGapSeconds)
	v.SilenceOffsetDB = envOrDefaultFloat("VAD_SILENCE_OFFSET_DB", v.SilenceOffsetDB)
	v.MinSilence = envOrDefaultDuration("VAD_MIN_SILENCE", v.MinSilence)
	v.KeepSilence = envOrDefaultDuration("VAD_KEEP_SILENCE", v.KeepSilence)

	cfg.Audio.FFmpegPath = envOrDefault("FFMPEG_PATH", cfg.Audio.FFmpegPath)
	cfg.Audio.TempDir = envOrDefault("AUDIO_TEMP_DIR", cfg.Audio.TempDir)

	a := &cfg.AssemblyAI
	a.APIKey = envOrDefault("ASSEMBLYAI_API_KEY", a.APIKey)
	a.BaseURL = envOrDefault("ASSEMBLYAI_BASE_URL", a.BaseURL)
	a.LanguageCode = envOrDefault("ASSEMBLYAI_LANGUAGE_CODE", a.LanguageCode)
	a.SpeakerLabels = envOrDefaultBool("ASSEMBLYAI_SPEAKER_LABELS", a.SpeakerLabels)
	a.PollInterval = envOrDefaultDuration("ASSEMBLYAI_POLL_INTERVAL", a.PollInterval)
	a.MaxWait = envOrDefaultDuration("ASSEMBLYAI_MAX_WAIT", a.MaxWait)

	g := &cfg.Google
	g.CredentialsFile = envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", g.CredentialsFile)
	g.Endpoint = envOrDefault("GOOGLE_SPEECH_ENDPOINT", g.Endpoint)
	g.LanguageCode = envOrDefault("GOOGLE_LANGUAGE_CODE", g.LanguageCode)
	g.Model = envOrDefault("GOOGLE_SPEECH_MODEL", g.Model)
	g.AudioEncoding = envOrDefault("GOOGLE_AUDIO_ENCODING", g.AudioEncoding)
	g.Diarization = envOrDefaultBool("GOOGLE_DIARIZATION", g.Diarization)

	w := &cfg.Whisper
	w.Mode = envOrDefault("WHISPER_MODE", w.Mode)
	w.Python = envOrDefault("WHISPER_PYTHON", w.Python)
	w.Model = envOrDefault("WHISPER_MODEL", w.Model)
	w.URL = envOrDefault("WHISPER_URL", w.URL)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultSlice("KAFKA_BROKERS", k.Brokers)
	k.TopicSegment = envOrDefault("KAFKA_TOPIC_SEGMENT", k.TopicSegment)
	k.TopicResult = envOrDefault("KAFKA_TOPIC_RESULT", k.TopicResult)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = cfg.Service.Principal
	}

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
	o.MetricsAddr = envOrDefault("METRICS_ADDR", o.MetricsAddr)
	o.PushgatewayURL = envOrDefault("PUSHGATEWAY_URL", o.PushgatewayURL)
}

// Validate checks option ranges and that the selected engine has what it needs.
func (c *Config) Validate() error {
	p := c.Pipeline
	switch p.Engine {
	case EngineCloudAPI, EngineLocalModel, EngineHeuristic:
	default:
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidConfig, p.Engine)
	}
	if p.MaxWorkers < 1 {
		return fmt.Errorf("%w: maxWorkers must be >= 1, got %d", ErrInvalidConfig, p.MaxWorkers)
	}
	if p.MaxUnits < 1 {
		return fmt.Errorf("%w: maxUnits must be >= 1, got %d", ErrInvalidConfig, p.MaxUnits)
	}
	if p.PerUnitTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: perUnitTimeoutSeconds must be > 0", ErrInvalidConfig)
	}
	switch c.VAD.Strategy {
	case VADEnergyThreshold, VADSilenceGap:
	default:
		return fmt.Errorf("%w: unknown vadStrategy %q", ErrInvalidConfig, c.VAD.Strategy)
	}
	if c.VAD.ThresholdRatio <= 0 || c.VAD.ThresholdRatio >= 1 {
		return fmt.Errorf("%w: vadThresholdRatio must be in (0,1), got %v", ErrInvalidConfig, c.VAD.ThresholdRatio)
	}

	switch p.Engine {
	case EngineCloudAPI:
		switch p.CloudProvider {
		case ProviderAssemblyAI:
			if c.AssemblyAI.APIKey == "" {
				return fmt.Errorf("%w: ASSEMBLYAI_API_KEY is not set", ErrMissingCredentials)
			}
		case ProviderGoogle:
			// Application default credentials are resolved by the client library.
		default:
			return fmt.Errorf("%w: unknown cloudProvider %q", ErrInvalidConfig, p.CloudProvider)
		}
	case EngineLocalModel:
		switch c.Whisper.Mode {
		case WhisperModeSubprocess:
		case WhisperModeHTTP:
			if c.Whisper.URL == "" {
				return fmt.Errorf("%w: WHISPER_URL is required in http mode", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown whisper mode %q", ErrInvalidConfig, c.Whisper.Mode)
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
