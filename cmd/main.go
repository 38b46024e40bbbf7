package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-call-transcriber/internal/app"
	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/events"
	apphttp "ai-call-transcriber/internal/http"
	"ai-call-transcriber/internal/observability"
	"ai-call-transcriber/internal/observability/logging"
	"ai-call-transcriber/internal/observability/metrics"
	"ai-call-transcriber/internal/service/pipeline"
)

const jobName = "ai-call-transcriber"

type options struct {
	configFile string
	engine     string
	vad        string
	workers    int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "ai-call-transcriber [flags] <audio-file>",
		Short:         "Transcribe and analyze one recorded call",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd, opts, args[0])
			if err != nil {
				log.Error().Err(err).Msg("Invocation failed")
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML configuration file (or CONFIG_FILE)")
	f.StringVar(&opts.engine, "engine", "", "Transcription engine: cloudApi|localModel|heuristic")
	f.StringVar(&opts.vad, "vad", "", "Segmentation strategy: energyThreshold|silenceGap")
	f.IntVar(&opts.workers, "workers", 0, "Maximum concurrent engine calls")
	return cmd
}

func run(cmd *cobra.Command, opts options, path string) error {
	// Missing .env is fine.
	_ = godotenv.Load()
	logging.Init(logging.DefaultConfig())

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)
	if err := application.Start(path); err != nil {
		return err
	}
	defer application.Shutdown()

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		srv := observability.NewServer(addr, apphttp.NewRouter(application, promhttp.Handler()))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Observability server shutdown failed")
			}
		}()
	}

	m := metrics.DefaultMetrics
	engine, err := pipeline.NewEngine(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicSegment: cfg.Kafka.TopicSegment,
		TopicResult:  cfg.Kafka.TopicResult,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	p, err := pipeline.New(cfg, engine,
		pipeline.WithPublisher(publisher),
		pipeline.WithStageTracker(application),
		pipeline.WithInvocationID(application.InvocationID),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		engine.Close()
		return err
	}
	defer p.Close()
	application.MarkReady(engine.Name())

	result, err := p.Run(ctx, path)
	pushMetrics(cfg.Observability.PushgatewayURL, application.InvocationID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

func loadConfig(opts options) (*config.Config, error) {
	file := opts.configFile
	if file == "" {
		file = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(file)
	if err != nil {
		return nil, err
	}
	if opts.engine != "" {
		cfg.Pipeline.Engine = opts.engine
	}
	if opts.vad != "" {
		cfg.VAD.Strategy = opts.vad
	}
	if opts.workers != 0 {
		cfg.Pipeline.MaxWorkers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pushMetrics(url, instance string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, url, jobName, instance); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to push metrics")
	}
}
