// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability/metrics"
)

// Publisher publishes transcription events to separate Kafka topics.
type Publisher struct {
	writerSegment *kafka.Writer
	writerResult  *kafka.Writer
	principal     string
	topicSegment  string
	topicResult   string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicSegment string
	TopicResult  string
	Principal    string
	Enabled      bool
}

// New creates a new Kafka event publisher with separate topics for segment and completion events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicSegment: cfg.TopicSegment,
			topicResult:  cfg.TopicResult,
			enabled:      false,
			metrics:      m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerSegment := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSegment,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerResult := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicResult,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicSegment", cfg.TopicSegment).
		Str("topicResult", cfg.TopicResult).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerSegment: writerSegment,
		writerResult:  writerResult,
		principal:     cfg.Principal,
		topicSegment:  cfg.TopicSegment,
		topicResult:   cfg.TopicResult,
		enabled:       true,
		metrics:       m,
	}
}

// Enabled reports whether events reach Kafka.
func (p *Publisher) Enabled() bool { return p.enabled }

// PublishSegment publishes a segment event to the segment topic.
func (p *Publisher) PublishSegment(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerSegment, p.topicSegment, models.EventSegmentTranscribed, key, event)
}

// PublishResult publishes a completion event to the result topic.
func (p *Publisher) PublishResult(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerResult, p.topicResult, models.EventTranscriptionCompleted, key, event)
}

// PublishInvocation publishes every segment of r followed by its completion
// event, keyed by the invocation ID. Failures are logged and the first is returned.
func (p *Publisher) PublishInvocation(ctx context.Context, invocationID, source string, r *models.TranscriptionResult) error {
	ts := time.Now().UnixMilli()
	var first error
	for _, seg := range r.Segments {
		if err := p.PublishSegment(ctx, invocationID, models.NewSegmentTranscribed(invocationID, source, ts, seg)); err != nil && first == nil {
			first = err
		}
	}
	if err := p.PublishResult(ctx, invocationID, models.NewTranscriptionCompleted(invocationID, source, ts, r)); err != nil && first == nil {
		first = err
	}
	return first
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerSegment != nil {
		if e := p.writerSegment.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing segment writer")
			err = e
		}
	}
	if p.writerResult != nil {
		if e := p.writerResult.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing result writer")
			err = e
		}
	}
	return err
}
