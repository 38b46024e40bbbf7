// Package vad finds speech-bearing spans in a PCM buffer.
package vad

import (
	"fmt"
	"time"

	"ai-call-transcriber/internal/config"
	"ai-call-transcriber/internal/service/audio"
)

// Span is a candidate speech interval in seconds.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the span length in seconds.
func (s Span) Length() float64 { return s.End - s.Start }

// Segmenter turns a buffer into ordered, non-overlapping spans. It never
// returns an empty slice.
type Segmenter interface {
	Name() string
	Segment(buf *audio.Buffer) []Span
}

// New returns the segmenter selected by cfg.Strategy.
func New(cfg config.VADConfig) (Segmenter, error) {
	switch cfg.Strategy {
	case config.VADEnergyThreshold, "":
		return &EnergySegmenter{
			WindowSeconds:  cfg.WindowSeconds,
			ThresholdRatio: cfg.ThresholdRatio,
			MergeGap:       cfg.MergeGapSeconds,
		}, nil
	case config.VADSilenceGap:
		return &SilenceSegmenter{
			OffsetDB:    cfg.SilenceOffsetDB,
			MinSilence:  cfg.MinSilence,
			KeepSilence: cfg.KeepSilence,
		}, nil
	default:
		return nil, fmt.Errorf("unknown vad strategy %q", cfg.Strategy)
	}
}

// whole is the fallback span covering the entire buffer, [0,0] when empty.
func whole(buf *audio.Buffer) []Span {
	return []Span{{Start: 0, End: buf.Duration()}}
}

func seconds(d time.Duration) float64 { return d.Seconds() }
