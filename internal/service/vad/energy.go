package vad

import (
	"math"

	"ai-call-transcriber/internal/service/audio"
)

const (
	defaultWindowSeconds  = 0.5
	defaultThresholdRatio = 0.15
	defaultMergeGap       = 2.0
)

// Window is one fixed-width energy measurement.
type Window struct {
	Index int
	Start float64
	End   float64
	RMS   float64
}

// EnergySegmenter thresholds windowed RMS against a fraction of the loudest window.
type EnergySegmenter struct {
	WindowSeconds  float64 // default 0.5
	ThresholdRatio float64 // fraction of max RMS, default 0.15
	MergeGap       float64 // seconds; passing windows this close join one span, default 2
}

// Name returns the strategy name.
func (e *EnergySegmenter) Name() string { return "energyThreshold" }

func (e *EnergySegmenter) params() (win, ratio, gap float64) {
	win, ratio, gap = e.WindowSeconds, e.ThresholdRatio, e.MergeGap
	if win <= 0 {
		win = defaultWindowSeconds
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = defaultThresholdRatio
	}
	if gap <= 0 {
		gap = defaultMergeGap
	}
	return win, ratio, gap
}

// Windows partitions buf into contiguous windows covering [0, duration).
// The last window may be shorter.
func (e *EnergySegmenter) Windows(buf *audio.Buffer) []Window {
	win, _, _ := e.params()
	size := int(math.Round(win * float64(buf.SampleRate)))
	if size < 1 {
		size = 1
	}
	rate := float64(buf.SampleRate)

	var out []Window
	for i, idx := 0, 0; i < len(buf.Samples); i, idx = i+size, idx+1 {
		j := i + size
		if j > len(buf.Samples) {
			j = len(buf.Samples)
		}
		out = append(out, Window{
			Index: idx,
			Start: float64(i) / rate,
			End:   float64(j) / rate,
			RMS:   audio.RMS(buf.Samples[i:j]),
		})
	}
	return out
}

// Segment returns spans of windows whose RMS exceeds max(RMS) * ratio.
func (e *EnergySegmenter) Segment(buf *audio.Buffer) []Span {
	if buf.Duration() == 0 {
		return whole(buf)
	}
	_, ratio, gap := e.params()

	windows := e.Windows(buf)
	var peak float64
	for _, w := range windows {
		peak = math.Max(peak, w.RMS)
	}
	if peak == 0 {
		return whole(buf)
	}
	threshold := peak * ratio

	var spans []Span
	for _, w := range windows {
		if w.RMS <= threshold {
			continue
		}
		if n := len(spans); n > 0 && w.Start-spans[n-1].End <= gap {
			spans[n-1].End = w.End
			continue
		}
		spans = append(spans, Span{Start: w.Start, End: w.End})
	}
	if len(spans) == 0 {
		return whole(buf)
	}
	return spans
}
