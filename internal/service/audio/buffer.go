// Package audio normalizes call recordings into in-memory mono PCM buffers.
package audio

import "math"

// DefaultSampleRate is the sample rate every buffer is normalized to.
const DefaultSampleRate = 16000

// Buffer is decoded 16-bit mono PCM. It is never mutated after ingest, so
// slices of Samples may be shared across goroutines.
type Buffer struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// Index converts a time offset in seconds to a sample index clamped to the buffer.
func (b *Buffer) Index(seconds float64) int {
	i := int(math.Round(seconds * float64(b.SampleRate)))
	if i < 0 {
		return 0
	}
	if i > len(b.Samples) {
		return len(b.Samples)
	}
	return i
}

// Slice returns the samples between two offsets in seconds. The result
// shares the buffer's backing array and must be treated as read-only.
func (b *Buffer) Slice(start, end float64) []int16 {
	i, j := b.Index(start), b.Index(end)
	if j < i {
		j = i
	}
	return b.Samples[i:j:j]
}

// RMS returns the root-mean-square amplitude of samples, normalized to [0,1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a normalized RMS value to decibels relative to full scale.
// Silence maps to -Inf.
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
