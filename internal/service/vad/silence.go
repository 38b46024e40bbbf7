package vad

import (
	"math"
	"time"

	"ai-call-transcriber/internal/service/audio"
)

const (
	frameSeconds       = 0.01
	defaultOffsetDB    = -16.0
	defaultMinSilence  = time.Second
	defaultKeepSilence = 500 * time.Millisecond
)

// SilenceSegmenter splits on runs of audio quieter than the buffer's
// overall loudness plus OffsetDB.
type SilenceSegmenter struct {
	OffsetDB    float64       // relative to buffer dBFS, default -16
	MinSilence  time.Duration // shortest run treated as a separator, default 1s
	KeepSilence time.Duration // padding kept around each span, default 500ms
}

// Name returns the strategy name.
func (s *SilenceSegmenter) Name() string { return "silenceGap" }

func (s *SilenceSegmenter) params() (offset, minSilence, keep float64) {
	offset = s.OffsetDB
	if offset == 0 {
		offset = defaultOffsetDB
	}
	minSilence = seconds(s.MinSilence)
	if minSilence <= 0 {
		minSilence = seconds(defaultMinSilence)
	}
	keep = seconds(s.KeepSilence)
	if keep <= 0 {
		keep = seconds(defaultKeepSilence)
	}
	return offset, minSilence, keep
}

// Segment returns the audio between silent runs, padded by KeepSilence.
func (s *SilenceSegmenter) Segment(buf *audio.Buffer) []Span {
	duration := buf.Duration()
	if duration == 0 {
		return whole(buf)
	}
	offset, minSilence, keep := s.params()

	floor := audio.DBFS(audio.RMS(buf.Samples)) + offset
	if math.IsInf(floor, -1) {
		return whole(buf)
	}

	frame := int(math.Round(frameSeconds * float64(buf.SampleRate)))
	if frame < 1 {
		frame = 1
	}
	minFrames := int(math.Ceil(minSilence / frameSeconds))

	// Speech ranges in frame indices, [start, end).
	type rng struct{ start, end int }
	var speech []rng
	nFrames := (len(buf.Samples) + frame - 1) / frame
	runStart, speechStart := -1, 0
	for f := 0; f <= nFrames; f++ {
		silent := true
		if f < nFrames {
			i, j := f*frame, (f+1)*frame
			if j > len(buf.Samples) {
				j = len(buf.Samples)
			}
			silent = audio.DBFS(audio.RMS(buf.Samples[i:j])) < floor
		}
		if silent {
			if runStart < 0 {
				runStart = f
			}
			continue
		}
		if runStart >= 0 && f-runStart >= minFrames {
			if runStart > speechStart {
				speech = append(speech, rng{speechStart, runStart})
			}
			speechStart = f
		}
		runStart = -1
	}
	// Close the trailing range; a final silent run only separates if long enough.
	end := nFrames
	if runStart >= 0 && nFrames-runStart >= minFrames {
		end = runStart
	}
	if end > speechStart {
		speech = append(speech, rng{speechStart, end})
	}

	rate := float64(buf.SampleRate)
	toSec := func(f int) float64 { return math.Min(float64(f*frame)/rate, duration) }

	spans := make([]Span, 0, len(speech))
	for i, r := range speech {
		start := math.Max(0, toSec(r.start)-keep)
		stop := math.Min(duration, toSec(r.end)+keep)
		if i > 0 {
			mid := (toSec(speech[i-1].end) + toSec(r.start)) / 2
			start = math.Max(start, mid)
		}
		if i < len(speech)-1 {
			mid := (toSec(r.end) + toSec(speech[i+1].start)) / 2
			stop = math.Min(stop, mid)
		}
		if stop > start {
			spans = append(spans, Span{Start: start, End: stop})
		}
	}
	if len(spans) == 0 {
		return whole(buf)
	}
	return spans
}
