// Package merger folds per-unit outcomes into one ordered transcription result.
package merger

import (
	"strings"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/service/analysis"
	"ai-call-transcriber/internal/service/scheduler"
	"ai-call-transcriber/internal/service/segment"
	"ai-call-transcriber/internal/service/vad"
)

const idPrefix = "segment"

// Merge builds the result from outcomes in index order. Only successful
// outcomes with text become segments; each keeps the bounds of its own span.
// The returned result carries a neutral analysis.
func Merge(outcomes []scheduler.Outcome, spans []vad.Span, engine string) *models.TranscriptionResult {
	ids := segment.New()
	segments := []models.Segment{}
	texts := make([]string, 0, len(outcomes))
	placeholder := false

	for _, out := range outcomes {
		if out.Kind != scheduler.KindSuccess {
			continue
		}
		text := strings.TrimSpace(out.Text)
		if text == "" || out.Index < 0 || out.Index >= len(spans) {
			continue
		}

		speaker := out.Speaker
		if speaker == models.SpeakerUnknown {
			speaker = alternate(out.Index)
		}
		span := spans[out.Index]
		segments = append(segments, models.Segment{
			ID:            ids.Next(idPrefix),
			Speaker:       speaker,
			Text:          text,
			StartTime:     span.Start,
			EndTime:       span.End,
			Confidence:    out.Confidence,
			CriticalWords: analysis.CriticalWords(text),
		})
		texts = append(texts, text)
		placeholder = placeholder || out.Placeholder
	}

	result := &models.TranscriptionResult{
		Text:        strings.Join(texts, " "),
		Segments:    segments,
		Success:     len(segments) > 0,
		Engine:      engine,
		Placeholder: placeholder,
		Analysis:    analysis.Neutral(),
	}
	if n := len(segments); n > 0 {
		result.Duration = segments[n-1].EndTime
	}
	return result
}

// alternate assigns speakers by unit index parity, even to agent.
func alternate(n int) models.Speaker {
	if n%2 == 0 {
		return models.SpeakerAgent
	}
	return models.SpeakerClient
}
