// Package schema checks the structural invariants of a merged transcription result.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability/metrics"
)

// Rule names reported in violations and metrics.
const (
	RuleBounds      = "bounds"
	RuleOrdering    = "ordering"
	RuleOverlap     = "overlap"
	RuleDuration    = "duration"
	RuleSuccessFlag = "success_flag"
	RuleText        = "text"
	RuleConfidence  = "confidence"
)

// ErrInvalidResult is wrapped by every violation returned from Validate.
var ErrInvalidResult = errors.New("invalid transcription result")

// Violation describes one broken invariant.
type Violation struct {
	Rule    string
	Segment int
	Detail  string
}

func (v Violation) Error() string {
	if v.Segment < 0 {
		return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
	}
	return fmt.Sprintf("%s: segment %d: %s", v.Rule, v.Segment, v.Detail)
}

type Validator struct {
	metrics *metrics.Metrics
}

func New() *Validator {
	return &Validator{metrics: metrics.DefaultMetrics}
}

// Check returns every violation found in r. A nil result has none.
func (v *Validator) Check(r *models.TranscriptionResult) []Violation {
	if r == nil {
		return nil
	}
	var out []Violation
	texts := make([]string, 0, len(r.Segments))
	prevEnd := 0.0

	for i, seg := range r.Segments {
		if seg.StartTime < 0 || seg.StartTime >= seg.EndTime {
			out = append(out, Violation{RuleBounds, i, fmt.Sprintf("start %.3f not before end %.3f", seg.StartTime, seg.EndTime)})
		}
		if i > 0 {
			prev := r.Segments[i-1]
			if seg.StartTime < prev.StartTime {
				out = append(out, Violation{RuleOrdering, i, fmt.Sprintf("start %.3f before previous start %.3f", seg.StartTime, prev.StartTime)})
			}
			if seg.StartTime < prevEnd {
				out = append(out, Violation{RuleOverlap, i, fmt.Sprintf("start %.3f before previous end %.3f", seg.StartTime, prevEnd)})
			}
		}
		if seg.Confidence < 0 || seg.Confidence > 1 {
			out = append(out, Violation{RuleConfidence, i, fmt.Sprintf("confidence %.3f outside [0,1]", seg.Confidence)})
		}
		prevEnd = seg.EndTime
		texts = append(texts, seg.Text)
	}

	if n := len(r.Segments); n > 0 {
		if last := r.Segments[n-1].EndTime; r.Duration != last {
			out = append(out, Violation{RuleDuration, -1, fmt.Sprintf("duration %.3f, last segment ends at %.3f", r.Duration, last)})
		}
	} else if r.Duration != 0 {
		out = append(out, Violation{RuleDuration, -1, fmt.Sprintf("duration %.3f with no segments", r.Duration)})
	}

	if want := len(r.Segments) > 0; r.Success != want {
		out = append(out, Violation{RuleSuccessFlag, -1, fmt.Sprintf("success %t with %d segments", r.Success, len(r.Segments))})
	}
	if joined := strings.Join(texts, " "); r.Text != joined {
		out = append(out, Violation{RuleText, -1, "text is not the space-joined segment texts"})
	}
	return out
}

// Validate logs and counts every violation and returns the first one,
// wrapped in ErrInvalidResult.
func (v *Validator) Validate(r *models.TranscriptionResult) error {
	violations := v.Check(r)
	for _, vi := range violations {
		v.metrics.RecordViolation(vi.Rule)
		log.Error().
			Str("rule", vi.Rule).
			Int("segment", vi.Segment).
			Str("detail", vi.Detail).
			Msg("result invariant violated")
	}
	if len(violations) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d violations, first: %w", ErrInvalidResult, len(violations), violations[0])
}
