package schema

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ai-call-transcriber/internal/models"
)

func validResult() *models.TranscriptionResult {
	return &models.TranscriptionResult{
		Text: "olá bom dia",
		Segments: []models.Segment{
			{ID: "segment_0", Text: "olá", StartTime: 0, EndTime: 1.5, Confidence: 0.9},
			{ID: "segment_1", Text: "bom dia", StartTime: 2, EndTime: 3.5, Confidence: 0.8},
		},
		Duration: 3.5,
		Success:  true,
	}
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	if err := v.Validate(validResult()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := v.Validate(nil); err != nil {
		t.Errorf("expected no error for nil result, got %v", err)
	}
}

func TestValidate_EmptyResult(t *testing.T) {
	r := &models.TranscriptionResult{Segments: []models.Segment{}}
	if err := New().Validate(r); err != nil {
		t.Errorf("expected empty failed result to be valid, got %v", err)
	}
}

func TestCheck_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.TranscriptionResult)
		rule   string
	}{
		{"inverted bounds", func(r *models.TranscriptionResult) { r.Segments[0].EndTime = 0 }, RuleBounds},
		{"out of order", func(r *models.TranscriptionResult) {
			r.Segments[1].StartTime = -1
		}, RuleOrdering},
		{"overlap", func(r *models.TranscriptionResult) { r.Segments[1].StartTime = 1 }, RuleOverlap},
		{"duration", func(r *models.TranscriptionResult) { r.Duration = 10 }, RuleDuration},
		{"success flag", func(r *models.TranscriptionResult) { r.Success = false }, RuleSuccessFlag},
		{"text", func(r *models.TranscriptionResult) { r.Text = "olá" }, RuleText},
		{"confidence", func(r *models.TranscriptionResult) { r.Segments[0].Confidence = 1.2 }, RuleConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResult()
			tt.mutate(r)
			found := false
			for _, vi := range New().Check(r) {
				if vi.Rule == tt.rule {
					found = true
				}
			}
			if !found {
				t.Errorf("expected violation %s, got %v", tt.rule, New().Check(r))
			}
		})
	}
}

func TestValidate_WrapsAndCounts(t *testing.T) {
	v := New()
	before := testutil.ToFloat64(v.metrics.ResultViolations.WithLabelValues(RuleSuccessFlag))

	r := validResult()
	r.Success = false
	err := v.Validate(r)
	if !errors.Is(err, ErrInvalidResult) {
		t.Fatalf("expected ErrInvalidResult, got %v", err)
	}
	var vi Violation
	if !errors.As(err, &vi) || vi.Rule != RuleSuccessFlag {
		t.Errorf("expected success flag violation, got %v", err)
	}

	after := testutil.ToFloat64(v.metrics.ResultViolations.WithLabelValues(RuleSuccessFlag))
	if after-before != 1 {
		t.Errorf("expected 1 counted violation, got %v", after-before)
	}
}

func TestViolation_Error(t *testing.T) {
	if got := (Violation{RuleText, -1, "x"}).Error(); got != "text: x" {
		t.Errorf("expected 'text: x', got %q", got)
	}
	if got := (Violation{RuleOverlap, 2, "y"}).Error(); got != "overlap: segment 2: y" {
		t.Errorf("expected 'overlap: segment 2: y', got %q", got)
	}
}
