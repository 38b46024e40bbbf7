package merger

import (
	"reflect"
	"testing"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/service/scheduler"
	"ai-call-transcriber/internal/service/stt"
	"ai-call-transcriber/internal/service/vad"
)

func success(i int, text string) scheduler.Outcome {
	return scheduler.Outcome{Index: i, Kind: scheduler.KindSuccess, Text: text, Confidence: 0.9}
}

func TestMerge_SingleSpanWholeClip(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 40}}
	r := Merge([]scheduler.Outcome{success(0, "Olá, bom dia!")}, spans, "fake")

	if !r.Success {
		t.Error("expected success")
	}
	if len(r.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(r.Segments))
	}
	s := r.Segments[0]
	if s.ID != "segment_0" || s.StartTime != 0 || s.EndTime != 40 || s.Text != "Olá, bom dia!" || s.Speaker != models.SpeakerAgent {
		t.Errorf("unexpected segment %+v", s)
	}
	if r.Duration != 40 {
		t.Errorf("expected duration 40, got %v", r.Duration)
	}
	if r.Text != "Olá, bom dia!" {
		t.Errorf("unexpected text %q", r.Text)
	}
}

func TestMerge_TimedOutUnitLeavesGap(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 3}, {Start: 5, End: 8}, {Start: 10, End: 12}}
	outcomes := []scheduler.Outcome{
		success(0, "primeiro"),
		{Index: 1, Kind: scheduler.KindTimeout},
		success(2, "terceiro"),
	}
	r := Merge(outcomes, spans, "fake")

	if len(r.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(r.Segments))
	}
	second := r.Segments[1]
	if second.StartTime != 10 || second.EndTime != 12 {
		t.Errorf("expected second segment to keep span [10,12], got [%v,%v]", second.StartTime, second.EndTime)
	}
	if second.ID != "segment_1" {
		t.Errorf("expected dense ids, got %s", second.ID)
	}
	if second.Speaker != models.SpeakerAgent {
		t.Errorf("expected parity of unit index 2 (agent), got %v", second.Speaker)
	}
	if r.Text != "primeiro terceiro" {
		t.Errorf("expected joined text, got %q", r.Text)
	}
	if r.Duration != 12 {
		t.Errorf("expected duration 12, got %v", r.Duration)
	}
}

func TestMerge_AllEmpty(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 2, End: 3}}
	outcomes := []scheduler.Outcome{
		{Index: 0, Kind: scheduler.KindEmpty},
		{Index: 1, Kind: scheduler.KindEngineError, ErrorKind: stt.KindUnavailable},
	}
	r := Merge(outcomes, spans, "fake")

	if r.Segments == nil || len(r.Segments) != 0 {
		t.Errorf("expected empty non-nil segments, got %v", r.Segments)
	}
	if r.Success {
		t.Error("expected success false")
	}
	if r.Duration != 0 {
		t.Errorf("expected duration 0, got %v", r.Duration)
	}
	if r.Text != "" {
		t.Errorf("expected empty text, got %q", r.Text)
	}
}

func TestMerge_BlankSuccessSkipped(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 1, End: 2}}
	r := Merge([]scheduler.Outcome{success(0, "   "), success(1, "oi")}, spans, "fake")

	if len(r.Segments) != 1 || r.Segments[0].ID != "segment_0" || r.Segments[0].Speaker != models.SpeakerClient {
		t.Errorf("unexpected segments %+v", r.Segments)
	}
}

func TestMerge_EngineSpeakerLabelWins(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 3}}
	a := success(0, "a")
	a.Speaker = models.SpeakerClient
	r := Merge([]scheduler.Outcome{a, success(1, "b"), success(2, "c")}, spans, "fake")

	want := []models.Speaker{models.SpeakerClient, models.SpeakerClient, models.SpeakerAgent}
	for i, s := range r.Segments {
		if s.Speaker != want[i] {
			t.Errorf("segment %d: expected %v, got %v", i, want[i], s.Speaker)
		}
	}
}

func TestMerge_CriticalWordsAndPlaceholder(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 1, End: 2}}
	ph := success(1, "[placeholder] speech activity 1.0s, energy low")
	ph.Placeholder = true
	r := Merge([]scheduler.Outcome{success(0, "Veio com DEFEITO"), ph}, spans, "x+signal_heuristic_placeholder")

	if !reflect.DeepEqual(r.Segments[0].CriticalWords, []string{"defeito"}) {
		t.Errorf("expected [defeito], got %v", r.Segments[0].CriticalWords)
	}
	if r.Segments[1].CriticalWords == nil {
		t.Error("expected non-nil critical words")
	}
	if !r.Placeholder {
		t.Error("expected placeholder flag")
	}
	if r.Engine != "x+signal_heuristic_placeholder" {
		t.Errorf("unexpected engine %s", r.Engine)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 1, End: 2}}
	outcomes := []scheduler.Outcome{success(0, "a"), success(1, "b")}
	if !reflect.DeepEqual(Merge(outcomes, spans, "e"), Merge(outcomes, spans, "e")) {
		t.Error("expected identical results for identical input")
	}
}

func TestMerge_SpeakerFollowsUnitIndexAcrossGaps(t *testing.T) {
	spans := []vad.Span{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 3}, {Start: 3, End: 4}}
	outcomes := []scheduler.Outcome{
		{Index: 0, Kind: scheduler.KindTimeout},
		success(1, "b"),
		{Index: 2, Kind: scheduler.KindEmpty},
		success(3, "d"),
	}
	r := Merge(outcomes, spans, "fake")

	want := []models.Speaker{models.SpeakerClient, models.SpeakerClient}
	if len(r.Segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(r.Segments))
	}
	for i, s := range r.Segments {
		if s.Speaker != want[i] {
			t.Errorf("segment %d: expected %v, got %v", i, want[i], s.Speaker)
		}
	}
}
