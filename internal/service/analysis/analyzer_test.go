package analysis

import (
	"reflect"
	"testing"

	"ai-call-transcriber/internal/models"
)

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestAnalyze_DefectAndCancellation(t *testing.T) {
	text := "o produto chegou com defeito, quero cancelar"
	a := Analyze(text, nil)

	for _, w := range []string{"defeito", "cancelar"} {
		if !contains(a.CriticalWords, w) {
			t.Errorf("expected critical word %q in %v", w, a.CriticalWords)
		}
	}
	if !contains(a.Topics, "produto") {
		t.Errorf("expected topic produto in %v", a.Topics)
	}
	if a.Sentiment != 0.3 {
		t.Errorf("expected sentiment 0.3, got %v", a.Sentiment)
	}
	if !contains(a.Recommendations, RecTraining) || !contains(a.Recommendations, RecFollowUp) {
		t.Errorf("expected training and follow-up recommendations, got %v", a.Recommendations)
	}
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0.5},
		{"positive", "Obrigado, ficou ótimo!", 0.66},
		{"repeated word counts once", "bom bom bom", 0.58},
		{"no substring hits", "comprei um bombom", 0.5},
		{"plural does not match", "tive problemas", 0.5},
		{"negative", "péssimo, terrível, horrível, ruim, errado, irritado", 0},
		{"clamped high", "obrigado obrigada excelente ótimo ótima perfeito perfeita satisfeito", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentiment(tt.text); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTopics(t *testing.T) {
	got := Topics("A ENTREGA do item atrasou e a fatura veio errada")
	want := []string{"produto", "entrega", "pagamento"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := Topics("bom dia"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil topics, got %v", got)
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name      string
		sentiment float64
		critical  int
		want      []string
	}{
		{"neutral", 0.5, 0, []string{RecKeepStandard}},
		{"negative", 0.3, 1, []string{RecTraining, RecFollowUp}},
		{"negative with many critical", 0.2, 3, []string{RecTraining, RecFollowUp, RecQualityReview, RecMonitoring}},
		{"positive with many critical", 0.8, 3, []string{RecQualityReview, RecMonitoring, RecDocument, RecRecognizeAgent}},
		{"boundaries", 0.4, 2, []string{RecKeepStandard}},
		{"positive", 0.74, 0, []string{RecDocument, RecRecognizeAgent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recommendations(tt.sentiment, tt.critical); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCriticalWords(t *testing.T) {
	got := CriticalWords("Quero CANCELAR, o aparelho não funciona e veio com defeito")
	want := []string{"cancelar", "não funciona", "defeito"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := CriticalWords("tudo certo"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestAnalyze_MergesSegmentCriticalWords(t *testing.T) {
	segments := []models.Segment{
		{Text: "houve um atraso", CriticalWords: []string{"atraso"}},
		{Text: "quero reembolso", CriticalWords: []string{"reembolso"}},
	}
	a := Analyze("houve um atraso quero reembolso urgente", segments)

	want := []string{"atraso", "reembolso", "urgente"}
	if !reflect.DeepEqual(a.CriticalWords, want) {
		t.Errorf("expected %v, got %v", want, a.CriticalWords)
	}
	if !contains(a.Recommendations, RecQualityReview) {
		t.Errorf("expected quality review with 3 critical words, got %v", a.Recommendations)
	}
}

func TestNeutral(t *testing.T) {
	n := Neutral()
	if n.Sentiment != 0.5 {
		t.Errorf("expected 0.5, got %v", n.Sentiment)
	}
	if n.CriticalWords == nil || n.Topics == nil {
		t.Error("expected non-nil slices")
	}
	if !reflect.DeepEqual(n, Analyze("", nil)) {
		t.Errorf("expected empty analysis to equal Neutral, got %+v", Analyze("", nil))
	}
}

func TestCriticalWords_LongerKeywordCoversShorter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plural only", "tive problemas com o pedido", []string{"problemas"}},
		{"plural then singular", "problemas, e outro problema depois", []string{"problemas", "problema"}},
		{"singular then plural", "um problema e vários problemas", []string{"problema", "problemas"}},
		{"derived form", "o aparelho é defeituoso", []string{"defeituoso"}},
		{"both forms apart", "defeito aqui, defeituoso ali", []string{"defeito", "defeituoso"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CriticalWords(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAnalyze_PluralDoesNotInflateCriticalCount(t *testing.T) {
	a := Analyze("tive problemas, quero reembolso", nil)

	want := []string{"problemas", "reembolso"}
	if !reflect.DeepEqual(a.CriticalWords, want) {
		t.Errorf("expected %v, got %v", want, a.CriticalWords)
	}
	if contains(a.Recommendations, RecQualityReview) {
		t.Errorf("expected no quality review with 2 critical words, got %v", a.Recommendations)
	}
}

func TestRecoverNeutral(t *testing.T) {
	got := func() (result models.ContentAnalysis) {
		defer recoverNeutral(&result)
		panic("boom")
	}()
	if !reflect.DeepEqual(got, Neutral()) {
		t.Errorf("expected Neutral after panic, got %+v", got)
	}

	kept := func() (result models.ContentAnalysis) {
		defer recoverNeutral(&result)
		return models.ContentAnalysis{Sentiment: 0.9}
	}()
	if kept.Sentiment != 0.9 {
		t.Errorf("expected result untouched without panic, got %+v", kept)
	}
}
