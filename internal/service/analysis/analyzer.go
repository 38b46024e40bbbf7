// Package analysis derives sentiment, critical words, topics and
// recommendations from a merged transcript.
package analysis

import (
	"math"
	"strings"
	"unicode"

	"ai-call-transcriber/internal/models"
	"ai-call-transcriber/internal/observability/logging"
)

const (
	neutralSentiment = 0.5
	positiveWeight   = 0.08
	negativeWeight   = 0.1
)

// Recommendation texts.
const (
	RecTraining       = "Melhorar treinamento da equipe de atendimento"
	RecFollowUp       = "Implementar follow-up proativo com clientes"
	RecQualityReview  = "Revisar processos de qualidade"
	RecMonitoring     = "Aumentar monitoramento de produtos/serviços"
	RecDocument       = "Documentar boas práticas do atendimento"
	RecRecognizeAgent = "Reconhecer performance do agente"
	RecKeepStandard   = "Manter padrão atual de atendimento"
)

// Neutral returns the analysis of a transcript with no signal.
func Neutral() models.ContentAnalysis {
	return models.ContentAnalysis{
		Sentiment:       neutralSentiment,
		CriticalWords:   []string{},
		Topics:          []string{},
		Recommendations: []string{RecKeepStandard},
	}
}

// Analyze scores text and collects critical words from the segments and the
// full text. It never panics; an internal failure yields Neutral().
func Analyze(text string, segments []models.Segment) (result models.ContentAnalysis) {
	defer recoverNeutral(&result)

	critical := mergeCritical(segments, text)
	sentiment := Sentiment(text)
	return models.ContentAnalysis{
		Sentiment:       sentiment,
		CriticalWords:   critical,
		Topics:          Topics(text),
		Recommendations: Recommendations(sentiment, len(critical)),
	}
}

// Sentiment scores text in [0,1]. Each distinct lexicon word present counts once.
func Sentiment(text string) float64 {
	words := wordSet(text)
	score := neutralSentiment
	for _, w := range positiveWords {
		if words[w] {
			score += positiveWeight
		}
	}
	for _, w := range negativeWords {
		if words[w] {
			score -= negativeWeight
		}
	}
	score = math.Max(0, math.Min(1, score))
	return math.Round(score*100) / 100
}

// Topics returns the topics whose keywords appear in text, in table order.
func Topics(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				found = append(found, t.name)
				break
			}
		}
	}
	return found
}

// recoverNeutral replaces result with Neutral() when the deferring function panicked.
func recoverNeutral(result *models.ContentAnalysis) {
	if r := recover(); r != nil {
		logger := logging.WithComponent("analysis")
		logger.Error().
			Interface("panic", r).
			Msg("Content analysis failed, using neutral analysis")
		*result = Neutral()
	}
}

// Recommendations applies every matching rule in order.
func Recommendations(sentiment float64, criticalCount int) []string {
	var recs []string
	if sentiment < 0.4 {
		recs = append(recs, RecTraining, RecFollowUp)
	}
	if criticalCount > 2 {
		recs = append(recs, RecQualityReview, RecMonitoring)
	}
	if sentiment > 0.7 {
		recs = append(recs, RecDocument, RecRecognizeAgent)
	}
	if len(recs) == 0 {
		recs = append(recs, RecKeepStandard)
	}
	return recs
}

func mergeCritical(segments []models.Segment, text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(words []string) {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	for _, s := range segments {
		add(s.CriticalWords)
	}
	add(CriticalWords(text))
	return out
}

// wordSet splits lowercased text on anything that is not a letter or digit.
func wordSet(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
