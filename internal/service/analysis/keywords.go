package analysis

import (
	"sort"
	"strings"
)

// criticalKeywords signal a service issue. Matched as case-insensitive substrings.
var criticalKeywords = []string{
	"problema", "problemas", "danificado", "quebrado", "defeito", "defeituoso",
	"reclamação", "reclamar", "insatisfeito", "insatisfeita", "insatisfação",
	"cancelar", "cancelamento", "reembolso", "devolver", "devolução",
	"urgente", "emergência", "transtorno", "inconveniente",
	"atrasado", "atraso", "errado", "incorreto",
	"não funciona", "não está funcionando", "parou de funcionar",
}

var positiveWords = []string{
	"obrigado", "obrigada", "excelente", "ótimo", "ótima", "perfeito", "perfeita",
	"satisfeito", "satisfeita", "bom", "boa", "maravilhoso", "fantástico", "resolvido",
}

var negativeWords = []string{
	"problema", "ruim", "péssimo", "terrível", "horrível", "insatisfeito", "insatisfeita",
	"reclamação", "irritado", "irritada", "cancelar", "defeito", "errado",
}

type topic struct {
	name     string
	keywords []string
}

var topics = []topic{
	{"produto", []string{"produto", "item", "mercadoria"}},
	{"entrega", []string{"entrega", "entregar", "envio", "correios"}},
	{"atendimento", []string{"atendimento", "atender", "suporte"}},
	{"pagamento", []string{"pagamento", "cobrança", "fatura"}},
	{"devolução", []string{"devolução", "devolver", "trocar", "troca"}},
}

// CriticalWords returns the critical keywords contained in text, ordered by
// first occurrence. A keyword found only inside a longer keyword's match
// ("problema" within "problemas") is not reported. It never returns nil.
func CriticalWords(text string) []string {
	lower := strings.ToLower(text)

	type match struct {
		word       string
		start, end int
	}
	var all []match
	for _, kw := range criticalKeywords {
		for off := 0; off < len(lower); {
			i := strings.Index(lower[off:], kw)
			if i < 0 {
				break
			}
			start := off + i
			all = append(all, match{kw, start, start + len(kw)})
			off = start + 1
		}
	}

	covered := func(m match) bool {
		for _, o := range all {
			if len(o.word) > len(m.word) && o.start <= m.start && m.end <= o.end {
				return true
			}
		}
		return false
	}

	var hits []match
	seen := make(map[string]bool)
	for _, m := range all {
		if seen[m.word] || covered(m) {
			continue
		}
		seen[m.word] = true
		hits = append(hits, m)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	words := make([]string, 0, len(hits))
	for _, h := range hits {
		words = append(words, h.word)
	}
	return words
}
