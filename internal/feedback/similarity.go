package feedback

import "strings"

// SimilarityScorer judges how close two text spans are, in [0, 1]. It is the
// only non-deterministic-friendly seam in categorization: addition, deletion
// and restructure are decided by the diff alone, while rewrite detection may
// delegate to any backend (a lexical measure here; a model-backed scorer in
// deployments that want one).
type SimilarityScorer interface {
	Score(a, b string) float64
}

// LexicalScorer scores spans by Jaccard overlap of their lowercased token
// sets. Deterministic and dependency-free, which keeps categorization
// reproducible in tests.
type LexicalScorer struct{}

// Score returns |A∩B| / |A∪B| over lowercase token sets.
func (LexicalScorer) Score(a, b string) float64 {
	as := tokenSet(a)
	bs := tokenSet(b)
	if len(as) == 0 && len(bs) == 0 {
		return 1
	}
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}

	intersection := 0
	for tok := range as {
		if bs[tok] {
			intersection++
		}
	}
	union := len(as) + len(bs) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(s) {
		set[strings.ToLower(tok)] = true
	}
	return set
}
