package resolve

import "github.com/repset/repset/internal/catalog"

const extraTokenPenalty = 0.1

// TokenScore re-scores a candidate name against query tokens: one point per
// query token present verbatim in the candidate, minus a small penalty per
// extraneous candidate token, floored at zero. Candidates shorter than the
// query pay no penalty.
func TokenScore(queryTokens, candidateTokens []string) float64 {
	candidateSet := make(map[string]bool, len(candidateTokens))
	for _, tok := range candidateTokens {
		candidateSet[tok] = true
	}

	overlap := 0
	for _, tok := range queryTokens {
		if candidateSet[tok] {
			overlap++
		}
	}

	extra := len(candidateTokens) - len(queryTokens)
	if extra < 0 {
		extra = 0
	}
	score := float64(overlap) - extraTokenPenalty*float64(extra)
	if score < 0 {
		return 0
	}
	return score
}

// RankBest returns the top-scoring candidate by token overlap. Ties keep the
// incoming search-result order, so the ranking is deterministic for a fixed
// candidate list. ok is false only when candidates is empty.
func RankBest(query string, candidates []catalog.Entry, abbreviations map[string]string) (catalog.Entry, bool) {
	if len(candidates) == 0 {
		return catalog.Entry{}, false
	}

	queryTokens := Tokenize(query, abbreviations)
	best := 0
	bestScore := TokenScore(queryTokens, Tokenize(candidates[0].Name, abbreviations))
	for i := 1; i < len(candidates); i++ {
		score := TokenScore(queryTokens, Tokenize(candidates[i].Name, abbreviations))
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	return candidates[best], true
}
