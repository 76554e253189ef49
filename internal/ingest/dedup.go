package ingest

import "strings"

const recentWindowSize = 20
const jaccardDuplicateThreshold = 0.85

// jaccardSimilarity computes word-set Jaccard similarity between two texts.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// isNearDuplicate reports whether content is a fuzzy duplicate of any of the
// recent observations' content (spec §4.4 stage 7, bounded window).
func isNearDuplicate(content string, recent []string) bool {
	for _, r := range recent {
		if jaccardSimilarity(content, r) > jaccardDuplicateThreshold {
			return true
		}
	}
	return false
}
