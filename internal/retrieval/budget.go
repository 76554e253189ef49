// Package retrieval implements unified recall, session-start context
// assembly, and tool-suggestion formatting (spec §4.6), sharing a
// character-based token-budget heuristic across all three.
package retrieval

const charsPerToken = 4

// TokenBudget converts a token count to the character-based heuristic
// budget used throughout this package (spec §4.6: "four characters per
// token").
func TokenBudget(tokens int) int {
	return tokens * charsPerToken
}

const (
	CompactTokenBudget  = 2000
	FullViewTokenBudget = 4000
)

// truncateToBudget accumulates rendered items (in the order given, assumed
// already priority/score-sorted) until the next one would exceed budget
// characters, always including at least one item. It returns the included
// items and whether truncation occurred.
func truncateToBudget(items []string, budgetChars int) (included []string, truncated bool) {
	total := 0
	for i, item := range items {
		total += len(item)
		if i > 0 && total > budgetChars {
			return items[:i], true
		}
		included = items[:i+1]
	}
	return included, false
}
