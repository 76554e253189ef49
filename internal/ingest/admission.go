package ingest

import (
	"regexp"
	"strings"
)

const (
	minContentLength = 1
	maxContentLength = 100000
)

var navigationOnlyRE = regexp.MustCompile(`(?i)^\s*(cd |ls\b|pwd\b|clear\b)[^\n]*$`)

// admissionReject returns a non-empty reason when content fails the
// synchronous admission filter (spec §4.4 stage 6): empty, pure navigation
// output, or outside the length bounds. Noise classification by content
// pattern is explicitly NOT performed here — that is the enrichment agent's
// job (Design Notes §9 open question 1). The length ceiling doubles as the
// synchronous defense against adversarial very-large-paste events that open
// question 1 raises, since a reject here is cheaper than storing then
// classifying megabytes of pasted text.
func admissionReject(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < minContentLength {
		return "empty content"
	}
	if len(trimmed) > maxContentLength {
		return "content exceeds maximum length"
	}
	if navigationOnlyRE.MatchString(trimmed) {
		return "pure navigation output"
	}
	return ""
}
