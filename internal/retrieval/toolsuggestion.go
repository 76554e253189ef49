package retrieval

import "fmt"

// FormatToolSuggestion renders a queued tool-suggestion notification's
// payload into the single line surfaced to the host assistant (spec §4.6).
func FormatToolSuggestion(suggestedTool, reason string, confidence float64) string {
	return fmt.Sprintf("Suggestion: consider using %q (%s, confidence %.0f%%)", suggestedTool, reason, confidence*100)
}
