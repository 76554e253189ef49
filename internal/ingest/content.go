package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// readOnlyTools are treated as research/discovery invocations (spec §4.4
// stage 4): their output is never worth storing as a full observation, only
// its occurrence matters for tool-usage accounting.
var readOnlyTools = map[string]bool{
	"Read": true, "Glob": true, "Grep": true, "LS": true,
	"WebFetch": true, "WebSearch": true, "NotebookRead": true,
}

// IsResearchTool reports whether toolName is a read-only/discovery tool.
func IsResearchTool(toolName string) bool {
	return readOnlyTools[toolName]
}

// ExtractContent produces the observation text and an optional title from
// the raw event payload (spec §4.4 stage 5).
func ExtractContent(ev *Event) (content string, title *string) {
	var b strings.Builder
	if ev.ToolName != "" {
		b.WriteString(ev.ToolName)
	}
	if len(ev.ToolInput) > 0 {
		if raw, err := json.Marshal(ev.ToolInput); err == nil {
			b.WriteString(": ")
			b.Write(raw)
		}
	}
	if ev.ToolOutput != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ev.ToolOutput)
	}

	content = strings.TrimSpace(b.String())

	if ev.ToolName != "" {
		t := fmt.Sprintf("%s (%s)", ev.ToolName, string(ev.EventType))
		title = &t
	}
	return content, title
}
