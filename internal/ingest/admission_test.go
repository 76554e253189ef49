package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmissionReject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty content", "   ", "empty content"},
		{"navigation only", "cd /tmp/project", "pure navigation output"},
		{"ls output", "ls -la", "pure navigation output"},
		{"too long", strings.Repeat("x", maxContentLength+1), "content exceeds maximum length"},
		{"valid content", "fixed the null check in auth.ts", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, admissionReject(tt.content))
		})
	}
}

func TestIsResearchTool(t *testing.T) {
	assert.True(t, IsResearchTool("Read"))
	assert.True(t, IsResearchTool("Grep"))
	assert.False(t, IsResearchTool("Bash"))
	assert.False(t, IsResearchTool("Write"))
}

func TestExtractContent(t *testing.T) {
	ev := &Event{
		EventType: EventPostToolUse,
		ToolName:  "Bash",
		ToolInput: map[string]interface{}{"command": "go test ./..."},
		ToolOutput: "ok",
	}
	content, title := ExtractContent(ev)
	assert.Contains(t, content, "Bash")
	assert.Contains(t, content, "go test")
	assert.Contains(t, content, "ok")
	if assert.NotNil(t, title) {
		assert.Equal(t, "Bash (PostToolUse)", *title)
	}
}

func TestExtractContentNoToolName(t *testing.T) {
	ev := &Event{EventType: EventStop, ToolOutput: "final thoughts"}
	content, title := ExtractContent(ev)
	assert.Equal(t, "final thoughts", content)
	assert.Nil(t, title)
}
