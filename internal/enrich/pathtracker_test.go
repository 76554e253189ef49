package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kiosk404/agentmem/internal/llm"
	"github.com/kiosk404/agentmem/internal/model"
)

func TestWaypointTypeFromHint(t *testing.T) {
	tests := []struct {
		hint     string
		fallback model.WaypointType
		want     model.WaypointType
	}{
		{hint: "pivot", fallback: model.WaypointError, want: model.WaypointPivot},
		{hint: "resolution", fallback: model.WaypointSuccess, want: model.WaypointResolution},
		{hint: "", fallback: model.WaypointAttempt, want: model.WaypointAttempt},
		{hint: "not-a-real-hint", fallback: model.WaypointSuccess, want: model.WaypointSuccess},
	}
	for _, tt := range tests {
		sig := &llm.DebugSignal{WaypointHint: tt.hint}
		assert.Equal(t, tt.want, waypointTypeFromHint(sig, tt.fallback))
	}
}

func TestSnippetOf(t *testing.T) {
	assert.Equal(t, "short", snippetOf("short", 200))
	assert.Equal(t, "abcde", snippetOf("abcdefghij", 5))
}

func TestPruneErrorBuffer(t *testing.T) {
	tr := &PathTracker{}
	start := time.Unix(0, 0)
	tr.errorBuffer = []bufferedError{
		{at: start},
		{at: start},
	}
	tr.pruneErrorBuffer(start.Add(debugErrorWindow + time.Second))
	assert.Empty(t, tr.errorBuffer)
}

func TestPruneErrorBufferKeepsRecentEntries(t *testing.T) {
	tr := &PathTracker{}
	start := time.Unix(0, 0)
	tr.errorBuffer = []bufferedError{{at: start}}
	tr.pruneErrorBuffer(start.Add(time.Minute))
	assert.Len(t, tr.errorBuffer, 1)
}
