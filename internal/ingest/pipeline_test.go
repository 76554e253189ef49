package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/store"
)

const testProjectHash = "deadbeefcafef00d"

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Path: filepath.Join(t.TempDir(), "agentmem.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPipelineStoresQualifyingEvent(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})

	ev := &Event{
		EventType:  EventPostToolUse,
		SessionID:  "sess-1",
		ToolName:   "Bash",
		ToolInput:  map[string]interface{}{"command": "go test ./..."},
		ToolOutput: "ok, all tests passed after fixing the null check",
		CWD:        "/home/user/project",
	}
	out := p.Run(context.Background(), ev)
	assert.True(t, out.Stored)
	assert.False(t, out.Rejected)
	assert.NotEmpty(t, out.ObservationID)
}

func TestPipelineRejectsSelfReferentialTool(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})

	ev := &Event{EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "agentmem:save-memory"}
	out := p.Run(context.Background(), ev)
	assert.True(t, out.Rejected)
	assert.Equal(t, "self-referential tool", out.RejectReason)
}

func TestPipelineRejectsResearchTool(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})

	ev := &Event{EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "Read", ToolOutput: "file contents here"}
	out := p.Run(context.Background(), ev)
	assert.True(t, out.Rejected)
	assert.Equal(t, "routed to research buffer", out.RejectReason)
}

func TestPipelineRejectsExcludedPath(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash, ExcludedPaths: []string{"/secrets/*"}})

	ev := &Event{
		EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "Write",
		ToolInput: map[string]interface{}{"file_path": "/secrets/prod.env"},
	}
	out := p.Run(context.Background(), ev)
	assert.True(t, out.Rejected)
	assert.Equal(t, "excluded path", out.RejectReason)
}

func TestPipelineRejectsNavigationOnlyContent(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})

	ev := &Event{EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "Bash", ToolOutput: "cd /tmp/project"}
	out := p.Run(context.Background(), ev)
	assert.True(t, out.Rejected)
	assert.Equal(t, "pure navigation output", out.RejectReason)
}

func TestPipelineRejectsNearDuplicateWithinSession(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})
	ctx := context.Background()

	first := &Event{
		EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "Bash",
		ToolOutput: "fixed the null check in auth.ts and the tests now pass",
	}
	out1 := p.Run(ctx, first)
	require.True(t, out1.Stored)

	second := &Event{
		EventType: EventPostToolUse, SessionID: "sess-1", ToolName: "Bash",
		ToolOutput: "fixed null check in auth.ts file and tests now pass",
	}
	out2 := p.Run(ctx, second)
	assert.True(t, out2.Rejected)
	assert.Equal(t, "near-duplicate", out2.RejectReason)
}

func TestPipelineSessionStartEmitsContextText(t *testing.T) {
	db := newTestDB(t)
	p := NewPipeline(db, Options{ProjectHash: testProjectHash})

	out := p.Run(context.Background(), &Event{EventType: EventSessionStart, SessionID: "sess-1"})
	assert.False(t, out.Rejected)
}
