package toolserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/store"
)

const testProjectHash = "deadbeefcafef00d"

func newTestHandlers(t *testing.T) *handlers {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Path: filepath.Join(t.TempDir(), "agentmem.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newHandlers(&Config{DB: db, ProjectHash: testProjectHash})
}

func callReq(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResultText(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "expected a non-error tool result")
	require.NotEmpty(t, res.Content)
	textContent, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), v))
}

func TestSaveMemoryAndRecallRoundTrip(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	saveRes, err := h.saveMemory(ctx, callReq("save-memory", map[string]interface{}{
		"text": "decided to vendor sqlite-vec for local vector search",
	}))
	require.NoError(t, err)
	var saved map[string]string
	decodeResultText(t, saveRes, &saved)
	assert.NotEmpty(t, saved["id"])

	recallRes, err := h.recall(ctx, callReq("recall", map[string]interface{}{
		"action": "search",
		"query":  "sqlite-vec vector search",
	}))
	require.NoError(t, err)
	var resp struct {
		Items      []map[string]interface{} `json:"items"`
		TotalCount int                       `json:"total_count"`
	}
	decodeResultText(t, recallRes, &resp)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestSaveMemoryRejectsEmptyText(t *testing.T) {
	h := newTestHandlers(t)
	res, err := h.saveMemory(context.Background(), callReq("save-memory", map[string]interface{}{"text": ""}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestStatusReportsProjectAndFeatureAvailability(t *testing.T) {
	h := newTestHandlers(t)
	res, err := h.status(context.Background(), callReq("status", nil))
	require.NoError(t, err)
	var status map[string]interface{}
	decodeResultText(t, res, &status)
	assert.Equal(t, testProjectHash, status["project_hash"])
}

func TestGraphStatsOnEmptyProject(t *testing.T) {
	h := newTestHandlers(t)
	res, err := h.graphStats(context.Background(), callReq("graph-stats", nil))
	require.NoError(t, err)
	var stats map[string]interface{}
	decodeResultText(t, res, &stats)
	assert.Equal(t, float64(0), stats["NodeCount"])
}

func TestDebugPathsStartShowResolve(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	startRes, err := h.debugPaths(ctx, callReq("debug-paths", map[string]interface{}{
		"action": "start", "summary": "intermittent 500s on checkout",
	}))
	require.NoError(t, err)
	var started map[string]interface{}
	decodeResultText(t, startRes, &started)
	id, _ := started["ID"].(string)
	require.NotEmpty(t, id)

	showRes, err := h.debugPaths(ctx, callReq("debug-paths", map[string]interface{}{
		"action": "show", "id": id,
	}))
	require.NoError(t, err)
	assert.False(t, showRes.IsError)

	resolveRes, err := h.debugPaths(ctx, callReq("debug-paths", map[string]interface{}{
		"action": "resolve", "id": id, "summary": "fixed the timeout config",
	}))
	require.NoError(t, err)
	assert.False(t, resolveRes.IsError)
}

func TestDebugPathsUnknownAction(t *testing.T) {
	h := newTestHandlers(t)
	res, err := h.debugPaths(context.Background(), callReq("debug-paths", map[string]interface{}{"action": "teleport"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDiscoverToolsAndReportTools(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	require.NoError(t, h.tools.RecordUsage(ctx, "save-memory", testProjectHash, true))

	discoverRes, err := h.discoverTools(ctx, callReq("discover-tools", map[string]interface{}{"keyword": "save"}))
	require.NoError(t, err)
	var entries []map[string]interface{}
	decodeResultText(t, discoverRes, &entries)
	assert.Len(t, entries, 1)

	reportRes, err := h.reportTools(ctx, callReq("report-tools", nil))
	require.NoError(t, err)
	var reports []map[string]interface{}
	decodeResultText(t, reportRes, &reports)
	assert.Len(t, reports, 1)
}
