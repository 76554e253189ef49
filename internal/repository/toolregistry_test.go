package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestToolRegistryRecordUsageCreatesEntry(t *testing.T) {
	db := newTestDB(t)
	repo := NewToolRegistryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordUsage(ctx, "save-memory", testProjectHash, true))
	require.NoError(t, repo.RecordUsage(ctx, "save-memory", testProjectHash, false))

	entries, err := repo.Discover(ctx, testProjectHash, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "save-memory", entries[0].Name)
	assert.Equal(t, 2, entries[0].UsageCount)

	report, err := repo.Report(ctx, testProjectHash)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 2, report[0].Invocations)
	assert.Equal(t, 1, report[0].Successes)
}

func TestToolRegistryRegisterAndDiscoverByKeyword(t *testing.T) {
	db := newTestDB(t)
	repo := NewToolRegistryRepository(db)
	ctx := context.Background()

	desc := "traverses the knowledge graph"
	require.NoError(t, repo.Register(ctx, model.ToolRegistryEntry{
		Name: "query-graph", Type: model.ToolTypeBuiltin, Scope: model.ToolScopeGlobal, Source: "config", Description: &desc,
	}))

	found, err := repo.Discover(ctx, testProjectHash, "graph")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "query-graph", found[0].Name)

	notFound, err := repo.Discover(ctx, testProjectHash, "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, notFound)
}

func TestToolRegistryMarkStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewToolRegistryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordUsage(ctx, "save-memory", testProjectHash, true))

	n, err := repo.MarkStale(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
