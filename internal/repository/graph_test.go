package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestGraphUpsertNodeIsIdempotentByTypeAndName(t *testing.T) {
	db := newTestDB(t)
	repo := NewGraphRepository(db, testProjectHash)
	ctx := context.Background()

	n1, err := repo.UpsertNode(ctx, model.NodeTypeFile, "internal/store/store.go", nil, "obs-1")
	require.NoError(t, err)

	n2, err := repo.UpsertNode(ctx, model.NodeTypeFile, "internal/store/store.go", nil, "obs-2")
	require.NoError(t, err)

	assert.Equal(t, n1.ID, n2.ID)
}

func TestGraphFindNode(t *testing.T) {
	db := newTestDB(t)
	repo := NewGraphRepository(db, testProjectHash)
	ctx := context.Background()

	_, err := repo.UpsertNode(ctx, model.NodeTypeDecision, "use WAL mode", nil, "obs-1")
	require.NoError(t, err)

	found, err := repo.FindNode(ctx, model.NodeTypeDecision, "use WAL mode")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "use WAL mode", found.Name)

	missing, err := repo.FindNode(ctx, model.NodeTypeDecision, "no such node")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGraphUpsertEdgeAndTraverse(t *testing.T) {
	db := newTestDB(t)
	repo := NewGraphRepository(db, testProjectHash)
	ctx := context.Background()

	problem, err := repo.UpsertNode(ctx, model.NodeTypeProblem, "flaky retry test", nil, "obs-1")
	require.NoError(t, err)
	solution, err := repo.UpsertNode(ctx, model.NodeTypeSolution, "disable retries in CI", nil, "obs-1")
	require.NoError(t, err)

	_, err = repo.UpsertEdge(ctx, problem.ID, solution.ID, model.EdgeSolvedBy, 0.9, nil)
	require.NoError(t, err)

	nodes, edges, err := repo.Traverse(ctx, problem.ID, 2)
	require.NoError(t, err)
	assert.Len(t, edges, 1)
	assert.GreaterOrEqual(t, len(nodes), 2)
}

func TestGraphStats(t *testing.T) {
	db := newTestDB(t)
	repo := NewGraphRepository(db, testProjectHash)
	ctx := context.Background()

	a, err := repo.UpsertNode(ctx, model.NodeTypeFile, "a.go", nil, "obs-1")
	require.NoError(t, err)
	b, err := repo.UpsertNode(ctx, model.NodeTypeFile, "b.go", nil, "obs-1")
	require.NoError(t, err)
	_, err = repo.UpsertEdge(ctx, a.ID, b.ID, model.EdgeRelatedTo, 0.5, nil)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NodeCount)
	assert.Equal(t, 1, stats.EdgeCount)
	assert.Equal(t, 2, stats.NodesByType[model.NodeTypeFile])
}

func TestGraphOutgoingEdgeCount(t *testing.T) {
	db := newTestDB(t)
	repo := NewGraphRepository(db, testProjectHash)
	ctx := context.Background()

	a, err := repo.UpsertNode(ctx, model.NodeTypeFile, "a.go", nil, "obs-1")
	require.NoError(t, err)
	b, err := repo.UpsertNode(ctx, model.NodeTypeFile, "b.go", nil, "obs-1")
	require.NoError(t, err)
	_, err = repo.UpsertEdge(ctx, a.ID, b.ID, model.EdgeRelatedTo, 0.5, nil)
	require.NoError(t, err)

	count, err := repo.OutgoingEdgeCount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
