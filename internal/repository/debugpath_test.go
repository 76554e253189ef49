package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestDebugPathStartActiveResolve(t *testing.T) {
	db := newTestDB(t)
	repo := NewDebugPathRepository(db, testProjectHash)
	ctx := context.Background()

	p, err := repo.StartPath(ctx, "nil pointer in auth middleware")
	require.NoError(t, err)
	assert.Equal(t, model.DebugPathActive, p.Status)

	active, err := repo.ActivePath(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p.ID, active.ID)

	require.NoError(t, repo.Resolve(ctx, p.ID, "added nil check", ""))

	afterResolve, err := repo.ActivePath(ctx)
	require.NoError(t, err)
	assert.Nil(t, afterResolve)

	resolved, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, model.DebugPathResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionSummary)
	assert.Equal(t, "added nil check", *resolved.ResolutionSummary)
}

func TestDebugPathStartFailsWhenAlreadyActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewDebugPathRepository(db, testProjectHash)
	ctx := context.Background()

	_, err := repo.StartPath(ctx, "first")
	require.NoError(t, err)

	_, err = repo.StartPath(ctx, "second")
	assert.Error(t, err)
}

func TestDebugPathAppendAndListWaypoints(t *testing.T) {
	db := newTestDB(t)
	repo := NewDebugPathRepository(db, testProjectHash)
	ctx := context.Background()

	p, err := repo.StartPath(ctx, "flaky test")
	require.NoError(t, err)

	_, err = repo.AppendWaypoint(ctx, p.ID, nil, model.WaypointAttempt, "tried disabling retries")
	require.NoError(t, err)
	_, err = repo.AppendWaypoint(ctx, p.ID, nil, model.WaypointSuccess, "confirmed stable over 20 runs")
	require.NoError(t, err)

	waypoints, err := repo.Waypoints(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, waypoints, 2)

	count, err := repo.WaypointCount(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDebugPathList(t *testing.T) {
	db := newTestDB(t)
	repo := NewDebugPathRepository(db, testProjectHash)
	ctx := context.Background()

	p, err := repo.StartPath(ctx, "first issue")
	require.NoError(t, err)
	require.NoError(t, repo.Abandon(ctx, p.ID))

	_, err = repo.StartPath(ctx, "second issue")
	require.NoError(t, err)

	paths, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}
