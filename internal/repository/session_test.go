package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartEndAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db, testProjectHash)
	ctx := context.Background()

	require.NoError(t, repo.Start(ctx, "sess-1"))

	found, err := repo.FindByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.EndedAt)

	require.NoError(t, repo.End(ctx, "sess-1", "fixed the auth bug"))

	ended, err := repo.FindByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	require.NotNil(t, ended.Summary)
	assert.Equal(t, "fixed the auth bug", *ended.Summary)
}

func TestSessionStartIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db, testProjectHash)
	ctx := context.Background()

	require.NoError(t, repo.Start(ctx, "sess-1"))
	require.NoError(t, repo.Start(ctx, "sess-1"))

	found, err := repo.FindByID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestSessionLastEnded(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db, testProjectHash)
	ctx := context.Background()

	require.NoError(t, repo.Start(ctx, "sess-1"))
	require.NoError(t, repo.End(ctx, "sess-1", "done"))

	last, err := repo.LastEnded(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "sess-1", last.ID)
}
