package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestStashCreateAndRecent(t *testing.T) {
	db := newTestDB(t)
	repo := NewStashRepository(db, testProjectHash)
	ctx := context.Background()

	s, err := repo.Create(ctx, nil, "auth refactor", "was mid-refactor of auth middleware",
		[]string{"obs-1", "obs-2"}, []model.ObservationSnapshot{{ID: "obs-1", Content: "started refactor"}})
	require.NoError(t, err)
	assert.Equal(t, model.StashStashed, s.Status)

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "auth refactor", recent[0].TopicLabel)
	assert.Equal(t, []string{"obs-1", "obs-2"}, recent[0].ObservationIDs)
}

func TestStashMarkResumed(t *testing.T) {
	db := newTestDB(t)
	repo := NewStashRepository(db, testProjectHash)
	ctx := context.Background()

	s, err := repo.Create(ctx, nil, "topic", "summary", nil, nil)
	require.NoError(t, err)

	require.NoError(t, repo.MarkResumed(ctx, s.ID))

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, model.StashResumed, recent[0].Status)
}

func TestStashExpireOlderThan(t *testing.T) {
	db := newTestDB(t)
	repo := NewStashRepository(db, testProjectHash)
	ctx := context.Background()

	_, err := repo.Create(ctx, nil, "topic", "summary", nil, nil)
	require.NoError(t, err)

	n, err := repo.ExpireOlderThan(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
