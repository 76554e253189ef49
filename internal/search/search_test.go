package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/repository"
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

func TestKeywordFindsMatchingObservation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)

	_, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "disabled flaky retries in the auth test suite"})
	require.NoError(t, err)
	_, err = obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "migrated the billing schema"})
	require.NoError(t, err)

	results, err := Keyword(ctx, db, testProjectHash, "flaky retries", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Snippet, "retries")
}

func TestKeywordReturnsEmptyForUnmatchedQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	_, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "something unrelated"})
	require.NoError(t, err)

	results, err := Keyword(ctx, db, testProjectHash, "nonexistent term", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorBruteForceRanksByCosineSimilarity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)

	close, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "close vector"})
	require.NoError(t, err)
	require.NoError(t, obs.UpdateEmbedding(ctx, close.ID, []float32{1, 0, 0}, "test-model", "v1"))

	far, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "far vector"})
	require.NoError(t, err)
	require.NoError(t, obs.UpdateEmbedding(ctx, far.ID, []float32{0, 1, 0}, "test-model", "v1"))

	assert.False(t, db.VectorAvailable())

	results, err := Vector(ctx, db, testProjectHash, []float32{1, 0, 0}, 10, false)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, close.ID, results[0].ObservationID)
}

func TestHybridFallsBackToKeywordWithoutQueryVector(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	_, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "fixed the null check in auth"})
	require.NoError(t, err)

	results, err := Hybrid(ctx, db, testProjectHash, "null check", nil, 10, false, DefaultWeights)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
