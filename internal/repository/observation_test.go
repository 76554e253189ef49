package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestObservationCreateAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := NewObservationRepository(db, testProjectHash)
	ctx := context.Background()

	title := "fixed the flaky test"
	o, err := repo.Create(ctx, CreateInput{Source: "user-saved", Title: &title, Content: "disabled retries in CI"})
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)
	assert.Equal(t, "disabled retries in CI", o.Content)
	assert.Equal(t, &title, o.Title)

	found, err := repo.FindByID(ctx, o.ID, false)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, o.ID, found.ID)
}

func TestObservationCreateRejectsEmptyContent(t *testing.T) {
	db := newTestDB(t)
	repo := NewObservationRepository(db, testProjectHash)
	_, err := repo.Create(context.Background(), CreateInput{Source: "user-saved", Content: ""})
	assert.Error(t, err)
}

func TestObservationSoftDeleteAndRestore(t *testing.T) {
	db := newTestDB(t)
	repo := NewObservationRepository(db, testProjectHash)
	ctx := context.Background()

	o, err := repo.Create(ctx, CreateInput{Source: "user-saved", Content: "some note"})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, o.ID))
	found, err := repo.FindByID(ctx, o.ID, false)
	require.NoError(t, err)
	assert.Nil(t, found)

	foundDeleted, err := repo.FindByID(ctx, o.ID, true)
	require.NoError(t, err)
	require.NotNil(t, foundDeleted)
	assert.NotNil(t, foundDeleted.DeletedAt)

	require.NoError(t, repo.Restore(ctx, o.ID))
	restored, err := repo.FindByID(ctx, o.ID, false)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Nil(t, restored.DeletedAt)
}

func TestObservationUpdateClassificationNoiseSoftDeletes(t *testing.T) {
	db := newTestDB(t)
	repo := NewObservationRepository(db, testProjectHash)
	ctx := context.Background()

	o, err := repo.Create(ctx, CreateInput{Source: "hook", Content: "ran ls -la"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateClassification(ctx, o.ID, model.ClassificationNoise))
	found, err := repo.FindByID(ctx, o.ID, true)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.Classification)
	assert.Equal(t, model.ClassificationNoise, *found.Classification)
	assert.NotNil(t, found.DeletedAt)
}

func TestObservationUpdateEmbedding(t *testing.T) {
	db := newTestDB(t)
	repo := NewObservationRepository(db, testProjectHash)
	ctx := context.Background()

	o, err := repo.Create(ctx, CreateInput{Source: "user-saved", Content: "vector me"})
	require.NoError(t, err)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, repo.UpdateEmbedding(ctx, o.ID, vec, "text-embedding-3-small", "v1"))

	found, err := repo.FindByID(ctx, o.ID, false)
	require.NoError(t, err)
	require.NotNil(t, found.EmbeddingModel)
	assert.Equal(t, "text-embedding-3-small", *found.EmbeddingModel)
	assert.Equal(t, vec, found.Embedding)
}

func TestObservationScopedByProjectHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repoA := NewObservationRepository(db, "projectA")
	repoB := NewObservationRepository(db, "projectB")

	o, err := repoA.Create(ctx, CreateInput{Source: "user-saved", Content: "project A secret"})
	require.NoError(t, err)

	found, err := repoB.FindByID(ctx, o.ID, false)
	require.NoError(t, err)
	assert.Nil(t, found)
}
