package retrieval

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

func TestRecallSearch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	_, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "fixed the null check in auth middleware"})
	require.NoError(t, err)

	resp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionSearch, Query: "null check auth"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 1, resp.TotalCount)
}

func TestRecallViewByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	o, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "decided to use SQLite WAL mode"})
	require.NoError(t, err)

	resp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionView, ID: o.ID, Detail: DetailFull})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "decided to use SQLite WAL mode", resp.Items[0].Content)
}

func TestRecallViewByTitleSubstring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	title := "Auth Middleware Fix"
	_, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Title: &title, Content: "details here"})
	require.NoError(t, err)

	resp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionView, Title: "middleware"})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
}

func TestRecallPurgeAndRestoreRequireExplicitIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := Recall(ctx, db, testProjectHash, Request{Action: ActionPurge})
	assert.ErrorIs(t, err, ErrExplicitIDsRequired)

	_, err = Recall(ctx, db, testProjectHash, Request{Action: ActionRestore})
	assert.ErrorIs(t, err, ErrExplicitIDsRequired)
}

func TestRecallPurgeThenRestoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	obs := repository.NewObservationRepository(db, testProjectHash)
	o, err := obs.Create(ctx, repository.CreateInput{Source: "user-saved", Content: "temporary note"})
	require.NoError(t, err)

	purgeResp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionPurge, IDs: []string{o.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, purgeResp.Purged)

	viewResp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionView, ID: o.ID})
	require.NoError(t, err)
	assert.Empty(t, viewResp.Items)

	restoreResp, err := Recall(ctx, db, testProjectHash, Request{Action: ActionRestore, IDs: []string{o.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, restoreResp.Restored)

	restoredView, err := Recall(ctx, db, testProjectHash, Request{Action: ActionView, ID: o.ID})
	require.NoError(t, err)
	assert.Len(t, restoredView.Items, 1)
}

func TestRecallUnknownAction(t *testing.T) {
	db := newTestDB(t)
	_, err := Recall(context.Background(), db, testProjectHash, Request{Action: "bogus"})
	assert.Error(t, err)
}

func TestSnippetTruncatesLongText(t *testing.T) {
	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	out := snippet(string(long), 200)
	assert.Len(t, []rune(out), 203)
}
