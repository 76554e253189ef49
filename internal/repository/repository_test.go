package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/agentmem/internal/store"
)

// newTestDB opens a fresh on-disk database in the test's temp directory.
// Grounded on the teacher's table-driven test style (no in-memory DSN is
// used anywhere in the pack, so this mirrors store.Open's real file-backed
// path rather than introducing an untested code path).
func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{Path: filepath.Join(t.TempDir(), "agentmem.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

const testProjectHash = "deadbeefcafef00d"
