package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"
)

// EmbeddingCacheRepository accesses the embedding_cache table. It is not
// project-scoped: identical content hashes to the same cache entry
// regardless of which project produced it, the way the teacher's cache
// keys only on (provider, model, content hash).
type EmbeddingCacheRepository struct {
	db *store.DB
}

func NewEmbeddingCacheRepository(db *store.DB) *EmbeddingCacheRepository {
	return &EmbeddingCacheRepository{db: db}
}

// Get returns a cached embedding, or nil if absent.
func (r *EmbeddingCacheRepository) Get(ctx context.Context, provider, model, contentHash string) ([]float32, error) {
	var blob []byte
	err := r.db.Conn().QueryRowContext(ctx,
		`SELECT embedding FROM embedding_cache WHERE provider = ? AND model = ? AND content_hash = ?`,
		provider, model, contentHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return vecenc.DecodeBytes(blob)
}

// Put stores an embedding keyed by (provider, model, content hash).
func (r *EmbeddingCacheRepository) Put(ctx context.Context, provider, model, contentHash string, embedding []float32) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO embedding_cache (provider, model, content_hash, embedding, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(provider, model, content_hash) DO UPDATE SET embedding = excluded.embedding, updated_at = excluded.updated_at`,
			provider, model, contentHash, vecenc.EncodeBytes(embedding), time.Now().Unix())
		return err
	})
}

// Prune deletes cache entries not used (by updated_at) in olderThanSeconds,
// bounding cache growth on long-lived installations.
func (r *EmbeddingCacheRepository) Prune(ctx context.Context, olderThanSeconds int64) (int, error) {
	var affected int
	err := r.db.WithTx(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM embedding_cache WHERE updated_at < ?`, time.Now().Unix()-olderThanSeconds)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		affected = int(n)
		return nil
	})
	return affected, err
}

// ClearAll wipes the cache, used on a provider/model change that triggers a
// full reindex.
func (r *EmbeddingCacheRepository) ClearAll(ctx context.Context) error {
	return r.db.WithTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM embedding_cache`)
		return err
	})
}
