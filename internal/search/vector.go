package search

import (
	"context"

	"github.com/kiosk404/agentmem/internal/store"
	"github.com/kiosk404/agentmem/internal/vecenc"
)

// Vector runs a K-nearest-neighbors search. When the vector extension
// loaded, it queries the observations_vec virtual table directly; otherwise
// it falls back to a brute-force cosine-similarity scan over every embedded
// observation in the project, which is silently fine for the local,
// single-developer data volumes this system targets.
func Vector(ctx context.Context, db *store.DB, projectHash string, query []float32, limit int, includeDeleted bool) ([]Result, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if db.VectorAvailable() {
		return vectorKNN(ctx, db, projectHash, query, limit, includeDeleted)
	}
	return vectorBruteForce(ctx, db, projectHash, query, limit, includeDeleted)
}

func vectorKNN(ctx context.Context, db *store.DB, projectHash string, query []float32, limit int, includeDeleted bool) ([]Result, error) {
	vecJSON := vecenc.EncodeJSON(query)

	// observations_vec has no project scoping of its own; join back to
	// observations to enforce it and to pull the display columns.
	rows, err := db.Conn().QueryContext(ctx, `
		SELECT o.id, o.rowid, COALESCE(o.title, ''), o.source, o.created_at, v.distance
		FROM observations_vec v
		JOIN observations o ON o.id = v.observation_id
		WHERE v.embedding MATCH ? AND o.project_hash = ?`+deletedClause(includeDeleted)+`
		ORDER BY v.distance LIMIT ?`,
		vecJSON, projectHash, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVectorRows(rows)
}

func deletedClause(includeDeleted bool) string {
	if includeDeleted {
		return ""
	}
	return " AND o.deleted_at IS NULL"
}

func scanVectorRows(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Result, error) {
	var out []Result
	for rows.Next() {
		var r Result
		var distance float64
		if err := rows.Scan(&r.ObservationID, &r.RowID, &r.Title, &r.Source, &r.CreatedAt, &distance); err != nil {
			return nil, err
		}
		// Cosine distance in [0,2]; convert to a [0,1] similarity score.
		r.VectorScore = 1 - distance/2
		r.Score = r.VectorScore
		out = append(out, r)
	}
	return out, rows.Err()
}

func vectorBruteForce(ctx context.Context, db *store.DB, projectHash string, query []float32, limit int, includeDeleted bool) ([]Result, error) {
	q := `SELECT id, rowid, COALESCE(title, ''), source, created_at, embedding FROM observations
		WHERE project_hash = ? AND embedding IS NOT NULL`
	if !includeDeleted {
		q += ` AND deleted_at IS NULL`
	}
	rows, err := db.Conn().QueryContext(ctx, q, projectHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []Result
	for rows.Next() {
		var r Result
		var blob []byte
		if err := rows.Scan(&r.ObservationID, &r.RowID, &r.Title, &r.Source, &r.CreatedAt, &blob); err != nil {
			return nil, err
		}
		vec, err := vecenc.DecodeBytes(blob)
		if err != nil {
			continue
		}
		r.VectorScore = vecenc.CosineSimilarity(query, vec)
		r.Score = r.VectorScore
		scored = append(scored, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Partial sort: limit is small (<=20) relative to realistic project
	// sizes, so a simple selection pass is adequate.
	for i := 0; i < len(scored) && i < limit; i++ {
		best := i
		for j := i + 1; j < len(scored); j++ {
			if scored[j].Score > scored[best].Score {
				best = j
			}
		}
		scored[i], scored[best] = scored[best], scored[i]
	}
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
