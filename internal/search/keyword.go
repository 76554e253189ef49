// Package search implements keyword (FTS5 bm25), vector (sqlite-vec KNN or
// brute-force cosine fallback), and hybrid fused observation search.
// Grounded on the teacher's memory-core internal/search/search.go and
// internal/hybrid/hybrid.go, generalized from file chunks to observations
// and from a single title-less text column to the title+content pair.
package search

import (
	"context"
	"regexp"
	"strings"

	"github.com/kiosk404/agentmem/internal/store"
)

// Result is one ranked observation match.
type Result struct {
	ObservationID string
	RowID         int64
	Title         string
	Snippet       string
	Source        string
	CreatedAt     int64
	VectorScore   float64
	TextScore     float64
	Score         float64
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// BuildFTSQuery converts a raw query string into a sanitized FTS5 AND query
// over quoted tokens, stripping operator syntax (column filters, NEAR,
// boolean operators) by treating every token as a literal phrase.
func BuildFTSQuery(raw string) string {
	tokens := tokenPattern.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(strings.ReplaceAll(t, `"`, ""))
		if t != "" {
			cleaned = append(cleaned, `"`+t+`"`)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return strings.Join(cleaned, " AND ")
}

// BM25RankToScore converts FTS5's bm25() rank (lower is better, unbounded)
// into a normalized [0,1] score where higher is better, inverting the
// fewer-relevant-first convention of the underlying ranking primitive.
func BM25RankToScore(rank float64) float64 {
	if rank < 0 {
		rank = 0
	}
	return 1.0 / (1.0 + rank)
}

// Keyword runs a column-weighted FTS5 search (title weighted 2.0, content
// 1.0) over observations for the bound project, capped at limit results,
// best-score first. Returns an empty slice (not an error) on an empty or
// fully-stripped query.
func Keyword(ctx context.Context, db *store.DB, projectHash, rawQuery string, limit int, includeDeleted bool) ([]Result, error) {
	ftsQuery := BuildFTSQuery(rawQuery)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT o.id, o.rowid, COALESCE(o.title, ''), o.source, o.created_at,
			bm25(observations_fts, 2.0, 1.0) AS rank,
			snippet(observations_fts, 1, '[', ']', '...', 12)
		FROM observations_fts
		JOIN observations o ON o.rowid = observations_fts.rowid
		WHERE observations_fts MATCH ? AND o.project_hash = ?`
	args := []any{ftsQuery, projectHash}
	if !includeDeleted {
		query += ` AND o.deleted_at IS NULL`
	}
	query += ` ORDER BY rank ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var rank float64
		if err := rows.Scan(&r.ObservationID, &r.RowID, &r.Title, &r.Source, &r.CreatedAt, &rank, &r.Snippet); err != nil {
			return nil, err
		}
		r.TextScore = BM25RankToScore(rank)
		r.Score = r.TextScore
		out = append(out, r)
	}
	return out, rows.Err()
}
