package search

import (
	"context"
	"sort"

	"github.com/kiosk404/agentmem/internal/store"
)

// Weights is the fixed linear blend applied to hybrid search. Both scores
// are already normalized to [0,1] by their respective search paths.
type Weights struct {
	Vector float64
	Text   float64
}

// DefaultWeights favors semantic similarity slightly over keyword overlap.
var DefaultWeights = Weights{Vector: 0.6, Text: 0.4}

// Hybrid runs both search paths (each capped at limit), normalizes and
// fuses their scores by observation ID, and returns a single score-ordered
// list. An observation present in only one path keeps that path's
// normalized score alone. If queryVec is empty (no embedding available for
// the query, or vector search degraded), this is equivalent to Keyword.
func Hybrid(ctx context.Context, db *store.DB, projectHash, rawQuery string, queryVec []float32, limit int, includeDeleted bool, w Weights) ([]Result, error) {
	keywordResults, err := Keyword(ctx, db, projectHash, rawQuery, limit, includeDeleted)
	if err != nil {
		return nil, err
	}

	var vectorResults []Result
	if len(queryVec) > 0 {
		vectorResults, err = Vector(ctx, db, projectHash, queryVec, limit, includeDeleted)
		if err != nil {
			return nil, err
		}
	}
	if len(vectorResults) == 0 {
		return keywordResults, nil
	}

	byID := make(map[string]*Result, len(keywordResults)+len(vectorResults))
	for _, r := range vectorResults {
		cp := r
		byID[r.ObservationID] = &cp
	}
	for _, r := range keywordResults {
		if existing, ok := byID[r.ObservationID]; ok {
			existing.TextScore = r.TextScore
			if r.Snippet != "" {
				existing.Snippet = r.Snippet
			}
		} else {
			cp := r
			byID[r.ObservationID] = &cp
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		r.Score = w.Vector*r.VectorScore + w.Text*r.TextScore
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
