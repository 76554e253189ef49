package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiosk404/agentmem/internal/model"
)

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		wantHigh bool
	}{
		{name: "identical text", a: "fixed the null check in auth", b: "fixed the null check in auth", wantHigh: true},
		{name: "near-duplicate phrasing", a: "fixed null check in auth.ts", b: "fixed the null check in auth.ts file", wantHigh: true},
		{name: "unrelated text", a: "refactored the embedding cache", b: "wrote a new migration for sessions", wantHigh: false},
		{name: "empty strings", a: "", b: "something", wantHigh: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := jaccardSimilarity(tt.a, tt.b)
			if tt.wantHigh {
				assert.Greater(t, sim, dedupJaccardThreshold)
			} else {
				assert.LessOrEqual(t, sim, dedupJaccardThreshold)
			}
		})
	}
}

func TestMeanVector(t *testing.T) {
	got := meanVector([][]float32{{1, 2, 3}, {3, 4, 5}})
	assert.Equal(t, []float32{2, 3, 4}, got)
}

func TestMeanVectorSkipsMismatchedDimensions(t *testing.T) {
	got := meanVector([][]float32{{1, 2}, {1, 2, 3}, {3, 4}})
	assert.Equal(t, []float32{2, 3}, got)
}

func TestNormalizeEntityName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Utils/Parser.go", "utils/parser.go"},
		{`utils\parser.go`, "utils/parser.go"},
		{"  Auth   Service  ", "auth service"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeEntityName(tt.in))
	}
}

func TestHasContradiction(t *testing.T) {
	edges := []*model.GraphEdge{
		{Type: model.EdgeCausedBy},
		{Type: model.EdgeSolvedBy},
	}
	assert.True(t, hasContradiction(edges))
	assert.False(t, hasContradiction(edges[:1]))
}

func TestIsDuplicatePairFallsBackToJaccard(t *testing.T) {
	a := &model.Observation{Content: "fixed the null check in auth.ts"}
	b := &model.Observation{Content: "fixed null check in auth.ts file"}
	assert.True(t, isDuplicatePair(a, b))

	c := &model.Observation{Content: "migrated the session table schema"}
	assert.False(t, isDuplicatePair(a, c))
}
