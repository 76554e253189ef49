package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple terms", "null check auth", `"null" AND "check" AND "auth"`},
		{"strips quotes and operators", `"null" OR check*`, `"null" AND "check"`},
		{"empty query", "", ""},
		{"only punctuation", "!!! ???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFTSQuery(tt.in))
		})
	}
}

func TestBM25RankToScore(t *testing.T) {
	assert.Equal(t, 1.0, BM25RankToScore(0))
	assert.InDelta(t, 0.5, BM25RankToScore(1), 0.0001)
	assert.Equal(t, 1.0, BM25RankToScore(-5), "negative ranks clamp to the best score")
}
