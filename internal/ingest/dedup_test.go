package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNearDuplicate(t *testing.T) {
	recent := []string{"fixed the null check in auth.ts", "migrated the billing schema"}

	assert.True(t, isNearDuplicate("fixed null check in auth.ts file", recent))
	assert.False(t, isNearDuplicate("wrote a brand new integration test", recent))
	assert.False(t, isNearDuplicate("anything", nil))
}

func TestJaccardSimilarityEmptyInputs(t *testing.T) {
	assert.Equal(t, 0.0, jaccardSimilarity("", "something"))
	assert.Equal(t, 0.0, jaccardSimilarity("something", ""))
}
