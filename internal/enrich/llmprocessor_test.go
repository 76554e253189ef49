package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiosk404/agentmem/internal/llm"
	"github.com/kiosk404/agentmem/internal/model"
)

func TestQualityGate(t *testing.T) {
	tests := []struct {
		name   string
		entity llm.ExtractedEntity
		want   bool
	}{
		{
			name:   "passes above its type threshold",
			entity: llm.ExtractedEntity{Type: model.NodeTypeDecision, Name: "use SQLite WAL mode", Confidence: 0.8},
			want:   true,
		},
		{
			name:   "rejected below its type threshold",
			entity: llm.ExtractedEntity{Type: model.NodeTypeDecision, Name: "use SQLite WAL mode", Confidence: 0.5},
			want:   false,
		},
		{
			name:   "rejected for vague leading article",
			entity: llm.ExtractedEntity{Type: model.NodeTypeFile, Name: "the file", Confidence: 0.9},
			want:   false,
		},
		{
			name:   "rejected for too-short name",
			entity: llm.ExtractedEntity{Type: model.NodeTypeFile, Name: "db", Confidence: 0.9},
			want:   false,
		},
		{
			name:   "unknown type falls back to default threshold",
			entity: llm.ExtractedEntity{Type: model.NodeType("Unknown"), Name: "some entity", Confidence: 0.6},
			want:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualityGate(tt.entity))
		})
	}
}
