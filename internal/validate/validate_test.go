package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToolName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"save-memory", true},
		{"query_graph.v2", true},
		{"a", true},
		{"", false},
		{"has a space", false},
		{"emoji-🔥", false},
		{strings.Repeat("a", 129), false},
		{strings.Repeat("a", 128), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToolName(tt.name), "ToolName(%q)", tt.name)
	}
}

type fixture struct {
	Name string `json:"name" validate:"required,min=2"`
}

func TestStructRejectsFailingTags(t *testing.T) {
	err := Struct(&fixture{Name: "x"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min")
}

func TestStructAcceptsValid(t *testing.T) {
	assert.NoError(t, Struct(&fixture{Name: "valid"}))
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	var f fixture
	err := DecodeStrict(strings.NewReader(`{"name": "ok", "extra": true}`), &f)
	assert.Error(t, err)
}

func TestDecodeStrictAcceptsKnownFields(t *testing.T) {
	var f fixture
	err := DecodeStrict(strings.NewReader(`{"name": "ok"}`), &f)
	assert.NoError(t, err)
	assert.Equal(t, "ok", f.Name)
}
