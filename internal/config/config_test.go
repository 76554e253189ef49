package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaultsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())
}

func TestOptionsCompleteExpandsHomeDir(t *testing.T) {
	opts := NewOptions()
	opts.Store.DataDir = "~/agentmem-data"
	require.NoError(t, opts.Complete())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "agentmem-data"), opts.Store.DataDir)
}

func TestOptionsCompleteDefaultsWorkDir(t *testing.T) {
	opts := NewOptions()
	opts.WorkDir = ""
	require.NoError(t, opts.Complete())
	assert.NotEmpty(t, opts.WorkDir)
}

func TestOptionsDBPath(t *testing.T) {
	opts := NewOptions()
	opts.Store.DataDir = "/var/agentmem"
	assert.Equal(t, "/var/agentmem/abc123/memory.db", opts.DBPath("abc123"))
}

func TestEmbeddingOptionsValidateRejectsUnknownProvider(t *testing.T) {
	o := NewEmbeddingOptions()
	o.Provider = "does-not-exist"
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "does-not-exist")
}

func TestEmbeddingOptionsValidateRejectsNonPositiveDimensions(t *testing.T) {
	o := NewEmbeddingOptions()
	o.Dimensions = 0
	errs := o.Validate()
	assert.NotEmpty(t, errs)
}

func TestLLMOptionsValidateRejectsNonPositiveConcurrency(t *testing.T) {
	o := NewLLMOptions()
	o.MaxConcurrent = 0
	errs := o.Validate()
	assert.NotEmpty(t, errs)
}

func TestAgentOptionsValidateThresholdOrdering(t *testing.T) {
	tests := []struct {
		name    string
		min     float64
		max     float64
		wantErr bool
	}{
		{"valid ordering", 0.1, 0.6, false},
		{"min not less than max", 0.6, 0.6, true},
		{"min non-positive", 0, 0.6, true},
	}
	for _, tt := range tests {
		o := NewAgentOptions()
		o.ShiftThresholdMin = tt.min
		o.ShiftThresholdMax = tt.max
		errs := o.Validate()
		if tt.wantErr {
			assert.NotEmpty(t, errs, tt.name)
		} else {
			assert.Empty(t, errs, tt.name)
		}
	}
}

func TestStoreOptionsValidateRejectsEmptyDataDir(t *testing.T) {
	o := NewStoreOptions()
	o.DataDir = ""
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.True(t, strings.Contains(errs[0].Error(), "data-dir"))
}
