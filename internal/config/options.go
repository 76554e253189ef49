package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ProviderConfig describes one HTTP embedding or chat-completion endpoint.
// Mirrors the provider/model shape used for both embedding and LLM
// configuration, since both are "call an HTTP endpoint with a model id".
type ProviderConfig struct {
	Kind    string            `json:"kind" mapstructure:"kind"` // "openai" or "local"
	BaseURL string            `json:"base-url" mapstructure:"base-url"`
	APIKey  string            `json:"api-key" mapstructure:"api-key"`
	Model   string            `json:"model" mapstructure:"model"`
	Headers map[string]string `json:"headers" mapstructure:"headers"`
}

// EmbeddingOptions configures the embedding provider used to vectorize
// observation content.
type EmbeddingOptions struct {
	Provider   string                     `json:"provider" mapstructure:"provider"` // active provider key
	Fallback   string                     `json:"fallback" mapstructure:"fallback"` // provider key to try if Provider fails to construct, or "none"
	Dimensions int                        `json:"dimensions" mapstructure:"dimensions"`
	Providers  map[string]*ProviderConfig `json:"providers" mapstructure:"providers"`
}

func NewEmbeddingOptions() *EmbeddingOptions {
	return &EmbeddingOptions{
		Provider:   "openai",
		Fallback:   "none",
		Dimensions: 384,
		Providers: map[string]*ProviderConfig{
			"openai": {Kind: "openai", BaseURL: "https://api.openai.com/v1", Model: "text-embedding-3-small"},
			"local":  {Kind: "local", BaseURL: "http://localhost:1234/v1", Model: "nomic-embed-text"},
		},
	}
}

func (o *EmbeddingOptions) Validate() []error {
	var errs []error
	if o.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive"))
	}
	if _, ok := o.Providers[o.Provider]; !ok {
		errs = append(errs, fmt.Errorf("embedding.provider %q has no matching entry in embedding.providers", o.Provider))
	}
	return errs
}

func (o *EmbeddingOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Provider, "embedding.provider", o.Provider, "Active embedding provider key.")
	fs.IntVar(&o.Dimensions, "embedding.dimensions", o.Dimensions, "Embedding vector dimensionality.")
}

// LLMOptions configures the chat-completion model used for classification,
// entity/relation extraction, decision inference, and session summaries.
type LLMOptions struct {
	Provider           string                     `json:"provider" mapstructure:"provider"`
	Providers          map[string]*ProviderConfig `json:"providers" mapstructure:"providers"`
	MaxConcurrent      int                        `json:"max-concurrent" mapstructure:"max-concurrent"`
	RequestTimeoutSecs int                        `json:"request-timeout-secs" mapstructure:"request-timeout-secs"`
}

func NewLLMOptions() *LLMOptions {
	return &LLMOptions{
		Provider: "anthropic",
		Providers: map[string]*ProviderConfig{
			"anthropic": {Kind: "anthropic", Model: "claude-3-5-haiku-latest"},
			"openai":    {Kind: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		},
		MaxConcurrent:      2,
		RequestTimeoutSecs: 30,
	}
}

func (o *LLMOptions) Validate() []error {
	var errs []error
	if o.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("llm.max-concurrent must be positive"))
	}
	if _, ok := o.Providers[o.Provider]; !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q has no matching entry in llm.providers", o.Provider))
	}
	return errs
}

func (o *LLMOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Provider, "llm.provider", o.Provider, "Active LLM provider key.")
	fs.IntVar(&o.MaxConcurrent, "llm.max-concurrent", o.MaxConcurrent, "Maximum concurrent enrichment LLM calls.")
	fs.IntVar(&o.RequestTimeoutSecs, "llm.request-timeout-secs", o.RequestTimeoutSecs, "Per-call LLM request timeout in seconds.")
}

// AgentOptions tunes the enrichment agents run by memd.
type AgentOptions struct {
	EmbeddingIntervalMS  int     `json:"embedding-interval-ms" mapstructure:"embedding-interval-ms"`
	EnrichIntervalMS     int     `json:"enrich-interval-ms" mapstructure:"enrich-interval-ms"`
	CurationIntervalMins int     `json:"curation-interval-mins" mapstructure:"curation-interval-mins"`
	MaxNodeDegree        int     `json:"max-node-degree" mapstructure:"max-node-degree"`
	StalenessDays        int     `json:"staleness-days" mapstructure:"staleness-days"`
	ShiftThresholdMin     float64 `json:"shift-threshold-min" mapstructure:"shift-threshold-min"`
	ShiftThresholdMax     float64 `json:"shift-threshold-max" mapstructure:"shift-threshold-max"`
}

func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		EmbeddingIntervalMS:  500,
		EnrichIntervalMS:     2000,
		CurationIntervalMins: 30,
		MaxNodeDegree:        64,
		StalenessDays:        90,
		ShiftThresholdMin:    0.15,
		ShiftThresholdMax:    0.60,
	}
}

func (o *AgentOptions) Validate() []error {
	var errs []error
	if o.ShiftThresholdMin <= 0 || o.ShiftThresholdMax <= o.ShiftThresholdMin {
		errs = append(errs, fmt.Errorf("agents.shift-threshold-min/max must satisfy 0 < min < max"))
	}
	if o.MaxNodeDegree <= 0 {
		errs = append(errs, fmt.Errorf("agents.max-node-degree must be positive"))
	}
	return errs
}

func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.EmbeddingIntervalMS, "agents.embedding-interval-ms", o.EmbeddingIntervalMS, "Embedding worker poll interval.")
	fs.IntVar(&o.EnrichIntervalMS, "agents.enrich-interval-ms", o.EnrichIntervalMS, "LLM enrichment processor tick interval.")
	fs.IntVar(&o.CurationIntervalMins, "agents.curation-interval-mins", o.CurationIntervalMins, "Curation agent sweep interval.")
	fs.IntVar(&o.MaxNodeDegree, "agents.max-node-degree", o.MaxNodeDegree, "Maximum edges retained per graph node before pruning.")
	fs.IntVar(&o.StalenessDays, "agents.staleness-days", o.StalenessDays, "Days of inactivity before a node is eligible for staleness pruning.")
	fs.Float64Var(&o.ShiftThresholdMin, "agents.shift-threshold-min", o.ShiftThresholdMin, "Lower clamp for the adaptive topic-shift threshold.")
	fs.Float64Var(&o.ShiftThresholdMax, "agents.shift-threshold-max", o.ShiftThresholdMax, "Upper clamp for the adaptive topic-shift threshold.")
}

// StoreOptions configures the SQLite storage engine.
type StoreOptions struct {
	DataDir          string `json:"data-dir" mapstructure:"data-dir"`
	VecExtensionPath string `json:"vec-extension-path" mapstructure:"vec-extension-path"`
}

func NewStoreOptions() *StoreOptions {
	return &StoreOptions{DataDir: "~/.agentmem"}
}

func (o *StoreOptions) Validate() []error {
	var errs []error
	if o.DataDir == "" {
		errs = append(errs, fmt.Errorf("store.data-dir must not be empty"))
	}
	return errs
}

func (o *StoreOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.DataDir, "store.data-dir", o.DataDir, "Directory holding per-project SQLite databases.")
	fs.StringVar(&o.VecExtensionPath, "store.vec-extension-path", o.VecExtensionPath, "Path to the sqlite-vec shared library (vec0.so/.dylib/.dll). Empty disables vector search.")
}
