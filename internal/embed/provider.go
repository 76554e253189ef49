// Package embed provides the embedding Provider abstraction used by the
// embedding worker: an OpenAI-compatible HTTP backend (adapted from the
// teacher's memory-core/embedding package) and a "local" HTTP backend
// modeled on the LMStudio-style provider in ODSapper-CLIAIRMONITOR's
// internal/memory/embedding_lmstudio.go, for a self-hosted embedding
// server running on the developer's machine.
package embed

import "context"

// Provider is the interface every embedding backend implements.
type Provider interface {
	// ID returns the provider identity (e.g. "openai", "local").
	ID() string
	// Model returns the model name.
	Model() string
	// EmbedQuery embeds a single text into a 384-dimension vector.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds multiple texts in one request where the backend
	// supports batching.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Key returns a stable identifier for (provider, model), used both as the
// embedding_model/embedding_version pair stamped on observations and as the
// embedding cache's partition key.
func Key(p Provider) string {
	return p.ID() + ":" + p.Model()
}
