package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// localProvider implements Provider against a self-hosted OpenAI-compatible
// embedding server (e.g. LM Studio, Ollama's /v1 shim, text-embeddings-inference)
// running on the developer's machine. Grounded on
// ODSapper-CLIAIRMONITOR's LMStudioEmbedding, generalized to the shared
// Provider interface and batched one request per text the way the source
// does, since most local embedding servers do not support batched input.
type localProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

type LocalOptions struct {
	BaseURL string
	Model   string
}

func NewLocalProvider(opts LocalOptions) Provider {
	return &localProvider{
		baseURL: opts.BaseURL,
		model:   opts.Model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *localProvider) ID() string    { return "local" }
func (l *localProvider) Model() string { return l.model }

type localEmbeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type localEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (l *localProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localEmbeddingRequest{Input: text, Model: l.model})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: call local embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed: local embedding server error: %s - %s", resp.Status, string(respBody))
	}

	var parsed localEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embed: no embedding returned")
	}
	return parsed.Data[0].Embedding, nil
}

// EmbedBatch issues one request per text: most local embedding servers
// (LM Studio among them) do not accept batched input arrays.
func (l *localProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
