package embed

import (
	"fmt"

	"github.com/kiosk404/agentmem/internal/config"
)

// Result reports which provider was actually constructed, carrying the
// fallback trail when the requested provider could not be built. Grounded on
// the teacher's embedding.ProviderResult.
type Result struct {
	Provider         Provider
	RequestedBackend string
	FallbackFrom     string
	FallbackReason   string
}

// NewProvider builds a Provider from EmbeddingOptions, falling back to
// opts.Fallback when the requested provider's entry is missing or
// misconfigured (e.g. an "openai" provider with no API key set).
func NewProvider(opts *config.EmbeddingOptions) (*Result, error) {
	requested := opts.Provider

	var createByID func(id string) (Provider, error)
	createByID = func(id string) (Provider, error) {
		pc, ok := opts.Providers[id]
		if !ok {
			return nil, fmt.Errorf("no provider configuration for %q", id)
		}
		switch pc.Kind {
		case "openai":
			if pc.APIKey == "" {
				return nil, fmt.Errorf("no API key configured for provider %q", id)
			}
			return NewOpenAIProvider(OpenAIOptions{
				APIKey:  pc.APIKey,
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
			}), nil
		case "local":
			if pc.BaseURL == "" {
				return nil, fmt.Errorf("no base-url configured for provider %q", id)
			}
			return NewLocalProvider(LocalOptions{
				BaseURL: pc.BaseURL,
				Model:   pc.Model,
			}), nil
		default:
			return nil, fmt.Errorf("unsupported embedding provider kind: %q", pc.Kind)
		}
	}

	provider, err := createByID(requested)
	if err != nil {
		if opts.Fallback != "" && opts.Fallback != "none" && opts.Fallback != requested {
			fallbackProvider, fallbackErr := createByID(opts.Fallback)
			if fallbackErr != nil {
				return nil, fmt.Errorf("no fallback embedding provider available (tried %s): %w", opts.Fallback, fallbackErr)
			}
			return &Result{
				Provider:         fallbackProvider,
				RequestedBackend: requested,
				FallbackFrom:     requested,
				FallbackReason:   err.Error(),
			}, nil
		}
		return nil, err
	}

	return &Result{Provider: provider, RequestedBackend: requested}, nil
}
