// Package llm wraps an eino BaseChatModel for the inference calls the
// enrichment pipeline needs: classification, entity/relation extraction,
// decision inference, and session summarization. Grounded on the teacher's
// eino-based chat model construction (formerly
// internal/hivemind/service/llm/provider/{openai,anthropic}), adapted away
// from its multi-tenant provider-registry framework into a single
// configured client, since agentmem only ever talks to one configured
// backend at a time.
package llm

import (
	"context"
	"fmt"
	"time"

	einoClaude "github.com/cloudwego/eino-ext/components/model/claude"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/kiosk404/agentmem/internal/config"
)

// Client performs chat-completion calls against the configured LLM
// provider, retrying transient failures with backoff.
type Client struct {
	chatModel      model.BaseChatModel
	providerID     string
	modelName      string
	requestTimeout time.Duration
}

// New builds a Client from LLMOptions, selecting the provider entry named by
// opts.Provider.
func New(ctx context.Context, opts *config.LLMOptions) (*Client, error) {
	pc, ok := opts.Providers[opts.Provider]
	if !ok {
		return nil, fmt.Errorf("llm: no provider configuration for %q", opts.Provider)
	}

	cm, err := buildChatModel(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("llm: build chat model for %q: %w", opts.Provider, err)
	}

	timeout := time.Duration(opts.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		chatModel:      cm,
		providerID:     opts.Provider,
		modelName:      pc.Model,
		requestTimeout: timeout,
	}, nil
}

func buildChatModel(ctx context.Context, pc *config.ProviderConfig) (model.BaseChatModel, error) {
	switch pc.Kind {
	case "anthropic":
		cfg := &einoClaude.Config{
			APIKey:    pc.APIKey,
			Model:     pc.Model,
			MaxTokens: 4096,
		}
		if pc.BaseURL != "" {
			cfg.BaseURL = &pc.BaseURL
		}
		return einoClaude.NewChatModel(ctx, cfg)
	case "openai":
		cfg := &einoOpenAI.ChatModelConfig{
			Model:  pc.Model,
			APIKey: pc.APIKey,
			ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
				Type: einoOpenAI.ChatCompletionResponseFormatTypeText,
			},
		}
		if pc.BaseURL != "" {
			cfg.BaseURL = pc.BaseURL
		}
		return einoOpenAI.NewChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider kind: %q", pc.Kind)
	}
}

// ProviderID returns the configured provider key, recorded alongside
// classification/inference results for auditability.
func (c *Client) ProviderID() string { return c.providerID }

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

// Complete issues a system+user prompt pair and returns the assistant's
// reply text, retrying transient errors with exponential backoff.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userPrompt},
	}

	var reply *schema.Message
	op := func() error {
		var err error
		reply, err = c.chatModel.Generate(ctx, messages)
		return err
	}

	if err := retryWithBackoff(ctx, op); err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	return reply.Content, nil
}
