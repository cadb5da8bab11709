// Package langchain backs the Brain's multi-provider fallback LLM path
// with github.com/tmc/langchaingo, selected via the LLMBackendLangChain
// config enum value. Drives langchaingo's llms.Model.GenerateContent
// directly, and also supports Embed via llms.Model's embeddings
// extension, since the Anthropic backend cannot.
package langchain

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/codeready-toolchain/brain/pkg/llm"
)

// Embedder is the subset of langchaingo's embeddings capability this
// package needs; satisfied by *embeddings.EmbedderImpl wrapping a model.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Client implements llm.Client over a langchaingo llms.Model, used as the
// fallback backend when config.LLMBackendLangChain is selected (e.g. to
// reach a non-Anthropic provider without a second bespoke adapter).
type Client struct {
	model    llms.Model
	embedder Embedder // optional; nil means Embed is unsupported
}

// New wraps an already-constructed langchaingo model. embedder may be nil.
func New(model llms.Model, embedder Embedder) (*Client, error) {
	if model == nil {
		return nil, errors.New("langchain: model is required")
	}
	return &Client{model: model, embedder: embedder}, nil
}

// Complete issues a GenerateContent call, translating the Brain's
// CompletionRequest into langchaingo's MessageContent slice.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var parts []llms.MessageContent
	if req.System != "" {
		parts = append(parts, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == llm.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		parts = append(parts, llms.TextParts(role, m.Content))
	}
	if len(parts) == 0 {
		return nil, errors.New("langchain: at least one message is required")
	}

	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.model.GenerateContent(ctx, parts, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("langchain: empty response")
	}
	choice := resp.Choices[0]

	out := &llm.CompletionResponse{Content: choice.Content, Model: req.Model}
	if gi := choice.GenerationInfo; gi != nil {
		if v, ok := gi["InputTokens"].(int); ok {
			out.InputTokens = v
		}
		if v, ok := gi["OutputTokens"].(int); ok {
			out.OutputTokens = v
		}
	}
	return out, nil
}

// Embed generates a single embedding vector via the configured Embedder.
func (c *Client) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	if c.embedder == nil {
		return nil, errors.New("langchain: no embedder configured")
	}
	vec, err := c.embedder.EmbedQuery(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	return &llm.EmbeddingResponse{Embedding: vec, Model: req.Model}, nil
}
