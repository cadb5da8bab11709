// Package llm is the Brain's abstraction over the LLM provider:
// a small Complete/Embed contract satisfied by an Anthropic-SDK-backed
// client or a langchaingo-backed fallback, selected by config.LLMBackend
// and wrapped in a circuit breaker for the upstream-unavailable error kind.
// Shaped after pkg/agent/llm_client.go's LLMClient interface,
// generalized from a streaming Chunk channel to a single request/response
// pair since Understanding and Execution each need one structured JSON
// object back, not a token stream.
package llm

import "context"

// Message is one turn in a chat-completion request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is one Complete call. JSONMode asks the backend to
// constrain output to a single JSON object, used by Understanding's
// structured intent-inference prompt and Execution's announcement
// rewrite prompt.
type CompletionRequest struct {
	Model       string
	Temperature float64
	System      string
	Messages    []Message
	JSONMode    bool
	MaxTokens   int
}

// CompletionResponse is the result of a Complete call.
type CompletionResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// EmbeddingRequest is one Embed call.
type EmbeddingRequest struct {
	Model string
	Input string
}

// EmbeddingResponse is the result of an Embed call.
type EmbeddingResponse struct {
	Embedding []float32
	Model     string
}

// Client is the contract every LLM backend implements. Implementations
// must be safe for concurrent use — one process-wide client is shared
// across all webhook goroutines.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
