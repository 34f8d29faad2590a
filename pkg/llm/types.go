// Package llm provides the language model client used by the repair
// service's contextual strategy.
//
// The Client interface is intentionally small: a prompt goes in, free-text
// content comes back. The HTTP implementation speaks an OpenAI-compatible
// chat-completions endpoint with connection pooling, retries and a
// per-request timeout.
package llm

import "context"

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Client is the async request/response interface to a language model.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}
