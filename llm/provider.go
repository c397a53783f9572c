// Package llm defines the unified language-model provider interface used by
// the consensus orchestrator and the query planner.
package llm

import (
	"context"
	"time"
)

// GenerateRequest is a single text-generation request.
type GenerateRequest struct {
	TraceID     string        `json:"trace_id,omitempty"`
	Prompt      string        `json:"prompt"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// GenerateResponse is the completed generation.
type GenerateResponse struct {
	Text      string    `json:"text"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Provider is the unified LLM adapter interface. Implementations must be
// safe for concurrent invocation: the consensus orchestrator issues many
// Generate calls in parallel. Provider-level failures (timeout, rate limit,
// malformed response) should be returned as *types.Error with KindProvider
// so the orchestrator can apply its partial-failure tolerance.
type Provider interface {
	// Generate issues a synchronous generation request.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider's unique identifier.
	Name() string
}
