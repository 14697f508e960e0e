// Package llm provides the language model client that turns user
// messages into action JSON.
package llm

import "context"

// Client is the interface that all LLM providers must implement.
type Client interface {
	// Generate sends a single non-streaming chat request and returns the
	// model's reply.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
