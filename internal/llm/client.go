// Package llm provides LLM client implementations.
package llm

import "context"

// Client is the interface the planner drives. Implementations must
// honor ctx deadlines and cancellation on every call.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks if the provider is reachable with valid credentials.
	Ping(ctx context.Context) error
}
