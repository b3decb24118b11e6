package llm

import "time"

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	// ID is the provider-assigned call identifier, required for
	// tool_result correlation.
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the unified response from any LLM provider.
// All fields use proper Go types; wire format conversion happens
// at the provider boundary (anthropic.go).
type ChatResponse struct {
	Model      string
	CreatedAt  time.Time
	Message    Message
	StopReason string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int
}
