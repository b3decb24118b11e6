package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"scrivener/internal/config"
	"scrivener/internal/httpkit"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a new Anthropic client. Planning prompts
// can take significant time before the first byte arrives (long
// contexts, thinking), so the transport carries a generous response
// header timeout and the client itself has no global timeout; callers
// control deadlines through ctx.
func NewAnthropicClient(apiKey, model string, maxTokens int, logger *slog.Logger) *AnthropicClient {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &AnthropicClient{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With("provider", "anthropic"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// Anthropic request/response types

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContent
}

type anthropicContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"` // for tool_result
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Chat sends a chat completion request and returns the response.
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	anthropicMsgs, systemPrompt := convertToAnthropic(messages)
	anthropicTools := convertToolsToAnthropic(tools)

	c.logger.Debug("preparing request",
		"model", c.model,
		"messages", len(anthropicMsgs),
		"tools", len(anthropicTools),
		"system_len", len(systemPrompt),
	)

	req := anthropicRequest{
		Model:     c.model,
		Messages:  anthropicMsgs,
		System:    systemPrompt,
		MaxTokens: c.maxTokens,
		Tools:     anthropicTools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	resp, err := c.post(ctx, jsonData)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("anthropic API error %d: %s", resp.StatusCode, errBody)
	}

	return c.decodeResponse(ctx, resp.Body)
}

// Ping checks if the Anthropic API is reachable. Anthropic has no
// dedicated health endpoint, so a minimal one-token request verifies
// the API key works.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	req := anthropicRequest{
		Model:     c.model,
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.post(ctx, jsonData)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from Anthropic API: %d", resp.StatusCode)
	}
	return nil
}

func (c *AnthropicClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	return c.httpClient.Do(httpReq)
}

func (c *AnthropicClient) decodeResponse(ctx context.Context, body io.Reader) (*ChatResponse, error) {
	var resp anthropicResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	result := convertFromAnthropic(&resp)

	c.logger.Debug("response received",
		"model", result.Model,
		"stop_reason", result.StopReason,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// convertToAnthropic converts internal messages to Anthropic format.
// Extracts system messages into a separate system prompt.
func convertToAnthropic(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	var result []anthropicMessage

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemParts = append(systemParts, msg.Content)

		case "assistant":
			if len(msg.ToolCalls) > 0 {
				// Assistant message with tool calls → content blocks
				var blocks []anthropicContent
				if msg.Content != "" {
					blocks = append(blocks, anthropicContent{
						Type: "text",
						Text: msg.Content,
					})
				}
				for i, tc := range msg.ToolCalls {
					args := tc.Arguments
					if args == nil {
						args = map[string]any{}
					}
					id := tc.ID
					if id == "" {
						id = fmt.Sprintf("toolu_%s_%d", tc.Name, i)
					}
					blocks = append(blocks, anthropicContent{
						Type:  "tool_use",
						ID:    id,
						Name:  tc.Name,
						Input: args,
					})
				}
				result = append(result, anthropicMessage{
					Role:    "assistant",
					Content: blocks,
				})
			} else {
				result = append(result, anthropicMessage{
					Role:    "assistant",
					Content: msg.Content,
				})
			}

		case "tool":
			// Tool responses → tool_result content blocks
			result = append(result, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})

		case "user":
			result = append(result, anthropicMessage{
				Role:    "user",
				Content: msg.Content,
			})
		}
	}

	system := strings.Join(systemParts, "\n\n")
	return result, system
}

// convertToolsToAnthropic converts OpenAI-format tool definitions to Anthropic format.
func convertToolsToAnthropic(tools []map[string]any) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}

	var result []anthropicTool
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}

		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params := fn["parameters"]

		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		result = append(result, anthropicTool{
			Name:        name,
			Description: desc,
			InputSchema: params,
		})
	}
	return result
}

// convertFromAnthropic converts an Anthropic response to our internal format.
func convertFromAnthropic(resp *anthropicResponse) *ChatResponse {
	var content strings.Builder
	var toolCalls []ToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			content.WriteString(block.Text)
		case "tool_use":
			args, ok := block.Input.(map[string]any)
			if !ok {
				args = map[string]any{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return &ChatResponse{
		Model: resp.Model,
		Message: Message{
			Role:      resp.Role,
			Content:   content.String(),
			ToolCalls: toolCalls,
		},
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
}
