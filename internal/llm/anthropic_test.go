package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConvertToAnthropicExtractsSystem(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "you are a planner"},
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "be brief"},
	}

	converted, system := convertToAnthropic(msgs)

	if system != "you are a planner\n\nbe brief" {
		t.Errorf("system = %q", system)
	}
	if len(converted) != 1 {
		t.Fatalf("converted = %d messages, want 1", len(converted))
	}
	if converted[0].Role != "user" {
		t.Errorf("role = %q, want user", converted[0].Role)
	}
}

func TestConvertToAnthropicToolCalls(t *testing.T) {
	msgs := []Message{
		{
			Role:    "assistant",
			Content: "let me check",
			ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "list_conversations", Arguments: map[string]any{"start_date": "2026-08-01"}},
			},
		},
		{Role: "tool", ToolCallID: "toolu_1", Content: `{"ok":true}`},
	}

	converted, _ := convertToAnthropic(msgs)
	if len(converted) != 2 {
		t.Fatalf("converted = %d messages, want 2", len(converted))
	}

	blocks, ok := converted[0].Content.([]anthropicContent)
	if !ok {
		t.Fatalf("assistant content is %T, want []anthropicContent", converted[0].Content)
	}
	if len(blocks) != 2 || blocks[0].Type != "text" || blocks[1].Type != "tool_use" {
		t.Errorf("unexpected blocks: %+v", blocks)
	}
	if blocks[1].ID != "toolu_1" || blocks[1].Name != "list_conversations" {
		t.Errorf("tool_use block = %+v", blocks[1])
	}

	// Tool result goes back as a user turn with a tool_result block.
	if converted[1].Role != "user" {
		t.Errorf("tool result role = %q, want user", converted[1].Role)
	}
	resBlocks := converted[1].Content.([]anthropicContent)
	if resBlocks[0].Type != "tool_result" || resBlocks[0].ToolUseID != "toolu_1" {
		t.Errorf("tool_result block = %+v", resBlocks[0])
	}
}

func TestConvertToAnthropicGeneratesMissingIDs(t *testing.T) {
	msgs := []Message{
		{
			Role:      "assistant",
			ToolCalls: []ToolCall{{Name: "list_messages"}},
		},
	}

	converted, _ := convertToAnthropic(msgs)
	blocks := converted[0].Content.([]anthropicContent)
	if blocks[0].ID == "" {
		t.Error("expected a synthesized tool_use ID")
	}
}

func TestConvertFromAnthropic(t *testing.T) {
	resp := &anthropicResponse{
		Role:  "assistant",
		Model: "claude-sonnet-4-20250514",
		Content: []anthropicContent{
			{Type: "text", Text: "checking "},
			{Type: "tool_use", ID: "toolu_9", Name: "list_conversations", Input: map[string]any{"start_date": "2026-08-01", "end_date": "2026-08-24"}},
			{Type: "text", Text: "now"},
		},
		StopReason: "tool_use",
		Usage:      anthropicUsage{InputTokens: 12, OutputTokens: 34},
	}

	got := convertFromAnthropic(resp)

	if got.Message.Content != "checking now" {
		t.Errorf("content = %q", got.Message.Content)
	}
	if len(got.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(got.Message.ToolCalls))
	}
	tc := got.Message.ToolCalls[0]
	if tc.ID != "toolu_9" || tc.Name != "list_conversations" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["end_date"] != "2026-08-24" {
		t.Errorf("arguments = %+v", tc.Arguments)
	}
	if got.InputTokens != 12 || got.OutputTokens != 34 {
		t.Errorf("usage = %d/%d", got.InputTokens, got.OutputTokens)
	}
	if got.StopReason != "tool_use" {
		t.Errorf("stop reason = %q", got.StopReason)
	}
}

func TestChatAgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("max_tokens = %d", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Role:       "assistant",
			Model:      req.Model,
			Content:    []anthropicContent{{Type: "text", Text: "done"}},
			StopReason: "end_turn",
		})
	}))
	defer srv.Close()

	c := NewAnthropicClient("sk-test", "claude-sonnet-4-20250514", 0, nil)
	// Chat posts to the production endpoint constant; redirect at the
	// transport so the client code stays untouched.
	c.httpClient = srv.Client()
	c.httpClient.Transport = rewriteHost(srv.URL, http.DefaultTransport)

	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Message.Content != "done" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

// rewriteHost redirects all requests to the test server regardless of
// the request URL, so the production endpoint constant stays untouched.
func rewriteHost(target string, base http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		redirected := req.Clone(req.Context())
		u := *req.URL
		redirected.URL = &u
		redirected.URL.Scheme = "http"
		redirected.URL.Host = target[len("http://"):]
		return base.RoundTrip(redirected)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
