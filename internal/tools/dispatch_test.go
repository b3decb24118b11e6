package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"scrivener/internal/llm"
)

func dispatcherWith(tools ...*Tool) *Dispatcher {
	reg := NewRegistry()
	for _, t := range tools {
		reg.Register(t)
	}
	return NewDispatcher(reg, nil)
}

func TestDispatchUnknownToolNeverRaises(t *testing.T) {
	d := dispatcherWith()

	res := d.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "ghost"})
	if !res.IsError {
		t.Fatal("unknown tool must produce an error result")
	}
	if res.CallID != "c1" || !strings.Contains(res.Content, "ghost") {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	d := dispatcherWith(&Tool{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			panic("handler bug")
		},
	})

	res := d.Dispatch(context.Background(), llm.ToolCall{ID: "c1", Name: "boom"})
	if !res.IsError || !strings.Contains(res.Content, "panicked") {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatchAllPreservesOrder(t *testing.T) {
	d := dispatcherWith(&Tool{
		Name: "echo",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"n": map[string]any{"type": "integer"}},
			"required":   []string{"n"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			n := int(args["n"].(float64))
			// Later calls finish first to exercise reassembly.
			time.Sleep(time.Duration(8-n) * 10 * time.Millisecond)
			return fmt.Sprintf("result-%d", n), nil
		},
	})

	var calls []llm.ToolCall
	for i := 0; i < 8; i++ {
		calls = append(calls, llm.ToolCall{
			ID:        fmt.Sprintf("c%d", i),
			Name:      "echo",
			Arguments: map[string]any{"n": float64(i)},
		})
	}

	results := d.DispatchAll(context.Background(), calls)
	if len(results) != len(calls) {
		t.Fatalf("results = %d, want %d", len(results), len(calls))
	}
	for i, res := range results {
		if res.CallID != calls[i].ID {
			t.Errorf("result[%d].CallID = %q, want %q", i, res.CallID, calls[i].ID)
		}
		if want := fmt.Sprintf("result-%d", i); res.Content != want {
			t.Errorf("result[%d].Content = %q, want %q", i, res.Content, want)
		}
	}
}

func TestDispatchAllMixedOutcomes(t *testing.T) {
	d := dispatcherWith(&Tool{
		Name: "ok",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "fine", nil
		},
	}, &Tool{
		Name: "fail",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("backend down")
		},
	})

	results := d.DispatchAll(context.Background(), []llm.ToolCall{
		{ID: "a", Name: "ok"},
		{ID: "b", Name: "fail"},
		{ID: "c", Name: "ok"},
	})

	if results[0].IsError || results[2].IsError {
		t.Error("successful calls flagged as errors")
	}
	if !results[1].IsError || !strings.Contains(results[1].Content, "backend down") {
		t.Errorf("failed call result = %+v", results[1])
	}
}
