// Package planner runs the bounded plan-enhancement loop: the model
// explores the user's recent conversations through tools, then emits
// an enhanced planning prompt that gets extracted and persisted.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scrivener/internal/llm"
	"scrivener/internal/tools"
)

// BudgetExceededError is returned when the model is still issuing tool
// calls after the full iteration budget. The transcript up to that
// point is preserved on the error for inspection.
type BudgetExceededError struct {
	Rounds     int
	Transcript *Transcript
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("planning did not converge within %d rounds", e.Rounds)
}

// Result is the outcome of a completed planning run.
type Result struct {
	RawResult      string      `json:"raw_result"`
	EnhancedPrompt string      `json:"enhanced_prompt"`
	Delimited      bool        `json:"delimited"`
	Transcript     *Transcript `json:"transcript"`
	Rounds         int         `json:"rounds"`
	ToolCalls      int         `json:"tool_calls"`
	LookbackDays   int         `json:"lookback_days"`
	InputTokens    int         `json:"input_tokens"`
	OutputTokens   int         `json:"output_tokens"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at"`
}

// Planner drives the model/tool loop.
type Planner struct {
	llm           llm.Client
	registry      *tools.Registry
	dispatcher    *tools.Dispatcher
	maxIterations int
	lookbackDays  int
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxIterations caps the number of model/tool rounds.
func WithMaxIterations(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxIterations = n
		}
	}
}

// WithLookbackDays sets how far back the context window reaches.
func WithLookbackDays(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.lookbackDays = n
		}
	}
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// New creates a Planner over the given model client and tool registry.
func New(client llm.Client, registry *tools.Registry, logger *slog.Logger, opts ...Option) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{
		llm:           client,
		registry:      registry,
		dispatcher:    tools.NewDispatcher(registry, logger),
		maxIterations: 10,
		lookbackDays:  7,
		logger:        logger,
		now:           time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the planning loop for one task statement. It returns a
// BudgetExceededError when the model never produced a tool-free final
// turn within the iteration budget.
func (p *Planner) Run(ctx context.Context, task string) (*Result, error) {
	startedAt := p.now()
	transcript := &Transcript{}

	opening := p.openingTurn(task, startedAt)
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: opening},
	}
	transcript.AppendUser(opening)

	toolDefs := p.registry.List()
	totalInput, totalOutput, totalCalls := 0, 0, 0

	for round := 0; round < p.maxIterations; round++ {
		roundStart := time.Now()
		p.logger.Info("model call", "round", round, "messages", len(messages))

		resp, err := p.llm.Chat(ctx, messages, toolDefs)
		if err != nil {
			return nil, fmt.Errorf("model call failed (round %d): %w", round, err)
		}

		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens
		transcript.AppendAssistant(resp.Message)
		messages = append(messages, resp.Message)

		p.logger.Info("model response",
			"round", round,
			"tool_calls", len(resp.Message.ToolCalls),
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"elapsed", time.Since(roundStart).Round(time.Millisecond),
		)

		// No tool calls means the model is done.
		if len(resp.Message.ToolCalls) == 0 {
			raw := resp.Message.Content
			prompt, delimited := ExtractPrompt(raw)
			if !delimited {
				p.logger.Warn("final response had no delimited plan block, using fallback template")
			}
			return &Result{
				RawResult:      raw,
				EnhancedPrompt: prompt,
				Delimited:      delimited,
				Transcript:     transcript,
				Rounds:         round + 1,
				ToolCalls:      totalCalls,
				LookbackDays:   p.lookbackDays,
				InputTokens:    totalInput,
				OutputTokens:   totalOutput,
				StartedAt:      startedAt,
				FinishedAt:     p.now(),
			}, nil
		}

		results := p.dispatcher.DispatchAll(ctx, resp.Message.ToolCalls)
		totalCalls += len(results)
		transcript.AppendToolResults(results)
		for _, res := range results {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    res.Content,
				ToolCallID: res.CallID,
			})
		}
	}

	p.logger.Warn("iteration budget exhausted", "max_iterations", p.maxIterations)
	return nil, &BudgetExceededError{Rounds: p.maxIterations, Transcript: transcript}
}

// openingTurn builds the first user turn: the task, the lookback
// window, and a nudge toward the conversation tools.
func (p *Planner) openingTurn(task string, now time.Time) string {
	end := now.UTC()
	start := end.AddDate(0, 0, -p.lookbackDays)

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", strings.TrimSpace(task))
	fmt.Fprintf(&b, "Context window: %s through %s (the last %d days).\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"), p.lookbackDays)
	b.WriteString("Use the listing tools to survey conversations in this window, then read the ones that look relevant before writing the plan.")
	return b.String()
}

const systemPrompt = `You are a planning assistant with read access to the user's recent conversations across their messaging apps, AI chats, and email.

Gather context with the provided tools, then write an enhanced planning prompt that folds in concrete commitments, open threads, and upcoming obligations you found. Mention people and dates by name.

When you are done, output the enhanced prompt between ` + planOpen + ` and ` + planClose + ` markers. Output nothing after the closing marker.`
