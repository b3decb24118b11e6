package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"scrivener/internal/llm"
)

// maxConcurrentTools bounds parallel tool execution in one round.
const maxConcurrentTools = 4

// defaultCallTimeout bounds a single tool invocation.
const defaultCallTimeout = 60 * time.Second

// Result is the outcome of one tool call. Every call produces exactly
// one Result: failures are carried in the Content with IsError set, so
// the model always receives a response for each call it issued.
type Result struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Dispatcher executes tool calls against a registry. It never lets a
// tool failure or panic escape as an error; each problem becomes an
// error-flagged Result instead.
type Dispatcher struct {
	registry    *Registry
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    registry,
		callTimeout: defaultCallTimeout,
		logger:      logger,
	}
}

// Dispatch runs one tool call to completion.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) Result {
	res := Result{CallID: call.ID, Name: call.Name}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	start := time.Now()
	content, err := d.executeSafely(callCtx, call)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Warn("tool call failed",
			"tool", call.Name,
			"duration", elapsed,
			"error", err,
		)
		res.Content = fmt.Sprintf("Error: %v", err)
		res.IsError = true
		return res
	}

	d.logger.Debug("tool call completed", "tool", call.Name, "duration", elapsed)
	res.Content = content
	return res
}

// DispatchAll runs a round of tool calls concurrently and returns their
// results in the same order the calls were issued.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []llm.ToolCall) []Result {
	if len(calls) == 0 {
		return nil
	}
	if len(calls) == 1 {
		return []Result{d.Dispatch(ctx, calls[0])}
	}

	results := make([]Result, len(calls))
	p := pool.New().WithMaxGoroutines(maxConcurrentTools)
	for i, call := range calls {
		p.Go(func() {
			results[i] = d.Dispatch(ctx, call)
		})
	}
	p.Wait()
	return results
}

// executeSafely invokes the tool, converting a handler panic into an
// error so one bad tool cannot take down the run.
func (d *Dispatcher) executeSafely(ctx context.Context, call llm.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()
	return d.registry.Execute(ctx, call.Name, call.Arguments)
}
