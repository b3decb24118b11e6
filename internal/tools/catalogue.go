package tools

import (
	"context"
	"fmt"
	"time"

	"scrivener/internal/source"
)

// dateLayout is the calendar-date format tool arguments use.
const dateLayout = "2006-01-02"

// RegisterSourceTools registers the conversation-listing and
// message-listing tools for one data source. Tool names embed the
// source name so the model can address each source independently.
func RegisterSourceTools(reg *Registry, sourceName string, conn source.Connector) {
	dateParam := func(desc string) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": desc + " as YYYY-MM-DD",
			"pattern":     `^\d{4}-\d{2}-\d{2}$`,
		}
	}

	reg.Register(&Tool{
		Name: fmt.Sprintf("list_%s_conversations", sourceName),
		Description: fmt.Sprintf(
			"List %s conversations with activity between start_date and end_date (inclusive). Returns conversation IDs, participants, last activity, and message counts.",
			sourceName),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": dateParam("First day of the window"),
				"end_date":   dateParam("Last day of the window"),
			},
			"required": []string{"start_date", "end_date"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return listConversations(ctx, sourceName, conn, args)
		},
	})

	reg.Register(&Tool{
		Name: fmt.Sprintf("list_%s_messages", sourceName),
		Description: fmt.Sprintf(
			"List the messages of one %s conversation in chronological order. Optionally restrict to a date window.",
			sourceName),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"conversation_id": map[string]any{
					"type":        "string",
					"description": "Conversation ID as returned by the conversation listing tool",
				},
				"start_date": dateParam("Optional first day of the window"),
				"end_date":   dateParam("Optional last day of the window"),
			},
			"required": []string{"conversation_id"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return listMessages(ctx, sourceName, conn, args)
		},
	})
}

func listConversations(ctx context.Context, sourceName string, conn source.Connector, args map[string]any) (string, error) {
	toolName := fmt.Sprintf("list_%s_conversations", sourceName)

	tr, err := parseRange(toolName, args)
	if err != nil {
		return "", err
	}
	if tr == nil {
		return "", &MalformedInputError{Tool: toolName, Detail: "start_date and end_date are required"}
	}

	summaries, err := conn.ListConversations(ctx, *tr)
	if err != nil {
		return "", err
	}

	return marshalResult(map[string]any{
		"source":        sourceName,
		"count":         len(summaries),
		"conversations": summaries,
	})
}

func listMessages(ctx context.Context, sourceName string, conn source.Connector, args map[string]any) (string, error) {
	toolName := fmt.Sprintf("list_%s_messages", sourceName)

	id, _ := args["conversation_id"].(string)
	if id == "" {
		return "", &MalformedInputError{Tool: toolName, Detail: "conversation_id is required"}
	}

	tr, err := parseRange(toolName, args)
	if err != nil {
		return "", err
	}

	msgs, err := conn.ListMessages(ctx, id, tr)
	if err != nil {
		return "", err
	}

	return marshalResult(map[string]any{
		"source":          sourceName,
		"conversation_id": id,
		"count":           len(msgs),
		"messages":        msgs,
	})
}

// parseRange builds a time range from start_date/end_date arguments.
// Both dates are interpreted as whole UTC days, so the end bound
// extends to the last instant of its day. Returns nil when neither
// argument is present.
func parseRange(toolName string, args map[string]any) (*source.TimeRange, error) {
	startRaw, _ := args["start_date"].(string)
	endRaw, _ := args["end_date"].(string)
	if startRaw == "" && endRaw == "" {
		return nil, nil
	}

	var tr source.TimeRange
	if startRaw != "" {
		start, err := time.ParseInLocation(dateLayout, startRaw, time.UTC)
		if err != nil {
			return nil, &MalformedInputError{Tool: toolName, Detail: fmt.Sprintf("start_date %q is not YYYY-MM-DD", startRaw)}
		}
		tr.Start = start
	}
	if endRaw != "" {
		end, err := time.ParseInLocation(dateLayout, endRaw, time.UTC)
		if err != nil {
			return nil, &MalformedInputError{Tool: toolName, Detail: fmt.Sprintf("end_date %q is not YYYY-MM-DD", endRaw)}
		}
		tr.End = end.Add(24*time.Hour - time.Nanosecond)
	}
	return &tr, nil
}
