// Package source defines the connector capability shared by all
// personal-data sources, the normalized conversation/message model,
// and the lineage reconstruction used for tree-shaped dialogues.
package source

import (
	"context"
	"time"
)

// Role identifies who produced a message within its source's own
// vocabulary. Exported-transcript sources use Self/Other; hosted
// dialogue sources use Human/Assistant.
type Role string

const (
	RoleSelf      Role = "self"
	RoleOther     Role = "other"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// ConversationSummary describes one conversation as seen by a source.
// Summaries are transient: constructed per call, never persisted.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
	// Title is set by sources whose conversations carry one (hosted
	// dialogues); exported transcripts leave it empty.
	Title string `json:"title,omitempty"`
}

// Message is one normalized message. ParentID is set only by sources
// with tree-shaped dialogues; ordering is meaningful only after
// reconstruction.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Role      `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	ParentID  string    `json:"parent_id,omitempty"`
}

// TimeRange bounds a query on the source's own notion of activity
// time. Bounds are inclusive; a zero bound is open on that side.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// IsEmpty reports whether the range can match nothing (start after end).
func (r TimeRange) IsEmpty() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End)
}

// Connector is the capability every personal-data source implements.
// All operations are read-only against the source and must release any
// transient resource (scratch directories, subprocesses, connections)
// on every exit path. Failures are converted to the structured errors
// in this package before they reach the tool dispatcher.
type Connector interface {
	// ListConversations returns the conversations whose last activity
	// falls within the range. The result is unordered; callers must not
	// assume any order. An empty range yields an empty result, never an
	// error.
	ListConversations(ctx context.Context, tr TimeRange) ([]ConversationSummary, error)

	// ListMessages returns a conversation's messages ordered oldest to
	// newest. A nil range returns all available messages. An unknown
	// conversation ID returns an empty slice, not an error, so a
	// hallucinated identifier degrades gracefully instead of aborting
	// the run.
	ListMessages(ctx context.Context, conversationID string, tr *TimeRange) ([]Message, error)
}
