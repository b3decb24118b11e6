package messages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scrivener/internal/source"
)

// sourceName identifies this connector in error values and logs.
const sourceName = "messages"

// Connector lists conversations and messages from an exported
// line-oriented transcript archive. Each call invokes the export tool
// into a fresh scratch directory that is removed on every exit path;
// nothing is cached between calls.
type Connector struct {
	exporterPath string
	selfMarker   string
	timeout      time.Duration
	logger       *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithTimeout bounds one export invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) { c.timeout = d }
}

// WithSelfMarker overrides the line the export format uses for the
// account owner's own messages.
func WithSelfMarker(marker string) Option {
	return func(c *Connector) { c.selfMarker = marker }
}

// New creates a Connector that invokes the export tool at exporterPath.
func New(exporterPath string, logger *slog.Logger, opts ...Option) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connector{
		exporterPath: exporterPath,
		selfMarker:   "Me",
		timeout:      120 * time.Second,
		logger:       logger.With("source", sourceName),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListConversations exports the archive bounded by tr and returns one
// summary per exported conversation whose last activity falls within
// the range. The result is unordered.
func (c *Connector) ListConversations(ctx context.Context, tr source.TimeRange) ([]source.ConversationSummary, error) {
	if tr.IsEmpty() {
		return nil, nil
	}

	parsed, cleanup, err := c.exportAndParse(ctx, &tr)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var summaries []source.ConversationSummary
	for id, msgs := range parsed {
		if len(msgs) == 0 {
			continue
		}
		summary := summarize(id, msgs)
		if !tr.Contains(summary.LastActivity) {
			continue
		}
		summaries = append(summaries, summary)
	}

	c.logger.Debug("listed conversations", "count", len(summaries))
	return summaries, nil
}

// ListMessages exports the conversation's archive and returns its
// messages oldest first. A nil range returns everything available; an
// unknown conversation ID returns an empty slice.
func (c *Connector) ListMessages(ctx context.Context, conversationID string, tr *source.TimeRange) ([]source.Message, error) {
	parsed, cleanup, err := c.exportAndParse(ctx, tr)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	msgs, ok := parsed[conversationID]
	if !ok {
		c.logger.Debug("unknown conversation requested", "conversation", conversationID)
		return nil, nil
	}

	if tr == nil {
		return msgs, nil
	}

	filtered := msgs[:0:0]
	for _, m := range msgs {
		if tr.Contains(m.Timestamp) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// exportAndParse runs the export tool into a fresh scratch directory
// and parses every exported conversation, keyed by conversation ID.
// The returned cleanup must be called on every path; it removes the
// scratch directory unconditionally.
func (c *Connector) exportAndParse(ctx context.Context, tr *source.TimeRange) (map[string][]source.Message, func(), error) {
	dir, err := os.MkdirTemp("", "scrivener-export-*")
	if err != nil {
		return nil, nil, &source.UnavailableError{
			Source: sourceName,
			Err:    fmt.Errorf("create scratch directory: %w", err),
		}
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			c.logger.Warn("failed to remove scratch directory", "dir", dir, "error", err)
		}
	}

	if err := c.runExport(ctx, dir, tr); err != nil {
		cleanup()
		return nil, nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		cleanup()
		return nil, nil, &source.UnavailableError{
			Source: sourceName,
			Err:    fmt.Errorf("read export directory: %w", err),
		}
	}

	parsed := make(map[string][]source.Message, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".txt")

		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			c.logger.Warn("skipping unreadable export", "file", entry.Name(), "error", err)
			continue
		}
		msgs, parseErr := c.parseTranscript(id, f)
		f.Close()
		if parseErr != nil {
			c.logger.Warn("skipping unparseable export", "file", entry.Name(), "error", parseErr)
			continue
		}
		parsed[id] = msgs
	}

	return parsed, cleanup, nil
}

// summarize derives a conversation summary by scanning its parsed
// messages. The conversation ID doubles as the participant set: the
// export names each file by its participants.
func summarize(id string, msgs []source.Message) source.ConversationSummary {
	var last time.Time
	for _, m := range msgs {
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	return source.ConversationSummary{
		ID:           id,
		Participants: strings.Split(id, ", "),
		LastActivity: last,
		MessageCount: len(msgs),
	}
}
