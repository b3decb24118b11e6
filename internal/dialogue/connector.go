package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scrivener/internal/source"
)

// sourceName identifies this connector in error values and logs.
const sourceName = "dialogue"

// Connector lists conversations and linearized message threads from a
// hosted AI-dialogue service. When the service cannot be reached it
// falls back to a local snapshot, then to a built-in example, so the
// agent always receives a well-formed tool result. Authentication
// failures do not fall back: they surface as a structured
// needs-re-authentication error.
type Connector struct {
	client   *client
	snapshot *snapshotStore
	logger   *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithSnapshotDir sets the local snapshot fallback directory.
func WithSnapshotDir(dir string) Option {
	return func(c *Connector) { c.snapshot = &snapshotStore{dir: dir} }
}

// New creates a Connector for the service at baseURL, authenticating
// through the given session provider.
func New(baseURL string, session SessionProvider, timeout time.Duration, logger *slog.Logger, opts ...Option) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", sourceName)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Connector{
		client:   newClient(baseURL, session, timeout, logger),
		snapshot: &snapshotStore{},
		logger:   logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListConversations returns conversations whose last activity falls
// within the range. The result is unordered.
func (c *Connector) ListConversations(ctx context.Context, tr source.TimeRange) ([]source.ConversationSummary, error) {
	if tr.IsEmpty() {
		return nil, nil
	}

	items, err := c.client.fetchConversations(ctx)
	if err != nil {
		if source.IsAuthExpired(err) {
			return nil, err
		}
		c.logger.Warn("conversation fetch failed, using fallback", "error", err)
		items = c.fallbackList()
	}

	var summaries []source.ConversationSummary
	for _, item := range items {
		last := time.Unix(int64(item.UpdateTime), 0).UTC()
		if !tr.Contains(last) {
			continue
		}
		summaries = append(summaries, source.ConversationSummary{
			ID:           item.ID,
			Participants: []string{string(source.RoleHuman), string(source.RoleAssistant)},
			LastActivity: last,
			Title:        item.Title,
		})
	}

	c.logger.Debug("listed conversations", "count", len(summaries))
	return summaries, nil
}

// ListMessages returns the conversation's current lineage, root first.
// An unknown conversation ID yields an empty slice.
func (c *Connector) ListMessages(ctx context.Context, conversationID string, tr *source.TimeRange) ([]source.Message, error) {
	if conversationID == "" {
		return nil, nil
	}

	tree, err := c.client.fetchConversation(ctx, conversationID)
	if err != nil {
		var nf *errNotFound
		if errors.As(err, &nf) {
			c.logger.Debug("unknown conversation requested", "conversation", conversationID)
			return nil, nil
		}
		if source.IsAuthExpired(err) {
			return nil, err
		}
		c.logger.Warn("conversation fetch failed, using fallback",
			"conversation", conversationID,
			"error", err,
		)
		tree = c.fallbackTree(conversationID)
	}

	msgs := linearize(tree)
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

// fallbackList tries the snapshot store, then the built-in sample.
func (c *Connector) fallbackList() []wireConversationItem {
	if items, err := c.snapshot.list(); err == nil {
		c.logger.Info("serving conversations from snapshot", "count", len(items))
		return items
	}
	c.logger.Info("serving built-in sample conversation")
	return builtinSampleList()
}

// fallbackTree tries the snapshot store, then the built-in sample.
func (c *Connector) fallbackTree(conversationID string) *wireTree {
	if tree, err := c.snapshot.load(conversationID); err == nil {
		c.logger.Info("serving conversation from snapshot", "conversation", conversationID)
		return tree
	}
	c.logger.Info("serving built-in sample conversation")
	return builtinSample()
}
