package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"scrivener/internal/source"
)

// sourceName identifies this connector in error values and logs.
const sourceName = "mailbox"

// Config holds the IMAP account settings.
type Config struct {
	Host        string
	Port        int
	TLS         bool
	Username    string
	Password    string
	Folder      string
	SelfAddress string
	Timeout     time.Duration
}

// Connector lists conversations and messages from an IMAP mailbox. A
// conversation is a correspondent: its ID is their address, and its
// messages are all mail exchanged with them in the selected folder.
type Connector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a mailbox Connector.
func New(cfg Config, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Connector{cfg: cfg, logger: logger.With("source", sourceName)}
}

// ListConversations groups messages in the range by correspondent and
// returns one summary per correspondent.
func (c *Connector) ListConversations(ctx context.Context, tr source.TimeRange) ([]source.ConversationSummary, error) {
	if tr.IsEmpty() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	uids, err := searchRange(client, &tr)
	if err != nil {
		return nil, &source.UnavailableError{Source: sourceName, Err: err}
	}

	envelopes, err := c.fetchEnvelopes(client, uids, false)
	if err != nil {
		return nil, &source.UnavailableError{Source: sourceName, Err: err}
	}

	summaries := groupByCorrespondent(envelopes, c.cfg.SelfAddress)
	c.logger.Debug("listed conversations", "messages", len(envelopes), "correspondents", len(summaries))
	return summaries, nil
}

// ListMessages returns messages exchanged with the given correspondent,
// oldest first. An unknown correspondent simply matches nothing.
func (c *Connector) ListMessages(ctx context.Context, conversationID string, tr *source.TimeRange) ([]source.Message, error) {
	if conversationID == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	data, err := client.UIDSearch(correspondentCriteria(conversationID, tr), nil).Wait()
	if err != nil {
		return nil, &source.UnavailableError{Source: sourceName, Err: fmt.Errorf("search: %w", err)}
	}
	uids := data.AllUIDs()

	envelopes, err := c.fetchEnvelopes(client, uids, true)
	if err != nil {
		return nil, &source.UnavailableError{Source: sourceName, Err: err}
	}

	msgs := make([]source.Message, 0, len(envelopes))
	for _, env := range envelopes {
		msgs = append(msgs, toMessage(env, c.cfg.SelfAddress))
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })

	c.logger.Debug("listed messages", "correspondent", conversationID, "count", len(msgs))
	return msgs, nil
}

// correspondentCriteria matches mail sent to or received from one
// address, restricted to the optional time range.
func correspondentCriteria(addr string, tr *source.TimeRange) *imap.SearchCriteria {
	base := imap.SearchCriteria{}
	if tr != nil {
		if !tr.Start.IsZero() {
			base.Since = tr.Start
		}
		if !tr.End.IsZero() {
			base.Before = tr.End.AddDate(0, 0, 1)
		}
	}

	from := base
	from.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: addr}}
	to := base
	to.Header = []imap.SearchCriteriaHeaderField{{Key: "To", Value: addr}}

	return &imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{from, to}}}
}

// groupByCorrespondent folds envelopes into one summary per address on
// the other end. Messages whose counterpart cannot be determined are
// skipped.
func groupByCorrespondent(envelopes []envelope, selfAddress string) []source.ConversationSummary {
	byAddr := make(map[string]*source.ConversationSummary)

	for _, env := range envelopes {
		addr := correspondentOf(env, selfAddress)
		if addr == "" {
			continue
		}

		s, ok := byAddr[addr]
		if !ok {
			s = &source.ConversationSummary{
				ID:           addr,
				Participants: []string{selfAddress, addr},
				Title:        addr,
			}
			byAddr[addr] = s
		}
		s.MessageCount++
		if env.date.After(s.LastActivity) {
			s.LastActivity = env.date
		}
	}

	summaries := make([]source.ConversationSummary, 0, len(byAddr))
	for _, s := range byAddr {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	return summaries
}

// correspondentOf picks the address on the other end of a message:
// the sender for incoming mail, the first non-self recipient for
// outgoing mail.
func correspondentOf(env envelope, selfAddress string) string {
	if env.from != "" && !strings.EqualFold(env.from, selfAddress) {
		return strings.ToLower(env.from)
	}
	for _, to := range env.to {
		if !strings.EqualFold(to, selfAddress) {
			return strings.ToLower(to)
		}
	}
	return ""
}

// toMessage converts an envelope into the shared message model. The
// subject and body are joined so both survive into transcripts.
func toMessage(env envelope, selfAddress string) source.Message {
	sender := source.RoleOther
	if strings.EqualFold(env.from, selfAddress) {
		sender = source.RoleSelf
	}

	text := env.body
	if env.subject != "" {
		if text == "" {
			text = env.subject
		} else {
			text = env.subject + "\n\n" + text
		}
	}

	return source.Message{
		ID:        fmt.Sprintf("uid:%d", env.uid),
		Text:      text,
		Sender:    sender,
		Timestamp: env.date.UTC(),
	}
}
