// Package mailbox normalizes an IMAP mailbox into the shared
// conversation/message model. Conversations are correspondents: all
// mail exchanged with one address forms one conversation. The mailbox
// is never mutated: every fetch peeks.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"scrivener/internal/source"
)

// maxBodySize caps the text body included per message. Larger bodies
// are truncated with a note.
const maxBodySize = 16 * 1024

// maxRawMessageSize caps the raw RFC822 literal buffered per message.
// The remainder is drained to keep the IMAP stream in sync.
const maxRawMessageSize = 2 * 1024 * 1024

// envelope is the subset of message data a listing fetch produces.
type envelope struct {
	uid     imap.UID
	date    time.Time
	subject string
	from    string
	to      []string
	body    string
}

// dial connects, authenticates, and selects the configured folder
// read-only. The caller must Close the returned client on every path.
func (c *Connector) dial(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))

	var opts imapclient.Options
	if c.cfg.TLS {
		opts.TLSConfig = &tls.Config{ServerName: c.cfg.Host}
	}

	c.logger.Debug("connecting to IMAP server", "host", c.cfg.Host, "port", c.cfg.Port, "tls", c.cfg.TLS)

	var client *imapclient.Client
	var err error
	if c.cfg.TLS {
		client, err = imapclient.DialTLS(addr, &opts)
	} else {
		client, err = imapclient.DialInsecure(addr, &opts)
	}
	if err != nil {
		return nil, &source.UnavailableError{Source: sourceName, Err: fmt.Errorf("dial IMAP %s: %w", addr, err)}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &source.AuthExpiredError{Source: sourceName}
	}

	folder := c.cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = client.Close()
		return nil, &source.UnavailableError{Source: sourceName, Err: fmt.Errorf("select %s: %w", folder, err)}
	}

	return client, nil
}

// searchRange finds UIDs of messages within the time range. IMAP's
// BEFORE is exclusive and date-granular, so the end bound is pushed
// one day forward to keep our inclusive-contract.
func searchRange(client *imapclient.Client, tr *source.TimeRange) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{}
	if tr != nil {
		if !tr.Start.IsZero() {
			criteria.Since = tr.Start
		}
		if !tr.End.IsZero() {
			criteria.Before = tr.End.AddDate(0, 0, 1)
		}
	}

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return data.AllUIDs(), nil
}

// fetchEnvelopes fetches envelope data, and optionally full bodies,
// for the given UIDs.
func (c *Connector) fetchEnvelopes(client *imapclient.Client, uids []imap.UID, withBody bool) ([]envelope, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSet{}
	for _, uid := range uids {
		uidSet.AddNum(uid)
	}

	fetchOpts := &imap.FetchOptions{
		UID:      true,
		Envelope: true,
	}
	if withBody {
		fetchOpts.BodySection = []*imap.FetchItemBodySection{{Peek: true}}
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)

	var envelopes []envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		env, err := c.parseFetchItem(msg)
		if err != nil {
			c.logger.Debug("skipping message", "error", err)
			continue
		}
		envelopes = append(envelopes, env)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}
	return envelopes, nil
}

// parseFetchItem extracts an envelope from IMAP fetch response items.
// Body literals are consumed immediately: go-imap/v2 streams from the
// connection and advancing past an unread literal loses it.
func (c *Connector) parseFetchItem(msg *imapclient.FetchMessageData) (envelope, error) {
	var env envelope
	var rawBody []byte

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch data := item.(type) {
		case imapclient.FetchItemDataUID:
			env.uid = data.UID
		case imapclient.FetchItemDataEnvelope:
			if data.Envelope != nil {
				env.date = data.Envelope.Date
				env.subject = data.Envelope.Subject
				if len(data.Envelope.From) > 0 {
					env.from = data.Envelope.From[0].Addr()
				}
				for _, addr := range data.Envelope.To {
					env.to = append(env.to, addr.Addr())
				}
			}
		case imapclient.FetchItemDataBodySection:
			if data.Literal == nil {
				continue
			}
			body, readErr := io.ReadAll(io.LimitReader(data.Literal, maxRawMessageSize))
			_, _ = io.Copy(io.Discard, data.Literal)
			if readErr != nil {
				c.logger.Debug("error reading body literal", "error", readErr)
				continue
			}
			rawBody = body
		}
	}

	if env.uid == 0 {
		return env, fmt.Errorf("message missing UID")
	}

	if rawBody != nil {
		env.body = extractPlainText(rawBody)
	}
	return env, nil
}

// extractPlainText walks the MIME structure and returns the first
// text/plain part, truncated at maxBodySize. Parse problems yield an
// empty body, not a failure, since the envelope is still useful.
func extractPlainText(raw []byte) string {
	mr, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil || mr == nil {
		return ""
	}

	for {
		p, err := mr.NextPart()
		if err != nil {
			return ""
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "text/plain" {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(p.Body, maxBodySize+1))
		if err != nil {
			return ""
		}
		text := strings.TrimSpace(string(body))
		if len(text) > maxBodySize {
			text = text[:maxBodySize] + "\n\n[... truncated ...]"
		}
		return text
	}
}
