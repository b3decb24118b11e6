package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"scrivener/internal/httpkit"
	"scrivener/internal/source"
)

// errNotFound marks a conversation the service does not know. It stays
// internal: the connector converts it to an empty result.
type errNotFound struct{ id string }

func (e *errNotFound) Error() string {
	return fmt.Sprintf("conversation %s not found", e.id)
}

// client talks to the dialogue service API. Every request carries the
// session headers and a deadline; a 401/403 is converted to an
// AuthExpiredError immediately.
type client struct {
	baseURL    string
	session    SessionProvider
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func newClient(baseURL string, session SessionProvider, timeout time.Duration, logger *slog.Logger) *client {
	return &client{
		baseURL:    baseURL,
		session:    session,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(timeout)),
		timeout:    timeout,
		logger:     logger,
	}
}

// fetchConversations lists conversation metadata, newest activity
// included, via the paginated listing endpoint.
func (c *client) fetchConversations(ctx context.Context) ([]wireConversationItem, error) {
	var items []wireConversationItem
	offset := 0
	const pageSize = 50

	for {
		endpoint := fmt.Sprintf("%s/conversations?offset=%d&limit=%d", c.baseURL, offset, pageSize)
		var page wireConversationList
		if err := c.getJSON(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		offset += len(page.Items)
		if len(page.Items) < pageSize || offset >= page.Total {
			break
		}
	}
	return items, nil
}

// fetchConversation retrieves one conversation's full message tree.
func (c *client) fetchConversation(ctx context.Context, id string) (*wireTree, error) {
	endpoint := fmt.Sprintf("%s/conversation/%s", c.baseURL, url.PathEscape(id))
	var tree wireTree
	if err := c.getJSON(ctx, endpoint, &tree); err != nil {
		return nil, err
	}
	if tree.ID == "" {
		tree.ID = id
	}
	return &tree, nil
}

func (c *client) getJSON(ctx context.Context, endpoint string, out any) error {
	headers, err := c.session.AuthHeaders()
	if err != nil {
		return &source.AuthExpiredError{Source: sourceName}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		httpkit.DrainAndClose(resp.Body, 1024)
		return &source.AuthExpiredError{Source: sourceName}
	case resp.StatusCode == http.StatusNotFound:
		httpkit.DrainAndClose(resp.Body, 1024)
		return &errNotFound{id: endpoint}
	case resp.StatusCode != http.StatusOK:
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		return fmt.Errorf("dialogue service %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
