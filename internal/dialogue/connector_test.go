package dialogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrivener/internal/source"
)

// staticSession is a SessionProvider with fixed headers for tests.
type staticSession struct{ headers map[string]string }

func (s *staticSession) AuthHeaders() (map[string]string, error) {
	if s.headers == nil {
		return nil, os.ErrNotExist
	}
	return s.headers, nil
}

func (s *staticSession) Fresh() bool { return s.headers != nil }

func testSession() SessionProvider {
	return &staticSession{headers: map[string]string{"Authorization": "Bearer tok"}}
}

func serviceStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(wireConversationList{
			Items: []wireConversationItem{
				{ID: "c1", Title: "Trip notes", UpdateTime: 1755648120},
			},
			Total: 1,
		})
	})
	mux.HandleFunc("/conversation/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/conversation/"):]
		if id != "c1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(wireTree{
			ID:          "c1",
			Title:       "Trip notes",
			CurrentNode: "n2",
			Mapping: map[string]wireNode{
				"n1": {ID: "n1", Message: &wireMessage{
					Author: wireAuthor{Role: "user"}, CreateTime: 1755648000, Text: "hello",
				}},
				"n2": {ID: "n2", Parent: "n1", Message: &wireMessage{
					Author: wireAuthor{Role: "assistant"}, CreateTime: 1755648060, Text: "hi there",
				}},
			},
		})
	})
	return httptest.NewServer(mux)
}

func TestListConversationsFromService(t *testing.T) {
	srv := serviceStub(t)
	defer srv.Close()

	c := New(srv.URL, testSession(), 5*time.Second, nil)
	tr := source.TimeRange{
		Start: time.Unix(1755000000, 0),
		End:   time.Unix(1756000000, 0),
	}

	got, err := c.ListConversations(context.Background(), tr)
	if err != nil {
		t.Fatalf("ListConversations() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" || got[0].Title != "Trip notes" {
		t.Errorf("summaries = %+v", got)
	}
}

func TestListMessagesFromService(t *testing.T) {
	srv := serviceStub(t)
	defer srv.Close()

	c := New(srv.URL, testSession(), 5*time.Second, nil)

	got, err := c.ListMessages(context.Background(), "c1", nil)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("messages = %d, want 2", len(got))
	}
	if got[0].Text != "hello" || got[1].Text != "hi there" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Sender != source.RoleHuman || got[1].Sender != source.RoleAssistant {
		t.Errorf("roles = %q, %q", got[0].Sender, got[1].Sender)
	}
}

func TestUnknownConversationIsEmpty(t *testing.T) {
	srv := serviceStub(t)
	defer srv.Close()

	c := New(srv.URL, testSession(), 5*time.Second, nil)

	got, err := c.ListMessages(context.Background(), "hallucinated-id", nil)
	if err != nil {
		t.Fatalf("unknown id must not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("messages = %d, want 0", len(got))
	}
}

func TestAuthExpiredSurfaces(t *testing.T) {
	srv := serviceStub(t)
	defer srv.Close()

	c := New(srv.URL, &staticSession{headers: map[string]string{"Authorization": "Bearer stale"}}, 5*time.Second, nil)

	_, err := c.ListConversations(context.Background(), source.TimeRange{End: time.Now()})
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !source.IsAuthExpired(err) {
		t.Errorf("error = %v, want AuthExpiredError", err)
	}
}

func TestFetchFailureFallsBackToSnapshot(t *testing.T) {
	dir := t.TempDir()
	tree := wireTree{
		ID:          "snap1",
		Title:       "Snapshotted chat",
		CurrentNode: "n1",
		Mapping: map[string]wireNode{
			"n1": {ID: "n1", Message: &wireMessage{
				Author: wireAuthor{Role: "user"}, CreateTime: 1755648000, Text: "from snapshot",
			}},
		},
	}
	data, _ := json.Marshal(tree)
	if err := os.WriteFile(filepath.Join(dir, "snap1.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	// Unreachable service: connection refused on a closed port.
	c := New("http://127.0.0.1:1", testSession(), 2*time.Second, nil, WithSnapshotDir(dir))

	msgs, err := c.ListMessages(context.Background(), "snap1", nil)
	if err != nil {
		t.Fatalf("fallback path must not error, got %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "from snapshot" {
		t.Errorf("messages = %+v", msgs)
	}

	convs, err := c.ListConversations(context.Background(), source.TimeRange{End: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "snap1" {
		t.Errorf("conversations = %+v", convs)
	}
}

func TestFetchFailureFallsBackToSample(t *testing.T) {
	c := New("http://127.0.0.1:1", testSession(), 2*time.Second, nil)

	msgs, err := c.ListMessages(context.Background(), "whatever", nil)
	if err != nil {
		t.Fatalf("fallback path must not error, got %v", err)
	}
	if len(msgs) == 0 {
		t.Fatal("built-in sample must provide messages")
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			t.Error("sample timestamps must be non-decreasing")
		}
	}
}

func TestFileSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	s := NewFileSession(path)
	if _, err := s.AuthHeaders(); err == nil {
		t.Error("missing session file must error")
	}
	if s.Fresh() {
		t.Error("missing session must not be fresh")
	}

	data := `{"headers":{"Authorization":"Bearer abc"},"expires_at":"2099-01-01T00:00:00Z"}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	headers, err := s.AuthHeaders()
	if err != nil {
		t.Fatalf("AuthHeaders() error: %v", err)
	}
	if headers["Authorization"] != "Bearer abc" {
		t.Errorf("headers = %v", headers)
	}
	if !s.Fresh() {
		t.Error("unexpired session must be fresh")
	}
}
