package messages

import (
	"strings"
	"testing"
	"time"

	"scrivener/internal/source"
)

func testConnector() *Connector {
	return New("/nonexistent/exporter", nil)
}

func TestParseTranscriptHeaderOnChange(t *testing.T) {
	// Two consecutive content lines under one unchanged header must
	// become two separate messages sharing timestamp and sender.
	transcript := `Aug 20, 2026 1:23:45 PM
Me
Hello there
How are you

Aug 20, 2026 1:24:10 PM
+1 555 123 4567
Good thanks
`
	c := testConnector()
	msgs, err := c.parseTranscript("Alice", strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("parseTranscript() error: %v", err)
	}

	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}

	if msgs[0].Text != "Hello there" || msgs[1].Text != "How are you" {
		t.Errorf("texts = %q, %q", msgs[0].Text, msgs[1].Text)
	}
	if !msgs[0].Timestamp.Equal(msgs[1].Timestamp) {
		t.Error("consecutive lines must share the header timestamp")
	}
	if msgs[0].Sender != msgs[1].Sender {
		t.Error("consecutive lines must share the header sender")
	}
	if msgs[0].Sender != "self" {
		t.Errorf("sender = %q, want self", msgs[0].Sender)
	}
	if msgs[2].Sender != "other" {
		t.Errorf("third sender = %q, want other", msgs[2].Sender)
	}

	want := time.Date(2026, 8, 20, 13, 23, 45, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Timestamp, want)
	}
}

func TestParseTranscriptSkipsAttachmentPaths(t *testing.T) {
	transcript := `Aug 20, 2026 1:23:45 PM
someone@example.com
/Users/me/Library/Messages/Attachments/ab/cd/IMG_0001.jpeg
Look at this photo
`
	c := testConnector()
	msgs, err := c.parseTranscript("conv", strings.NewReader(transcript))
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1 (attachment path skipped)", len(msgs))
	}
	if msgs[0].Text != "Look at this photo" {
		t.Errorf("text = %q", msgs[0].Text)
	}
	if msgs[0].Sender != "other" {
		t.Errorf("sender = %q, want other (email handle)", msgs[0].Sender)
	}
}

func TestParseTranscriptIgnoresHeaderlessContent(t *testing.T) {
	transcript := `orphan line before any header
Aug 20, 2026 1:23:45 PM
Me
real message
`
	c := testConnector()
	msgs, err := c.parseTranscript("conv", strings.NewReader(transcript))
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "real message" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestParseTimestampReadReceipt(t *testing.T) {
	got, ok := parseTimestamp("Aug 20, 2026 1:23:45 PM (Read by them after 1 minute)")
	if !ok {
		t.Fatal("read-receipt annotated timestamp not recognized")
	}
	want := time.Date(2026, 8, 20, 13, 23, 45, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestIsSenderLine(t *testing.T) {
	c := testConnector()
	tests := []struct {
		line     string
		wantRole string
		wantOK   bool
	}{
		{"Me", "self", true},
		{"+15551234567", "other", true},
		{"+1 (555) 123-4567", "other", true},
		{"alice@example.com", "other", true},
		{"hello world", "", false},
		{"me", "", false}, // marker is exact
		{"call me at noon", "", false},
	}

	for _, tc := range tests {
		role, ok := c.isSenderLine(tc.line)
		if ok != tc.wantOK || string(role) != tc.wantRole {
			t.Errorf("isSenderLine(%q) = (%q, %v), want (%q, %v)",
				tc.line, role, ok, tc.wantRole, tc.wantOK)
		}
	}
}

func TestSummarize(t *testing.T) {
	msgs := []source.Message{
		{ID: "c:1", Timestamp: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)},
		{ID: "c:2", Timestamp: time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)},
		{ID: "c:3", Timestamp: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)},
	}

	got := summarize("Alice, Bob", msgs)

	if got.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", got.MessageCount)
	}
	if !got.LastActivity.Equal(msgs[1].Timestamp) {
		t.Errorf("LastActivity = %v, want %v", got.LastActivity, msgs[1].Timestamp)
	}
	if len(got.Participants) != 2 || got.Participants[0] != "Alice" || got.Participants[1] != "Bob" {
		t.Errorf("Participants = %v", got.Participants)
	}
}
