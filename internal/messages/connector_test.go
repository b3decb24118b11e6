package messages

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"scrivener/internal/source"
)

// fakeExporter writes a shell script that emits one fixed conversation
// into the directory passed after -o, standing in for the real export
// tool.
func fakeExporter(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}

	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
cat > "$out/Alice.txt" <<'EOF'
Aug 20, 2026 1:23:45 PM
Me
hi alice

Aug 21, 2026 9:00:00 AM
+15551234567
hi back
EOF
`
	path := filepath.Join(t.TempDir(), "exporter")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestListConversations(t *testing.T) {
	c := New(fakeExporter(t), nil, WithTimeout(10*time.Second))

	got, err := c.ListConversations(context.Background(), source.TimeRange{Start: day(1), End: day(31)})
	if err != nil {
		t.Fatalf("ListConversations() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("conversations = %d, want 1", len(got))
	}
	if got[0].ID != "Alice" || got[0].MessageCount != 2 {
		t.Errorf("summary = %+v", got[0])
	}
	wantLast := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)
	if !got[0].LastActivity.Equal(wantLast) {
		t.Errorf("LastActivity = %v, want %v", got[0].LastActivity, wantLast)
	}
}

func TestListConversationsEmptyRange(t *testing.T) {
	// Inverted range: empty result without even invoking the tool.
	c := New("/definitely/not/here", nil)

	got, err := c.ListConversations(context.Background(), source.TimeRange{Start: day(20), End: day(10)})
	if err != nil {
		t.Fatalf("empty range must not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("conversations = %d, want 0", len(got))
	}
}

func TestListConversationsOutsideRange(t *testing.T) {
	c := New(fakeExporter(t), nil)

	got, err := c.ListConversations(context.Background(), source.TimeRange{Start: day(25), End: day(31)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("conversations = %d, want 0 (last activity outside range)", len(got))
	}
}

func TestListMessages(t *testing.T) {
	c := New(fakeExporter(t), nil)

	got, err := c.ListMessages(context.Background(), "Alice", nil)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("messages = %d, want 2", len(got))
	}
	if got[0].Text != "hi alice" || got[1].Text != "hi back" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Timestamp.After(got[1].Timestamp) {
		t.Error("messages must be oldest first")
	}
}

func TestListMessagesUnknownConversation(t *testing.T) {
	c := New(fakeExporter(t), nil)

	got, err := c.ListMessages(context.Background(), "nobody", nil)
	if err != nil {
		t.Fatalf("unknown conversation must not error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("messages = %d, want 0", len(got))
	}
}

func TestListMessagesRangeFilter(t *testing.T) {
	c := New(fakeExporter(t), nil)

	tr := &source.TimeRange{Start: day(21), End: day(22)}
	got, err := c.ListMessages(context.Background(), "Alice", tr)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "hi back" {
		t.Errorf("messages = %+v, want just the Aug 21 one", got)
	}
}

func TestMissingExportTool(t *testing.T) {
	c := New("/definitely/not/here", nil, WithTimeout(5*time.Second))

	_, err := c.ListConversations(context.Background(), source.TimeRange{Start: day(1), End: day(31)})
	if err == nil {
		t.Fatal("expected error for missing export tool")
	}
	if !source.IsUnavailable(err) {
		t.Errorf("error = %v, want UnavailableError", err)
	}
}
