package messages

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"scrivener/internal/source"
)

// Timestamp layouts seen in exported transcripts. The exporter's
// default layout puts a localized date first; ISO-style layouts appear
// in older exports.
var timestampLayouts = []string{
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006  3:04:05 PM",
	"2006-01-02 15:04:05",
}

var (
	// phonePattern matches a bare phone-number-like contact handle:
	// optional +, then digits with common separators.
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()./-]{5,}$`)

	// emailPattern matches a bare email-like contact handle.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// attachmentPattern matches filesystem paths the exporter writes in
	// place of binary attachments.
	attachmentPattern = regexp.MustCompile(`^(/|~/)\S+/\S+$`)
)

// parseTimestamp tries each known layout. Returns the zero time if the
// line is not a timestamp header. Read-receipt annotations appended
// after the timestamp ("(Read by them after ...)") are ignored.
func parseTimestamp(line string) (time.Time, bool) {
	candidate := line
	if i := strings.Index(candidate, " (Read"); i >= 0 {
		candidate = strings.TrimSpace(candidate[:i])
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isSenderLine reports whether the line designates a sender: exactly
// the self marker, or a bare contact handle (phone-number-like or
// email-like).
//
// Classification is purely by line shape, mirroring the export format:
// a message whose own content happens to look like a handle will be
// taken as a header line. That ambiguity is inherent to the layout.
func (c *Connector) isSenderLine(line string) (source.Role, bool) {
	if line == c.selfMarker {
		return source.RoleSelf, true
	}
	if phonePattern.MatchString(line) || emailPattern.MatchString(line) {
		return source.RoleOther, true
	}
	return "", false
}

// parseTranscript runs the line state machine over one exported
// conversation. A timestamp line sets the current timestamp; a sender
// line sets the current sender; once both are known, every subsequent
// non-empty, non-attachment line is emitted as one Message bound to
// that (timestamp, sender) pair. Repeated content lines under one
// unchanged header become separate Messages sharing the header; the
// export format only rewrites the header on change.
func (c *Connector) parseTranscript(conversationID string, r io.Reader) ([]source.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		msgs      []source.Message
		curTime   time.Time
		curSender source.Role
		haveTime  bool
		haveRole  bool
		seq       int
	)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if t, ok := parseTimestamp(trimmed); ok {
			curTime = t
			haveTime = true
			continue
		}

		if role, ok := c.isSenderLine(trimmed); ok {
			curSender = role
			haveRole = true
			continue
		}

		if !haveTime || !haveRole {
			// Content before the first complete header has no home.
			continue
		}

		if attachmentPattern.MatchString(trimmed) {
			continue
		}

		seq++
		msgs = append(msgs, source.Message{
			ID:        fmt.Sprintf("%s:%d", conversationID, seq),
			Text:      trimmed,
			Sender:    curSender,
			Timestamp: curTime,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript %s: %w", conversationID, err)
	}
	return msgs, nil
}
