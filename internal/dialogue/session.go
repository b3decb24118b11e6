package dialogue

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SessionProvider supplies credential material for the dialogue
// service. Credential capture is an external step; the connector only
// consumes headers and never parses or stores credentials itself.
type SessionProvider interface {
	// AuthHeaders returns the headers to attach to each request. It
	// fails when no session has been captured.
	AuthHeaders() (map[string]string, error)

	// Fresh reports whether the captured session is still believed
	// valid. A stale session is still sent; the service's 401/403 is
	// the authority.
	Fresh() bool
}

// FileSession reads captured session material from a JSON file written
// by the external capture step.
type FileSession struct {
	path string
}

// NewFileSession creates a provider backed by the given file.
func NewFileSession(path string) *FileSession {
	return &FileSession{path: path}
}

type sessionFile struct {
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// AuthHeaders loads the session file and returns its headers.
func (s *FileSession) AuthHeaders() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("no captured session at %s: %w", s.path, err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("malformed session file %s: %w", s.path, err)
	}
	if len(sf.Headers) == 0 {
		return nil, fmt.Errorf("session file %s has no headers", s.path)
	}
	return sf.Headers, nil
}

// Fresh reports whether the session file exists and has not passed its
// recorded expiry. A file without an expiry is treated as fresh.
func (s *FileSession) Fresh() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return false
	}
	if sf.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(sf.ExpiresAt)
}
