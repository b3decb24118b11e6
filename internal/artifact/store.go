// Package artifact persists the products of a planning run: the
// enhanced prompt, the raw model result, the full transcript, and run
// metadata. Timestamped files accumulate as history while latest
// pointers always name the most recent successful run.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"scrivener/internal/planner"
)

// Latest-pointer filenames inside the artifact directory.
const (
	latestPromptFile = "latest_prompt.txt"
	latestRunFile    = "latest_run.json"
)

// stampLayout names timestamped artifact files sortably.
const stampLayout = "20060102-150405"

// MissingError is returned when a latest artifact is requested but has
// never been written, or its files have gone missing.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("no persisted artifact at %s (no successful run yet?)", e.Path)
}

// IsMissing reports whether err is a MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

// RunRecord is the metadata envelope stored as latest_run.json.
type RunRecord struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Rounds         int       `json:"rounds"`
	ToolCalls      int       `json:"tool_calls"`
	LookbackDays   int       `json:"lookback_days"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	Delimited      bool      `json:"delimited"`
	PromptFile     string    `json:"prompt_file"`
	RawFile        string    `json:"raw_file"`
	TranscriptFile string    `json:"transcript_file"`
}

// Latest is a loaded latest-run artifact set.
type Latest struct {
	Record RunRecord
	Prompt string
}

// Store writes and reads run artifacts under one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save persists one successful run. Timestamped files are written
// first; the latest pointers are only updated after every file they
// reference exists, so readers of the pointers never see a partial
// run.
func (s *Store) Save(res *planner.Result) (*RunRecord, error) {
	stamp := res.FinishedAt.UTC().Format(stampLayout)
	rec := RunRecord{
		ID:             uuid.NewString(),
		StartedAt:      res.StartedAt.UTC(),
		FinishedAt:     res.FinishedAt.UTC(),
		Rounds:         res.Rounds,
		ToolCalls:      res.ToolCalls,
		LookbackDays:   res.LookbackDays,
		InputTokens:    res.InputTokens,
		OutputTokens:   res.OutputTokens,
		Delimited:      res.Delimited,
		PromptFile:     fmt.Sprintf("prompt-%s.txt", stamp),
		RawFile:        fmt.Sprintf("raw-%s.txt", stamp),
		TranscriptFile: fmt.Sprintf("transcript-%s.json", stamp),
	}

	transcriptJSON, err := json.MarshalIndent(res.Transcript, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{rec.PromptFile, []byte(res.EnhancedPrompt + "\n")},
		{rec.RawFile, []byte(res.RawResult + "\n")},
		{rec.TranscriptFile, transcriptJSON},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(s.dir, f.name), f.data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	recordJSON, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode run record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, latestRunFile), recordJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", latestRunFile, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, latestPromptFile), []byte(res.EnhancedPrompt+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", latestPromptFile, err)
	}

	s.logger.Info("run artifacts saved",
		"run", rec.ID,
		"dir", s.dir,
		"rounds", rec.Rounds,
		"tool_calls", rec.ToolCalls,
	)
	return &rec, nil
}

// LoadLatest reads the most recent run via the latest pointers.
func (s *Store) LoadLatest() (*Latest, error) {
	recordPath := filepath.Join(s.dir, latestRunFile)
	data, err := os.ReadFile(recordPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingError{Path: recordPath}
		}
		return nil, fmt.Errorf("read %s: %w", latestRunFile, err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", latestRunFile, err)
	}

	// Every file the record references must still exist. Serving a
	// latest whose artifacts are gone would hand the consumer context
	// that can no longer be inspected.
	for _, name := range []string{rec.PromptFile, rec.RawFile, rec.TranscriptFile} {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &MissingError{Path: path}
			}
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}

	promptPath := filepath.Join(s.dir, latestPromptFile)
	prompt, err := os.ReadFile(promptPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingError{Path: promptPath}
		}
		return nil, fmt.Errorf("read %s: %w", latestPromptFile, err)
	}

	return &Latest{Record: rec, Prompt: string(prompt)}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}
