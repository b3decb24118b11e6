// Package messages normalizes line-oriented exported message
// transcripts into the shared conversation/message model. The export
// itself is performed by an external executable invoked once per call;
// this package owns only the invocation discipline and the parsing of
// the exported text layout.
package messages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"scrivener/internal/source"
)

// exportDateLayout is the calendar-date format the export tool accepts
// for its start/end bounds.
const exportDateLayout = "2006-01-02"

// runExport invokes the export tool with a target directory and
// optional date bounds, returning the directory contents for parsing.
// The caller owns dir; runExport never creates or removes it.
func (c *Connector) runExport(ctx context.Context, dir string, tr *source.TimeRange) error {
	args := []string{"-f", "txt", "-o", dir}
	if tr != nil {
		if !tr.Start.IsZero() {
			args = append(args, "-s", tr.Start.Format(exportDateLayout))
		}
		if !tr.End.IsZero() {
			args = append(args, "-e", tr.End.Format(exportDateLayout))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.exporterPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.logger.Debug("running export tool",
		"command", c.exporterPath,
		"args", args,
	)

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &source.UnavailableError{
				Source: sourceName,
				Err:    fmt.Errorf("export timed out after %s", c.timeout),
			}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return &source.UnavailableError{
				Source: sourceName,
				Err:    fmt.Errorf("export tool %s: %w", c.exporterPath, err),
			}
		}
		return &source.UnavailableError{
			Source: sourceName,
			Err:    fmt.Errorf("export tool failed: %w (stderr: %s)", err, stderr.String()),
		}
	}

	c.logger.Debug("export complete", "elapsed", time.Since(start).Truncate(time.Millisecond))
	return nil
}
