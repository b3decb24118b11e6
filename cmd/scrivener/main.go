// Scrivener is a personal-context planning agent.
//
// It lets a model explore the user's recent conversations (exported
// message transcripts, a hosted AI-dialogue service, and optionally an
// IMAP mailbox) through tools, then persists the enhanced planning
// prompt the model produces. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	scrivener plan [task...]   Run the planning loop and persist results
//	scrivener latest           Print the most recent enhanced prompt
//	scrivener history [n]      Show recent runs from the history database
//	scrivener version          Print version and build information
//	scrivener -o json latest   Output as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"scrivener/internal/artifact"
	"scrivener/internal/buildinfo"
	"scrivener/internal/config"
	"scrivener/internal/dialogue"
	"scrivener/internal/llm"
	"scrivener/internal/mailbox"
	"scrivener/internal/messages"
	"scrivener/internal/planner"
	"scrivener/internal/tools"
)

// defaultTask is used when plan is invoked without a task statement.
const defaultTask = "Help me plan my upcoming week."

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// lifecycle can be driven from tests.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to
// call run() concurrently from tests, and the argument surface here is
// small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "plan":
		task := defaultTask
		if len(cmdArgs) > 0 {
			task = strings.Join(cmdArgs, " ")
		}
		return runPlan(ctx, stdout, configPath, task)
	case "latest":
		return runLatest(stdout, configPath, outputFmt)
	case "history":
		limit := 10
		if len(cmdArgs) > 0 {
			n, err := strconv.Atoi(cmdArgs[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("usage: scrivener history [n]")
			}
			limit = n
		}
		return runHistory(stdout, configPath, outputFmt, limit)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runPlan executes one planning run and persists its artifacts.
func runPlan(ctx context.Context, stdout io.Writer, configPath, task string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level)
	logger.Info("starting", "build", buildinfo.String(), "config", cfgPath)

	if cfg.Anthropic.APIKey == "" {
		return fmt.Errorf("anthropic.api_key is not configured")
	}
	client := llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, logger)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return err
	}

	p := planner.New(client, registry, logger,
		planner.WithMaxIterations(cfg.Planner.MaxIterations),
		planner.WithLookbackDays(cfg.Planner.LookbackDays),
	)

	res, err := p.Run(ctx, task)
	if err != nil {
		return fmt.Errorf("planning run failed: %w", err)
	}

	store, err := artifact.NewStore(cfg.Artifacts.Dir, logger)
	if err != nil {
		return err
	}
	rec, err := store.Save(res)
	if err != nil {
		return fmt.Errorf("persist artifacts: %w", err)
	}

	history, err := artifact.OpenHistory(historyPath(cfg))
	if err != nil {
		logger.Warn("history database unavailable", "error", err)
	} else {
		defer history.Close()
		if err := history.Record(rec); err != nil {
			logger.Warn("history record failed", "error", err)
		}
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, res.EnhancedPrompt)
	return nil
}

// buildRegistry wires each configured data source into the tool
// registry. At least one source must be configured.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	sources := 0

	if cfg.Messages.ExporterPath != "" {
		conn := messages.New(cfg.Messages.ExporterPath, logger,
			messages.WithSelfMarker(cfg.Messages.SelfMarker),
			messages.WithTimeout(cfg.Messages.ExportTimeout()),
		)
		tools.RegisterSourceTools(registry, "messages", conn)
		sources++
	}

	if cfg.Dialogue.BaseURL != "" {
		session := dialogue.NewFileSession(cfg.Dialogue.SessionFile)
		var opts []dialogue.Option
		if cfg.Dialogue.SnapshotDir != "" {
			opts = append(opts, dialogue.WithSnapshotDir(cfg.Dialogue.SnapshotDir))
		}
		conn := dialogue.New(cfg.Dialogue.BaseURL, session, cfg.Dialogue.FetchTimeout(), logger, opts...)
		tools.RegisterSourceTools(registry, "dialogue", conn)
		sources++
	}

	if cfg.Mailbox.Enabled {
		selfAddress := cfg.Mailbox.SelfAddress
		if selfAddress == "" {
			selfAddress = cfg.Mailbox.Username
		}
		conn := mailbox.New(mailbox.Config{
			Host:        cfg.Mailbox.Host,
			Port:        cfg.Mailbox.Port,
			TLS:         cfg.Mailbox.TLS,
			Username:    cfg.Mailbox.Username,
			Password:    cfg.Mailbox.Password,
			Folder:      cfg.Mailbox.Folder,
			SelfAddress: selfAddress,
			Timeout:     time.Duration(cfg.Mailbox.TimeoutSec) * time.Second,
		}, logger)
		tools.RegisterSourceTools(registry, "mail", conn)
		sources++
	}

	if sources == 0 {
		return nil, fmt.Errorf("no data sources configured (set messages.exporter_path, dialogue.base_url, or mailbox.enabled)")
	}
	return registry, nil
}

// runLatest prints the most recent persisted prompt.
func runLatest(stdout io.Writer, configPath, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := artifact.NewStore(cfg.Artifacts.Dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}

	latest, err := store.LoadLatest()
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"record": latest.Record,
			"prompt": latest.Prompt,
		})
	}
	fmt.Fprint(stdout, latest.Prompt)
	return nil
}

// runHistory lists recent runs from the history database.
func runHistory(stdout io.Writer, configPath, outputFmt string, limit int) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	history, err := artifact.OpenHistory(historyPath(cfg))
	if err != nil {
		return err
	}
	defer history.Close()

	recs, err := history.Recent(limit)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(stdout, "no runs recorded")
		return nil
	}
	for _, rec := range recs {
		fmt.Fprintf(stdout, "%s  %s  rounds=%d tools=%d tokens=%d/%d\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			rec.ID[:8],
			rec.Rounds, rec.ToolCalls,
			rec.InputTokens, rec.OutputTokens,
		)
	}
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Scrivener - Personal-Context Planning Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: scrivener [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  plan [task]  Run the planning loop and persist its results")
	fmt.Fprintln(w, "  latest       Print the most recent enhanced prompt")
	fmt.Fprintln(w, "  history [n]  Show recent runs (default: 10)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/scrivener/config.yaml, /etc/scrivener/config.yaml")
	return nil
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// historyPath resolves the run-history database location.
func historyPath(cfg *config.Config) string {
	if cfg.Artifacts.HistoryDB != "" {
		return cfg.Artifacts.HistoryDB
	}
	return filepath.Join(cfg.Artifacts.Dir, "runs.db")
}
