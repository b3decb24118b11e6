// Package config handles Scrivener configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/scrivener/config.yaml, /etc/scrivener/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scrivener", "config.yaml"))
	}

	paths = append(paths, "/etc/scrivener/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Scrivener configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Planner   PlannerConfig   `yaml:"planner"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Messages  MessagesConfig  `yaml:"messages"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	Mailbox   MailboxConfig   `yaml:"mailbox"`
	LogLevel  string          `yaml:"log_level"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PlannerConfig bounds the planning run.
type PlannerConfig struct {
	// MaxIterations caps the number of full model/tool rounds before
	// the run fails with a budget error.
	MaxIterations int `yaml:"max_iterations"`
	// LookbackDays is the window of personal history the agent is told
	// to consider, counted back from today.
	LookbackDays int `yaml:"lookback_days"`
}

// ArtifactsConfig defines where run outputs are persisted.
type ArtifactsConfig struct {
	// Dir holds the enhanced prompt, raw results, transcripts, and
	// run metadata. Created on first run if missing.
	Dir string `yaml:"dir"`
	// HistoryDB is the path of the SQLite run-history database.
	// Defaults to <dir>/runs.db.
	HistoryDB string `yaml:"history_db"`
}

// MessagesConfig defines the exported-transcript message source.
type MessagesConfig struct {
	// ExporterPath is the external export executable. If empty the
	// source is not registered.
	ExporterPath string `yaml:"exporter_path"`
	// SelfMarker is the line the export format uses for the account
	// owner's own messages.
	SelfMarker string `yaml:"self_marker"`
	// TimeoutSec bounds one export invocation (default 120).
	TimeoutSec int `yaml:"timeout_sec"`
}

// DialogueConfig defines the hosted AI-dialogue source.
type DialogueConfig struct {
	// BaseURL of the dialogue service API. If empty the source is not
	// registered.
	BaseURL string `yaml:"base_url"`
	// SessionFile holds captured auth material (written by an external
	// capture step; never parsed beyond header extraction).
	SessionFile string `yaml:"session_file"`
	// SnapshotDir holds previously exported conversations used as a
	// fallback when the service is unreachable.
	SnapshotDir string `yaml:"snapshot_dir"`
	// TimeoutSec bounds one fetch (default 30).
	TimeoutSec int `yaml:"timeout_sec"`
}

// MailboxConfig defines the optional IMAP mail source.
type MailboxConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Folder   string `yaml:"folder"`
	// SelfAddress identifies the account owner when grouping mail into
	// conversations. Defaults to Username.
	SelfAddress string `yaml:"self_address"`
	TimeoutSec  int    `yaml:"timeout_sec"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Planner: PlannerConfig{
			MaxIterations: 10,
			LookbackDays:  7,
		},
		Artifacts: ArtifactsConfig{
			Dir: "artifacts",
		},
		Messages: MessagesConfig{
			SelfMarker: "Me",
			TimeoutSec: 120,
		},
		Dialogue: DialogueConfig{
			TimeoutSec: 30,
		},
		Mailbox: MailboxConfig{
			Port:   993,
			TLS:    true,
			Folder: "INBOX",
		},
	}
}

// ExportTimeout returns the message-export timeout as a duration.
func (c *MessagesConfig) ExportTimeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// FetchTimeout returns the dialogue-fetch timeout as a duration.
func (c *DialogueConfig) FetchTimeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}
