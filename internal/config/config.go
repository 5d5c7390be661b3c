package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
	APIBind    string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on every API call.
	APIToken   string `toml:"api_token"`
}

// Slots controls the worker pool.
type Slots struct {
	Count               int `toml:"count"`
	PollIntervalMillis  int `toml:"poll_interval_ms"`
	ErrorBackoffSeconds int `toml:"error_backoff_seconds"`
}

// Queue controls the work queue.
type Queue struct {
	Capacity               int `toml:"capacity"`
	FailureCooldownMinutes int `toml:"failure_cooldown_minutes"`
}

// History controls the in-memory history views.
type History struct {
	RingSize int `toml:"ring_size"`
}

// Providers controls the order in which acquisition chains are attempted.
type Providers struct {
	Order []string `toml:"order"`
}

// Soulseek contains configuration for the slskd peer-to-peer transport.
type Soulseek struct {
	Enabled                bool   `toml:"enabled"`
	URL                    string `toml:"url"`
	APIKey                 string `toml:"api_key"`
	DownloadDir            string `toml:"download_dir"`
	SearchTimeoutSeconds   int    `toml:"search_timeout_seconds"`
	ResponseLimit          int    `toml:"response_limit"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
}

// Indexer contains configuration for the Prowlarr indexer aggregator.
type Indexer struct {
	Enabled              bool   `toml:"enabled"`
	URL                  string `toml:"url"`
	APIKey               string `toml:"api_key"`
	Categories           []int  `toml:"categories"`
	IndexerIDs           []int  `toml:"indexer_ids"`
	RetryCount           int    `toml:"retry_count"`
	RetryDelaySeconds    int    `toml:"retry_delay_seconds"`
	SearchTimeoutSeconds int    `toml:"search_timeout_seconds"`
	PingTimeoutSeconds  int    `toml:"ping_timeout_seconds"`
}

// Usenet contains configuration for the SABnzbd download client.
type Usenet struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Category string `toml:"category"`
}

// Torrent contains configuration for the qBittorrent download client.
type Torrent struct {
	Enabled  bool   `toml:"enabled"`
	URL      string `toml:"url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Category string `toml:"category"`
}

// Discography controls whether bundle releases may be grabbed as a last resort.
type Discography struct {
	Enabled    bool   `toml:"enabled"`
	StagingDir string `toml:"staging_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	ReleaseCompleted bool   `toml:"release_completed"`
	ReleaseFailed    bool   `toml:"release_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for cratedig.
//
// Configuration sections by subsystem:
//   - Paths: library, staging, log and state directories plus API bind address
//   - Slots: worker count and scheduler cadence
//   - Queue: capacity and failure cooldown
//   - History: size of the bounded history feed
//   - Providers: acquisition chain order
//   - Soulseek / Indexer / Usenet / Torrent: transport endpoints and credentials
//   - Discography: bundle fallback and its staging directory
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Slots         Slots         `toml:"slots"`
	Queue         Queue         `toml:"queue"`
	History       History       `toml:"history"`
	Providers     Providers     `toml:"providers"`
	Soulseek      Soulseek      `toml:"soulseek"`
	Indexer       Indexer       `toml:"indexer"`
	Usenet        Usenet        `toml:"usenet"`
	Torrent       Torrent       `toml:"torrent"`
	Discography   Discography   `toml:"discography"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cratedig/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err == nil && !info.IsDir() {
			return expanded, true, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, false, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cratedig.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, c.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	if c.Discography.Enabled && strings.TrimSpace(c.Discography.StagingDir) != "" {
		if err := os.MkdirAll(c.Discography.StagingDir, 0o755); err != nil {
			return fmt.Errorf("create discography directory %q: %w", c.Discography.StagingDir, err)
		}
	}
	return nil
}

// PollInterval returns the scheduler tick period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Slots.PollIntervalMillis) * time.Millisecond
}

// ErrorBackoff returns the delay a slot waits after an unexpected failure.
func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Slots.ErrorBackoffSeconds) * time.Second
}

// FailureCooldown returns how long a failed release is refused re-entry.
func (c *Config) FailureCooldown() time.Duration {
	return time.Duration(c.Queue.FailureCooldownMinutes) * time.Minute
}

// SoulseekReady reports whether the P2P transport is enabled and fully configured.
func (c *Config) SoulseekReady() bool {
	return c.Soulseek.Enabled && c.Soulseek.URL != "" && c.Soulseek.APIKey != ""
}

// IndexerReady reports whether the indexer aggregator is enabled and fully configured.
func (c *Config) IndexerReady() bool {
	return c.Indexer.Enabled && c.Indexer.URL != "" && c.Indexer.APIKey != ""
}

// UsenetReady reports whether the Usenet client is enabled and fully configured.
func (c *Config) UsenetReady() bool {
	return c.Usenet.Enabled && c.Usenet.URL != "" && c.Usenet.APIKey != ""
}

// TorrentReady reports whether the torrent client is enabled and has an endpoint.
func (c *Config) TorrentReady() bool {
	return c.Torrent.Enabled && c.Torrent.URL != ""
}

// HistoryDBPath returns the SQLite path for durable history.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "cratedigd.lock")
}

// PIDPath returns the file the daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "cratedigd.pid")
}

// CatalogPath returns the JSON file backing the release catalog.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "catalog.json")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
