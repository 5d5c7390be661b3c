package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cratedig/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PROWLARR_API_KEY", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "cratedig", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempHome, "Music") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7489" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Slots.Count != 2 {
		t.Fatalf("expected two slots by default, got %d", cfg.Slots.Count)
	}
	if cfg.Queue.Capacity != 1000 {
		t.Fatalf("unexpected queue capacity: %d", cfg.Queue.Capacity)
	}
	if cfg.History.RingSize != 200 {
		t.Fatalf("unexpected ring size: %d", cfg.History.RingSize)
	}
	if got := strings.Join(cfg.Providers.Order, ","); got != "soulseek,indexer" {
		t.Fatalf("unexpected provider order: %s", got)
	}
	if cfg.Discography.Enabled {
		t.Fatal("expected discography fallback disabled by default")
	}
	if cfg.IndexerReady() || cfg.SoulseekReady() || cfg.UsenetReady() || cfg.TorrentReady() {
		t.Fatal("expected no transports ready by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LibraryDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
	if filepath.Dir(cfg.HistoryDBPath()) != cfg.Paths.StateDir {
		t.Fatalf("history db should live in state dir: %s", cfg.HistoryDBPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cratedig.toml")

	type payload struct {
		Slots struct {
			Count int `toml:"count"`
		} `toml:"slots"`
		Providers struct {
			Order []string `toml:"order"`
		} `toml:"providers"`
		Indexer struct {
			Enabled bool   `toml:"enabled"`
			URL     string `toml:"url"`
			APIKey  string `toml:"api_key"`
		} `toml:"indexer"`
	}
	custom := payload{}
	custom.Slots.Count = 4
	custom.Providers.Order = []string{" Indexer ", "soulseek", "indexer"}
	custom.Indexer.Enabled = true
	custom.Indexer.URL = "http://prowlarr:9696/"
	custom.Indexer.APIKey = "abc123"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Slots.Count != 4 {
		t.Fatalf("expected 4 slots, got %d", cfg.Slots.Count)
	}
	if got := strings.Join(cfg.Providers.Order, ","); got != "indexer,soulseek" {
		t.Fatalf("expected normalized provider order, got %s", got)
	}
	if cfg.Indexer.URL != "http://prowlarr:9696" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Indexer.URL)
	}
	if !cfg.IndexerReady() {
		t.Fatal("expected indexer to be ready")
	}
}

func TestEnvFallbackForTransportKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PROWLARR_API_KEY", "env-prowlarr")
	t.Setenv("SABNZBD_API_KEY", "env-sab")
	t.Setenv("SLSKD_API_KEY", "env-slskd")
	t.Setenv("QBITTORRENT_PASSWORD", "env-qbt")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Indexer.APIKey != "env-prowlarr" {
		t.Fatalf("expected prowlarr key from env, got %q", cfg.Indexer.APIKey)
	}
	if cfg.Usenet.APIKey != "env-sab" {
		t.Fatalf("expected sabnzbd key from env, got %q", cfg.Usenet.APIKey)
	}
	if cfg.Soulseek.APIKey != "env-slskd" {
		t.Fatalf("expected slskd key from env, got %q", cfg.Soulseek.APIKey)
	}
	if cfg.Torrent.Password != "env-qbt" {
		t.Fatalf("expected qbittorrent password from env, got %q", cfg.Torrent.Password)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative slots", func(c *config.Config) { c.Slots.Count = -1 }, "slots.count"},
		{"zero capacity", func(c *config.Config) { c.Queue.Capacity = 0 }, "queue.capacity"},
		{"unknown provider", func(c *config.Config) { c.Providers.Order = []string{"ftp"} }, "providers.order"},
		{"ping timeout equals search timeout", func(c *config.Config) {
			c.Indexer.SearchTimeoutSeconds = 10
			c.Indexer.PingTimeoutSeconds = 10
		}, "indexer.ping_timeout_seconds"},
		{"ping timeout longer than search timeout", func(c *config.Config) {
			c.Indexer.SearchTimeoutSeconds = 5
			c.Indexer.PingTimeoutSeconds = 8
		}, "shorter than"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.LibraryDir = "/music"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadKeepsTransportWithoutKeyDisabled(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PROWLARR_API_KEY", "")
	t.Setenv("SABNZBD_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `[paths]
library_dir = "/music"

[indexer]
enabled = true
url = "http://prowlarr:9696"

[usenet]
enabled = true
url = "http://sab:8080"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.IndexerReady() || cfg.UsenetReady() {
		t.Fatal("expected indexer and usenet to be disabled without api keys")
	}
	warnings := strings.Join(cfg.TransportWarnings(), "\n")
	for _, want := range []string{"indexer.api_key", "usenet.api_key"} {
		if !strings.Contains(warnings, want) {
			t.Fatalf("expected warning mentioning %s, got %q", want, warnings)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SLSKD_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Queue.FailureCooldownMinutes != 30 {
		t.Fatalf("unexpected cooldown from sample: %d", cfg.Queue.FailureCooldownMinutes)
	}
}
