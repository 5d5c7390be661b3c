package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cratedig/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "validate", "--config", configPath}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "no acquisition provider")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateWarnsAboutTransportWithoutKey(t *testing.T) {
	t.Setenv("PROWLARR_API_KEY", "")
	cfg := testsupport.NewConfig(t)
	cfg.Indexer.Enabled = true
	cfg.Indexer.URL = "http://prowlarr:9696"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "validate", "--config", configPath}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Warning: indexer.api_key is empty")
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("api-secret"))
	cfg.Soulseek.APIKey = "slskd-secret"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "show", "--config", configPath}, "")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# Loaded from "+configPath)
	requireContains(t, out, redacted)
	if strings.Contains(out, "api-secret") || strings.Contains(out, "slskd-secret") {
		t.Fatalf("secrets leaked into output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"config", "show", "--config", configPath, "--show-secrets"}, "")
	if err != nil {
		t.Fatalf("config show --show-secrets: %v", err)
	}
	requireContains(t, out, "slskd-secret")
}
