package testsupport

import (
	"path/filepath"
	"testing"

	"cratedig/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every transport is disabled and the API binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Discography.StagingDir = filepath.Join(base, "discography")
	cfgVal.Slots.PollIntervalMillis = 20
	cfgVal.Slots.ErrorBackoffSeconds = 0
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSlots sets the initial slot count.
func WithSlots(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Slots.Count = n
	}
}

// WithAPIToken requires a bearer token on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithStateDir points the state directory at dir so several configs can
// share a lock and history database.
func WithStateDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.StateDir = dir
	}
}

// WithCooldown sets the failure cooldown in minutes.
func WithCooldown(minutes int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.FailureCooldownMinutes = minutes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
