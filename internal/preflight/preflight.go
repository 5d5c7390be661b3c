package preflight

import (
	"context"

	"cratedig/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Required marks checks whose failure keeps the daemon from working at all.
	Required bool
}

// RunAll executes every applicable check for cfg. Service checks only run for
// transports that are enabled and fully configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir)),
		required(CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir)),
		required(CheckDirectoryAccess("State directory", cfg.Paths.StateDir)),
		required(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)),
	}
	if cfg.Discography.Enabled {
		results = append(results, required(CheckDirectoryAccess("Discography staging", cfg.Discography.StagingDir)))
	}
	if cfg.SoulseekReady() {
		results = append(results, CheckSlskd(ctx, cfg.Soulseek.URL, cfg.Soulseek.APIKey, cfg.Soulseek.DownloadDir))
	}
	if cfg.IndexerReady() {
		results = append(results, CheckProwlarr(ctx, cfg.Indexer.URL, cfg.Indexer.APIKey))
	}
	return results
}

// Failed reports whether any required check did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Required && !r.Passed {
			return true
		}
	}
	return false
}

func required(r Result) Result {
	r.Required = true
	return r
}
