package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget specifies a directory and filename pattern to prune.
type RetentionTarget struct {
	Dir     string
	Pattern string
	// Keep lists files that survive regardless of age. Matching is by file
	// identity, so a hard-linked or symlinked alias protects its target.
	Keep []string
}

// RunLogTargets returns the retention targets for a log directory: daemon run
// logs, their event journals and per-release logs. The run behind the
// DaemonLogName pointer is always kept, together with any extra paths.
func RunLogTargets(logDir string, keep ...string) []RetentionTarget {
	keep = append(keep, filepath.Join(logDir, DaemonLogName))
	if target, err := filepath.EvalSymlinks(filepath.Join(logDir, DaemonLogName)); err == nil {
		keep = append(keep, target, strings.TrimSuffix(target, ".log")+".events")
	}
	return []RetentionTarget{
		{Dir: logDir, Pattern: "cratedigd-*.log", Keep: keep},
		{Dir: logDir, Pattern: "cratedigd-*.events", Keep: keep},
		{Dir: ReleaseLogDir(logDir), Pattern: "*.log"},
	}
}

// CleanupOldLogs removes regular files matching targets whose modification
// time is older than retentionDays and reports how many went. Zero or
// negative retention disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		kept := statAll(target.Keep)
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if pat := strings.TrimSpace(target.Pattern); pat != "" {
				if matched, err := filepath.Match(pat, entry.Name()); err != nil || !matched {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) || isKept(info, kept) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
				)
				continue
			}
			removed++
			if logger != nil {
				logger.Debug("log pruned",
					String("path", path),
					String(FieldEventType, "log_pruned"),
				)
			}
		}
	}
	return removed
}

func statAll(paths []string) []os.FileInfo {
	infos := make([]os.FileInfo, 0, len(paths))
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			infos = append(infos, info)
		}
	}
	return infos
}

func isKept(info os.FileInfo, kept []os.FileInfo) bool {
	for _, k := range kept {
		if os.SameFile(info, k) {
			return true
		}
	}
	return false
}

// ReleaseLogDir returns the directory holding per-release log files.
func ReleaseLogDir(logDir string) string {
	return filepath.Join(logDir, "releases")
}
