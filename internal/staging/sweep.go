// Package staging removes leftover download directories from staging roots.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cratedig/internal/logging"
)

// SweepResult reports what a sweep removed and what it could not remove.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory with the error that stopped its removal.
type SweepError struct {
	Path string
	Err  error
}

// Sweep removes directories directly under root that have not been modified
// for maxAge. Directories whose name keep reports true are left alone even
// when stale. A missing root is not an error.
func Sweep(ctx context.Context, root string, maxAge time.Duration, keep func(name string) bool, logger *slog.Logger) SweepResult {
	var result SweepResult
	root = strings.TrimSpace(root)
	if root == "" || maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: root, Err: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}
		if keep != nil && keep(entry.Name()) {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir, Err: err})
			logging.WarnWithContext(logger, "failed to remove stale staging directory", "staging_sweep_failed",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging directory permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir)
		logger.Info("removed stale staging directory",
			logging.String("path", dir),
			logging.Duration("age", time.Since(info.ModTime()).Round(time.Minute)),
			logging.String(logging.FieldEventType, "staging_swept"),
		)
	}
	return result
}
