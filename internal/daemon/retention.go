package daemon

import (
	"context"
	"time"

	"cratedig/internal/logging"
	"cratedig/internal/staging"
	"cratedig/internal/textmatch"
)

const retentionInterval = 6 * time.Hour

// retentionLoop prunes finished history rows, old release logs and stale
// discography bundles at startup and every retentionInterval until ctx ends.
func (d *Daemon) retentionLoop(ctx context.Context) {
	d.applyRetention(ctx)
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.applyRetention(ctx)
		}
	}
}

func (d *Daemon) applyRetention(ctx context.Context) {
	days := d.cfg.Logging.RetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := d.store.PruneFinished(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "finished history rows are kept past retention"),
			)
		}
	} else if removed > 0 {
		d.logger.Info("history pruned",
			logging.Int64("entries", removed),
			logging.Int("retention_days", days),
			logging.String(logging.FieldEventType, "history_pruned"),
		)
	}
	if pruned := logging.CleanupOldLogs(d.logger, days, logging.RunLogTargets(d.cfg.Paths.LogDir)...); pruned > 0 {
		d.logger.Info("logs pruned",
			logging.Int("files", pruned),
			logging.String(logging.FieldEventType, "logs_pruned"),
		)
	}
	d.sweepDiscographyStaging(ctx, time.Duration(days)*24*time.Hour)
}

// sweepDiscographyStaging drops per-artist bundle directories left behind by
// discography fallbacks, skipping artists a slot is working right now.
func (d *Daemon) sweepDiscographyStaging(ctx context.Context, maxAge time.Duration) {
	if !d.cfg.Discography.Enabled {
		return
	}
	active := make(map[string]struct{})
	for _, view := range d.pool.Snapshot() {
		if view.Current != nil {
			active[textmatch.SanitizeFileName(view.Current.ArtistName)] = struct{}{}
		}
	}
	result := staging.Sweep(ctx, d.cfg.Discography.StagingDir, maxAge, func(name string) bool {
		_, ok := active[name]
		return ok
	}, d.logger)
	if len(result.Removed) > 0 {
		d.logger.Info("discography staging swept",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "discography_staging_swept"),
		)
	}
}
