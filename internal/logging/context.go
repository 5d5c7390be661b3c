package logging

import (
	"context"
	"log/slog"

	"cratedig/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSlotID identifies the download slot handling a release.
	FieldSlotID = "slot_id"
	// FieldArtistID identifies the artist that owns a release.
	FieldArtistID = "artist_id"
	// FieldReleaseFolder identifies the release folder within the artist.
	FieldReleaseFolder = "release_folder"
	// FieldProvider names the acquisition chain currently running.
	FieldProvider = "provider"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldCorrelationID ties log lines to the API request that caused them.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.SlotIDFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldSlotID, id))
	}
	if ref, ok := services.ReleaseFromContext(ctx); ok {
		fields = append(fields,
			slog.String(FieldArtistID, ref.ArtistID),
			slog.String(FieldReleaseFolder, ref.Folder),
		)
	}
	if name, ok := services.ProviderFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProvider, name))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
