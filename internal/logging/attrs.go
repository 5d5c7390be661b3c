package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func Args(attrs ...Attr) []any {
	return attrsToArgs(attrs)
}

func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func hasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// guidance is the fallback next step and consequence for an event family.
type guidance struct {
	hint   string
	impact string
}

var eventGuidance = []struct {
	prefixes []string
	guidance
}{
	{
		prefixes: []string{"indexer_", "transport_", "provider_"},
		guidance: guidance{
			hint:   "run `cratedig config validate` and check the transport url and api key",
			impact: "the release falls through to the next provider",
		},
	},
	{
		prefixes: []string{"release_", "slot_"},
		guidance: guidance{
			hint:   "inspect the release log under log_dir/releases",
			impact: "the release is marked failed and retried after its cooldown",
		},
	},
	{
		prefixes: []string{"history_"},
		guidance: guidance{
			hint:   "check that paths.state_dir is writable",
			impact: "release history may be incomplete after restart",
		},
	},
	{
		prefixes: []string{"log_", "staging_"},
		guidance: guidance{
			hint:   "check ownership of log_dir and the discography staging dir",
			impact: "stale files remain on disk",
		},
	},
}

func guidanceFor(eventType string) guidance {
	for _, entry := range eventGuidance {
		for _, prefix := range entry.prefixes {
			if strings.HasPrefix(eventType, prefix) {
				return entry.guidance
			}
		}
	}
	return guidance{hint: "check logs for details", impact: "operation completed with warnings"}
}

// WarnWithContext logs a warning carrying event_type, error_hint and impact.
// Missing fields are filled from the event family so every warning says what
// broke, what it costs, and where to look.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	g := guidanceFor(eventType)
	if !hasAttrKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasAttrKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, g.hint))
	}
	if !hasAttrKey(attrs, FieldImpact) {
		attrs = append(attrs, String(FieldImpact, g.impact))
	}
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error carrying event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	if !hasAttrKey(attrs, FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !hasAttrKey(attrs, FieldErrorHint) {
		attrs = append(attrs, String(FieldErrorHint, guidanceFor(eventType).hint))
	}
	logger.Error(msg, Args(attrs...)...)
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (nopHandler) Handle(context.Context, slog.Record) error { return nil }

func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h nopHandler) WithGroup(string) slog.Handler { return h }

// OutcomeAttrs tags a provider result for a release.
func OutcomeAttrs(provider, outcome, reason string) []Attr {
	return []Attr{
		String(FieldProvider, provider),
		String("outcome", outcome),
		String("outcome_reason", reason),
	}
}
