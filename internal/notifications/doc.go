// Package notifications delivers release outcomes via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Per-event
// toggles in the [notifications] section suppress individual event types.
package notifications
