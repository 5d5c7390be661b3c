// Package api defines the wire-format types shared by the daemon HTTP API and
// the CLI client. It translates engine models (queue items, slot views,
// history entries, hub events) into transport-friendly DTOs so consumers do
// not couple to internal types.
//
// # Key Types
//
// QueueItem/QueueSnapshot: queued releases and queue occupancy.
//
// Slot/SlotsResponse: slot state, the release a slot holds, and its live
// progress.
//
// HistoryEntry: one attempt at a release with its transitions and terminal
// outcome.
//
// DaemonStatus: aggregated runtime information including provider readiness.
//
// Event/EventsResponse: hub events for long-poll and websocket consumers.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums (slot states, outcomes, enqueue
// reasons) are exposed as lowercase strings. Timestamps use RFC3339 with
// milliseconds and are omitted when zero. Event data is passed through as
// json.RawMessage to avoid double-encoding.
package api
