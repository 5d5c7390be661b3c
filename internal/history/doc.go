// Package history persists release attempt history in SQLite so the keyed
// per-release view survives daemon restarts.
//
// The Store keeps one row per release (its latest attempt) plus that
// attempt's ordered state transitions. Writes retry on SQLITE_BUSY with a
// short exponential backoff. A database from an older schema is rebuilt
// empty on open; one from a newer schema is refused.
package history
