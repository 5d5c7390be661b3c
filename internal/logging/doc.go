// Package logging builds the daemon's slog loggers.
//
// The console handler lifts slot and release fields into a bracketed prefix so
// every line about one release reads the same way; the JSON handler emits
// millisecond timestamps and integer _ms durations for log tooling. Context
// helpers tag records with the slot, release, provider and request that
// produced them, and retention prunes old run logs, event journals and release
// logs while keeping the current run.
package logging
