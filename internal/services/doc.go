// Package services defines shared utilities consumed by the acquisition
// engine and its transport adapters.
//
// Key responsibilities:
//   - Context helpers that stamp slot IDs, release keys, provider names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which maps
//     any error onto the engine's outcome taxonomy (not found, transient,
//     configuration, cancelled, unexpected).
//
// Use these helpers when wiring new providers so operational behaviour (error
// handling, observability, retries) stays uniform across transports.
package services
