// Package daemon coordinates the long-running cratedig process.
//
// It wires configuration, the work queue, the cancellation registry, the
// progress and history trackers, durable history storage, the release
// catalog, and the provider chain into a slot pool, then runs the pool, the
// HTTP API and periodic retention under one errgroup with flock-based locking
// to prevent multiple instances.
//
// Keep orchestration logic here: acquisition belongs to the provider chains
// and scheduling to the slot pool, while the daemon focuses on startup,
// shutdown, and the API surface.
package daemon
