// Package main hosts the cratedig CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP calls
// against the daemon API: queue maintenance, cancellation, slot resizing,
// history and event inspection. It also runs the daemon itself and scaffolds
// configuration.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
