// Package slots runs the bounded pool of download workers.
//
// A Pool owns one scheduler loop and one goroutine per slot. The scheduler
// claims queued releases under a single mutex and hands each to an idle slot,
// refusing to start a release another slot is already working. Each slot walks
// the state machine Idle, Starting, Processing, then Completed, Error or
// Cancelled, and back to Idle, recording every transition in the history
// tracker. Slot count can change while running: new slots start immediately,
// idle slots stop immediately, busy slots finish their release first.
package slots
