// Package progress tracks what each download slot is doing right now and what
// happened to every release it has worked on.
//
// Tracker holds one Progress value per busy slot. Every change replaces the
// stored value under the lock and is published on "progress.<slotID>", so
// observers never see a half-applied update. History records the slot state
// transitions of each release attempt together with its terminal result, in a
// bounded ring for the recent feed and a keyed map for per-release detail.
package progress
