// Package library defines the metadata contract the acquisition engine reads
// release details from and reports outcomes back into, plus a JSON-file
// Catalog implementation used by the daemon.
//
// The engine only needs three operations: look up a release by artist and
// folder, record its download status, and record per-track availability.
// The import pipeline that fills the catalog lives outside this module; the
// Catalog accepts releases through Upsert so the CLI and tests can seed it.
package library
