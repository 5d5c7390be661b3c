// Package ranking scores and filters untrusted search results before the
// provider layer commits to a download.
//
// Two strategies share the textmatch primitives. Indexer hits are judged on
// their titles: non-music releases are rejected, artist and album words must
// mostly match, and quality hints raise the score. Peer-to-peer responses are
// judged on folder structure: an artist directory followed by an album
// directory must hold at least three audio files before a response is
// considered at all. Both strategies apply the minimum track gate.
package ranking
