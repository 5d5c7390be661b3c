// Package provider runs the acquisition chains that turn a wanted release
// into files on disk or a hand-off to an external download client.
//
// Two chains implement Provider:
//
//   - P2PChain searches a Soulseek client with several query variants, ranks
//     peers by folder structure, and downloads the best candidate track by
//     track. A failed file abandons the candidate and the next one is tried.
//   - IndexerChain walks a query ladder against an indexer aggregator, ranks
//     hits, and hands the first acceptable one to the Usenet or torrent
//     client. Discography bundles are only considered when nothing else
//     matched and bundle handling is enabled.
//
// Chain tries the enabled providers in configured order; the first success
// wins. Exhausting every provider yields an error marked services.ErrNotFound.
// Transient transport failures never escape a chain: they advance the chain
// to the next query or candidate.
package provider
