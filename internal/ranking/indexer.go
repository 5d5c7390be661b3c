package ranking

import (
	"net/url"
	"sort"
	"strings"

	"cratedig/internal/textmatch"
)

const (
	indexerBaseScore      = 10
	exactArtistBonus      = 20
	exactAlbumBonus       = 20
	qualityKeywordBonus   = 5
	extensionMentionBonus = 3
	torrentLinkPenalty    = 50
)

var qualityKeywords = map[string]struct{}{
	"flac": {}, "lossless": {}, "320": {}, "cd": {}, "vinyl": {},
	"24bit": {}, "16bit": {}, "hires": {},
}

var extensionMentions = map[string]struct{}{
	"flac": {}, "mp3": {}, "m4a": {}, "aac": {}, "ogg": {}, "opus": {},
	"wav": {}, "alac": {}, "ape": {}, "wv": {}, "aiff": {},
}

// Indexer protocols reported by the aggregator.
const (
	ProtocolUsenet  = "usenet"
	ProtocolTorrent = "torrent"
)

// IndexerCandidate is one indexer search hit.
type IndexerCandidate struct {
	Title       string
	GUID        string
	MagnetURL   string
	DownloadURL string
	SizeBytes   int64
	IndexerID   int
	Protocol    string
}

// ScoredIndexerCandidate pairs a candidate with its ranking score.
type ScoredIndexerCandidate struct {
	IndexerCandidate
	Score  int
	Bundle bool
}

// Magnet returns the magnet URI for the candidate, if any.
func (c IndexerCandidate) Magnet() string {
	if strings.HasPrefix(strings.ToLower(c.MagnetURL), "magnet:") {
		return c.MagnetURL
	}
	if strings.HasPrefix(strings.ToLower(c.DownloadURL), "magnet:") {
		return c.DownloadURL
	}
	return ""
}

// IsTorrentLink reports whether the candidate's direct link points at a
// .torrent file rather than an NZB.
func IsTorrentLink(c IndexerCandidate) bool {
	link := strings.TrimSpace(c.DownloadURL)
	if link == "" || strings.HasPrefix(strings.ToLower(link), "magnet:") {
		return false
	}
	if strings.EqualFold(c.Protocol, ProtocolTorrent) {
		return true
	}
	if parsed, err := url.Parse(link); err == nil {
		if strings.HasSuffix(strings.ToLower(parsed.Path), ".torrent") {
			return true
		}
		if strings.HasSuffix(strings.ToLower(parsed.Query().Get("file")), ".torrent") {
			return true
		}
	}
	return strings.HasSuffix(strings.ToLower(link), ".torrent")
}

// ScoreIndexer scores a candidate against the wanted artist and album. The
// boolean is false when the candidate is rejected outright.
func ScoreIndexer(c IndexerCandidate, artist, album string) (int, bool) {
	title := c.Title
	if strings.TrimSpace(title) == "" || IsNonMusic(title) {
		return 0, false
	}
	if !textmatch.HalfWordsMatch(artist, title) {
		return 0, false
	}
	// Bundles rarely name the album; artist coverage is enough to keep them
	// for the discography fallback.
	if !IsDiscographyBundle(title) && !textmatch.HalfWordsMatch(album, title) {
		return 0, false
	}

	score := indexerBaseScore
	if textmatch.ContainsNormalized(title, artist) {
		score += exactArtistBonus
	}
	if textmatch.ContainsNormalized(title, album) {
		score += exactAlbumBonus
	}
	for _, word := range uniqueWords(title) {
		if _, ok := qualityKeywords[word]; ok {
			score += qualityKeywordBonus
		}
		if _, ok := extensionMentions[word]; ok {
			score += extensionMentionBonus
		}
	}
	if IsTorrentLink(c) {
		score -= torrentLinkPenalty
	}
	return score, true
}

// RankIndexer filters and scores candidates, returning them by score
// descending. Ties keep the aggregator's order.
func RankIndexer(candidates []IndexerCandidate, artist, album string) []ScoredIndexerCandidate {
	ranked := make([]ScoredIndexerCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, ok := ScoreIndexer(c, artist, album)
		if !ok {
			continue
		}
		ranked = append(ranked, ScoredIndexerCandidate{
			IndexerCandidate: c,
			Score:            score,
			Bundle:           IsDiscographyBundle(c.Title),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func uniqueWords(s string) []string {
	words := textmatch.Words(s)
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
