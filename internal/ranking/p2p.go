package ranking

import (
	"sort"
	"strings"

	"cratedig/internal/textmatch"
)

const (
	minStructuralFiles  = 3
	perFileScore        = 10
	exactAlbumSegment   = 20
	partialAlbumSegment = 10
	yearSegmentBonus    = 10
	maxCohesionBonus    = 100
)

// P2PFile is one file in a peer's search response.
type P2PFile struct {
	Filename string
	Size     int64
	BitRate  int
	Length   int
}

// P2PResponse is one peer's answer to a search.
type P2PResponse struct {
	Username          string
	QueueLength       int
	HasFreeUploadSlot bool
	UploadSpeed       int64
	Files             []P2PFile
}

// RankedResponse is a response that passed the structural rule. Files holds
// the structurally matching audio files in listing order.
type RankedResponse struct {
	Response   P2PResponse
	Files      []P2PFile
	Score      int
	Bitrate320 int
}

// RankP2P keeps responses whose folder layout places the album under the
// artist and orders them by match quality, then by how responsive the peer is.
func RankP2P(responses []P2PResponse, artist, album, year string, expectedTracks int) []RankedResponse {
	wantArtist := textmatch.NormalizeFolded(artist)
	wantAlbum := textmatch.NormalizeFolded(album)
	if wantArtist == "" || wantAlbum == "" {
		return nil
	}
	year = strings.TrimSpace(year)
	minTracks := MinimumTracks(expectedTracks)

	ranked := make([]RankedResponse, 0, len(responses))
	for _, resp := range responses {
		candidate, ok := scoreResponse(resp, wantArtist, wantAlbum, year)
		if !ok || len(candidate.Files) < minTracks {
			continue
		}
		ranked = append(ranked, candidate)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Response.QueueLength != b.Response.QueueLength {
			return a.Response.QueueLength < b.Response.QueueLength
		}
		if a.Response.HasFreeUploadSlot != b.Response.HasFreeUploadSlot {
			return a.Response.HasFreeUploadSlot
		}
		if a.Response.UploadSpeed != b.Response.UploadSpeed {
			return a.Response.UploadSpeed > b.Response.UploadSpeed
		}
		return a.Bitrate320 > b.Bitrate320
	})
	return ranked
}

func scoreResponse(resp P2PResponse, wantArtist, wantAlbum, year string) (RankedResponse, bool) {
	considered := 0
	score := 0
	var matched []P2PFile
	groups := make(map[string]int)

	for _, file := range resp.Files {
		if !IsAudioFile(file.Filename) {
			continue
		}
		considered++
		dirs := directorySegments(file.Filename)
		albumSeg, ok := structuralMatch(dirs, wantArtist, wantAlbum)
		if !ok {
			continue
		}
		matched = append(matched, file)
		score += perFileScore
		if albumSeg == wantAlbum {
			score += exactAlbumSegment
		} else {
			score += partialAlbumSegment
		}
		if year != "" && strings.Contains(albumSeg, year) {
			score += yearSegmentBonus
		}
		groups[strings.Join(dirs, "/")]++
	}

	if len(matched) < minStructuralFiles {
		return RankedResponse{}, false
	}

	largest := 0
	for _, n := range groups {
		largest = max(largest, n)
	}
	score += min(maxCohesionBonus, 2*largest)
	score += 100 * len(matched) / considered

	return RankedResponse{
		Response:   resp,
		Files:      matched,
		Score:      score,
		Bitrate320: count320(matched),
	}, true
}

// structuralMatch looks for a directory equal to the artist followed later by
// a directory containing, or contained in, the album title.
func structuralMatch(dirs []string, wantArtist, wantAlbum string) (string, bool) {
	artistIdx := -1
	for i, seg := range dirs {
		if seg == wantArtist {
			artistIdx = i
			break
		}
	}
	if artistIdx < 0 {
		return "", false
	}
	for _, seg := range dirs[artistIdx+1:] {
		if seg == "" {
			continue
		}
		if strings.Contains(seg, wantAlbum) || strings.Contains(wantAlbum, seg) {
			return seg, true
		}
	}
	return "", false
}

// directorySegments returns the normalized directory components of a remote
// path, excluding the file name. Peers report Windows and POSIX separators.
func directorySegments(filename string) []string {
	parts := strings.FieldsFunc(filename, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) <= 1 {
		return nil
	}
	dirs := make([]string, 0, len(parts)-1)
	for _, part := range parts[:len(parts)-1] {
		dirs = append(dirs, textmatch.NormalizeFolded(part))
	}
	return dirs
}

func count320(files []P2PFile) int {
	n := 0
	for _, f := range files {
		if f.BitRate == 320 || strings.Contains(strings.ToLower(f.Filename), "320") {
			n++
		}
	}
	return n
}
