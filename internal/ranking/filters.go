package ranking

import (
	"path"
	"regexp"
	"strings"

	"github.com/moistari/rls"

	"cratedig/internal/textmatch"
)

var audioExtensions = map[string]struct{}{
	".flac": {}, ".mp3": {}, ".m4a": {}, ".aac": {}, ".ogg": {}, ".opus": {},
	".wav": {}, ".alac": {}, ".ape": {}, ".wv": {}, ".aiff": {},
}

// Substring markers that only appear in video release names.
var nonMusicMarkers = []string{
	"1080p", "720p", "2160p", "480p",
	"x264", "x265", "hevc",
	"bluray", "blu-ray", "webrip", "web-dl", "hdtv",
	"dubbed", "subbed", "complete series",
}

var (
	episodePattern = regexp.MustCompile(`(?i)\bs\d{1,2}\s?e\d{1,3}\b`)
	seasonPattern  = regexp.MustCompile(`(?i)\b(season|episode)\b`)
)

var bundleKeywords = []string{
	"discography", "collection", "anthology", "complete", "box set", "boxset",
	"singles collection", "greatest hits", "best of", "the essential", "works",
}

// IsAudioFile reports whether name has a recognised audio extension.
func IsAudioFile(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	_, ok := audioExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// IsNonMusic reports whether a release title looks like video content.
func IsNonMusic(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range nonMusicMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if episodePattern.MatchString(title) || seasonPattern.MatchString(title) {
		return true
	}
	release := rls.ParseString(title)
	switch release.Type {
	case rls.Movie, rls.Episode, rls.Series:
		if release.Resolution != "" || (release.Series > 0 && release.Episode > 0) {
			return true
		}
	}
	return false
}

// IsDiscographyBundle reports whether title describes a multi-release bundle.
func IsDiscographyBundle(title string) bool {
	padded := " " + textmatch.NormalizeFolded(title) + " "
	for _, keyword := range bundleKeywords {
		if strings.Contains(padded, " "+keyword+" ") {
			return true
		}
	}
	return false
}

// MinimumTracks returns how many qualifying audio files a candidate must offer.
// When the expected count is known, one missing track is tolerated.
func MinimumTracks(expected int) int {
	if expected <= 0 {
		return 5
	}
	return max(2, min(expected, expected-1))
}
