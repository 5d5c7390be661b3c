package provider

import (
	"strings"

	"cratedig/internal/textmatch"
)

// P2PQueries builds the search variants tried against the P2P network, most
// literal first. Each base form is followed by its year-suffixed form.
func P2PQueries(artist, album, year string) []string {
	base := strings.TrimSpace(artist + " " + album)
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil
	}
	forms := []string{
		base,
		strings.ReplaceAll(base, "/", " "),
		strings.ReplaceAll(base, "/", "-"),
		textmatch.FoldDiacritics(strings.ReplaceAll(base, "/", " ")),
		textmatch.ASCIIFold(strings.ReplaceAll(base, "/", " ")),
	}
	year = strings.TrimSpace(year)
	var queries []string
	for _, form := range forms {
		queries = append(queries, form)
		if year != "" {
			queries = append(queries, form+" "+year)
		}
	}
	return dedupe(queries)
}

// IndexerQueries builds the escalating query ladder for indexer searches.
func IndexerQueries(artist, album, year string) []string {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(album) == "" {
		return nil
	}
	base := strings.TrimSpace(artist) + " " + strings.TrimSpace(album)
	queries := []string{base}
	if y := strings.TrimSpace(year); y != "" {
		queries = append(queries, base+" "+y)
	}
	queries = append(queries, base+" 320", base+" FLAC")
	return dedupe(queries)
}
