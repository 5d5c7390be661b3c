package provider

import (
	"reflect"
	"testing"
)

func TestP2PQueriesVariantsInOrder(t *testing.T) {
	got := P2PQueries("AC/DC", "Back in Black", "1980")
	want := []string{
		"AC/DC Back in Black",
		"AC/DC Back in Black 1980",
		"AC DC Back in Black",
		"AC DC Back in Black 1980",
		"AC-DC Back in Black",
		"AC-DC Back in Black 1980",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("P2PQueries = %#v, want %#v", got, want)
	}
}

func TestP2PQueriesFoldDiacritics(t *testing.T) {
	got := P2PQueries("Sigur Rós", "Takk", "")
	want := []string{"Sigur Rós Takk", "Sigur Ros Takk"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("P2PQueries = %#v, want %#v", got, want)
	}
}

func TestP2PQueriesRequireArtistAndTitle(t *testing.T) {
	if got := P2PQueries("", "Album", "2001"); got != nil {
		t.Fatalf("expected no queries, got %v", got)
	}
}

func TestIndexerQueriesLadder(t *testing.T) {
	got := IndexerQueries("ArtistA", "Album X", "2001")
	want := []string{"ArtistA Album X", "ArtistA Album X 2001", "ArtistA Album X 320", "ArtistA Album X FLAC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexerQueries = %#v, want %#v", got, want)
	}
	if got := IndexerQueries("ArtistA", "Album X", ""); len(got) != 3 {
		t.Fatalf("expected year rung to be skipped, got %v", got)
	}
}
