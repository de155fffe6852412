package dedupe

import (
	"reflect"
	"testing"

	"hydrator/internal/normalize"
	"hydrator/internal/track"
)

func song(title, artist, audio string) track.ResolvedTrack {
	return track.ResolvedTrack{FeedGUID: "f", ItemGUID: title + artist + audio, Title: title, Artist: artist, AudioURL: audio}
}

func TestAlbumTrackAbsorbsStandaloneSingle(t *testing.T) {
	album := track.CatalogEntry{ID: "album-x", Title: "X", Kind: track.KindAlbum, Tracks: []track.ResolvedTrack{
		song("Song A", "Artist Y", "https://cdn/a.mp3"),
		song("Song B", "Artist Y", "https://cdn/b.mp3"),
	}}
	single := track.CatalogEntry{ID: "single-song-a", Title: "Song A", Kind: track.KindSingle, Tracks: []track.ResolvedTrack{
		song("Song A", "Artist Y", "https://cdn/a-single.mp3"),
	}}

	result := New(Options{}, nil).Dedupe([]track.CatalogEntry{album, single})

	count := 0
	for _, entry := range result.Entries {
		for _, tr := range entry.Tracks {
			if tr.Title == "Song A" && tr.Artist == "Artist Y" {
				count++
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one Song A, got %d", count)
	}
	if len(result.Entries) != 1 || result.Entries[0].ID != "album-x" {
		t.Fatalf("single entry should be dropped, got %+v", result.Entries)
	}
	if !reflect.DeepEqual(result.DroppedEntries, []string{"single-song-a"}) {
		t.Fatalf("unexpected dropped entries %v", result.DroppedEntries)
	}
	if len(result.Removed) != 1 || result.Removed[0].KeptEntry != "album-x" {
		t.Fatalf("unexpected removals %+v", result.Removed)
	}
}

func TestHigherScoreWinsOverCatalogOrder(t *testing.T) {
	first := track.CatalogEntry{ID: "one", Tracks: []track.ResolvedTrack{song("Song A", track.UnknownArtist, "")}}
	second := track.CatalogEntry{ID: "two", Tracks: []track.ResolvedTrack{
		song("song a", "Artist Y", "https://cdn/a.mp3"),
		song("Other", "Artist Y", "https://cdn/o.mp3"),
	}}

	result := New(Options{KeyMode: KeyTitle}, nil).Dedupe([]track.CatalogEntry{first, second})
	if len(result.Entries) != 1 || result.Entries[0].ID != "two" || len(result.Entries[0].Tracks) != 2 {
		t.Fatalf("playable track should win: %+v", result.Entries)
	}
}

func TestKeyFoldingAndModes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    track.ResolvedTrack
		mode    string
		removed int
	}{
		{"case and whitespace", song("  SONG   a", "artist y", "x"), song("Song A", "Artist Y", "y"), KeyTitleArtist, 1},
		{"unicode normalization", song("Caf\u00e9", "Zo\u00eb", "x"), song("Cafe\u0301", "Zoe\u0308", "y"), KeyTitleArtist, 1},
		{"qualifier keeps tracks apart", song("Song A (Remix)", "Artist Y", "x"), song("Song A", "Artist Y", "y"), KeyTitleArtist, 0},
		{"different artists", song("Song A", "Artist Y", "x"), song("Song A", "Artist Z", "y"), KeyTitleArtist, 0},
		{"title mode ignores artist", song("Song A", "Artist Y", "x"), song("Song A", "Artist Z", "y"), KeyTitle, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := []track.CatalogEntry{
				{ID: "a", Tracks: []track.ResolvedTrack{tt.a}},
				{ID: "b", Tracks: []track.ResolvedTrack{tt.b}},
			}
			result := New(Options{KeyMode: tt.mode}, nil).Dedupe(entries)
			if len(result.Removed) != tt.removed {
				t.Fatalf("removed %d, want %d", len(result.Removed), tt.removed)
			}
			if tt.removed == 1 && result.Removed[0].Entry != "b" {
				t.Fatalf("tie must keep the first-seen track, removed from %q", result.Removed[0].Entry)
			}
		})
	}
}

func TestDedupeIsIdempotentAndKeepsEmptyEntries(t *testing.T) {
	entries := []track.CatalogEntry{
		{ID: "empty-album", Kind: track.KindAlbum},
		{ID: "a", Tracks: []track.ResolvedTrack{song("One", "Y", "x"), song("one", "y", "")}},
		{ID: "b", Tracks: []track.ResolvedTrack{song("One", "Y", "z")}},
	}
	merger := New(Options{}, nil)
	first := merger.Dedupe(entries)
	second := merger.Dedupe(first.Entries)

	if second.Changed() {
		t.Fatalf("second pass must be a no-op, removed %+v", second.Removed)
	}
	if !reflect.DeepEqual(first.Entries, second.Entries) {
		t.Fatal("second pass changed the entries")
	}
	if first.Entries[0].ID != "empty-album" {
		t.Fatal("entries empty before the pass must be kept")
	}
	if len(entries[1].Tracks) != 2 {
		t.Fatal("input must not be modified")
	}
}

func TestScoreWeights(t *testing.T) {
	m := New(Options{Weights: Weights{Audio: 10, Artist: 5, Optional: 1}}, nil)
	full := track.ResolvedTrack{AudioURL: "a", Artist: "Y", ArtworkURL: "i", DurationSeconds: 200, DurationSource: track.DurationFromSource}
	if got := m.Score(full); got != 17 {
		t.Fatalf("full score = %d, want 17", got)
	}
	bare := track.ResolvedTrack{Artist: track.UnknownArtist, DurationSeconds: 180, DurationSource: track.DurationPlaceholder}
	if got := m.Score(bare); got != 0 {
		t.Fatalf("bare score = %d, want 0", got)
	}
}

func TestNearDuplicates(t *testing.T) {
	entries := []track.CatalogEntry{{ID: "a", Tracks: []track.ResolvedTrack{
		song("Midnight Drive", "Artist Y", "x"),
		song("Midnigth Drive", "Artist Y", "x"),
		song("Midnight Drive", "Someone Else", "x"),
		song("Completely Different", "Artist Y", "x"),
	}}}
	got := NearDuplicates(entries, 2)
	if len(got) != 1 {
		t.Fatalf("expected one near duplicate, got %+v", got)
	}
	if got[0].Distance != 2 || got[0].A.Artist != "artist y" {
		t.Fatalf("unexpected pair %+v", got[0])
	}
	if NearDuplicates(entries, 0) != nil {
		t.Fatal("distance 0 disables the report")
	}
}

func TestUntitledTracksAreNeverMerged(t *testing.T) {
	untitled := func(feedGUID, itemGUID string) track.ResolvedTrack {
		feed := track.FeedRecord{FeedGUID: feedGUID, Title: "Album", Author: "Band"}
		ep := track.EpisodeRecord{ItemGUID: itemGUID, AudioURL: "https://cdn/" + itemGUID + ".mp3"}
		return normalize.Track(feed, ep, 1, normalize.Options{})
	}
	one := track.CatalogEntry{ID: "album-one", Kind: track.KindAlbum, Tracks: []track.ResolvedTrack{untitled("fa", "a1")}}
	two := track.CatalogEntry{ID: "album-two", Kind: track.KindAlbum, Tracks: []track.ResolvedTrack{untitled("fb", "b1")}}
	if one.Tracks[0].Title != two.Tracks[0].Title {
		t.Fatalf("expected matching placeholder titles, got %q and %q", one.Tracks[0].Title, two.Tracks[0].Title)
	}

	result := New(Options{}, nil).Dedupe([]track.CatalogEntry{one, two})
	if result.Changed() {
		t.Fatalf("untitled tracks must survive, removed=%+v dropped=%v", result.Removed, result.DroppedEntries)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected both entries, got %d", len(result.Entries))
	}
	if near := NearDuplicates([]track.CatalogEntry{one, two}, 2); len(near) != 0 {
		t.Fatalf("placeholder titles should not be reported as near duplicates: %+v", near)
	}
}
