package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hydrator/internal/dedupe"
	"hydrator/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func resolved(feed, item, title, artist string) track.ResolvedTrack {
	return track.ResolvedTrack{
		FeedGUID:        feed,
		ItemGUID:        item,
		Title:           title,
		Artist:          artist,
		AudioURL:        "https://cdn.example/" + item + ".mp3",
		DurationSeconds: 200,
		DurationSource:  track.DurationFromSource,
		Status:          track.StatusResolved,
		ResolvedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestUpsertNeverDowngradesTerminalStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pending := track.ResolvedTrack{FeedGUID: "f1", ItemGUID: "i1", Title: "Track 1", Artist: track.UnknownArtist, Status: track.StatusUnresolved, Attempts: 4}
	if _, err := store.UpsertTracks(ctx, []track.ResolvedTrack{pending}); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	entries, _ := store.Snapshot(ctx)
	if len(entries) != 0 {
		t.Fatalf("unresolved tracks must not create entries, got %+v", entries)
	}

	done := resolved("f1", "i1", "Song A", "Artist Y")
	done.Attempts = 2
	stats, err := store.UpsertTracks(ctx, []track.ResolvedTrack{done})
	if err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	if stats.Updated != 1 {
		t.Fatalf("expected an in-place update, got %+v", stats)
	}

	stats, err = store.UpsertTracks(ctx, []track.ResolvedTrack{pending})
	if err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("resolved rows are sticky, got %+v", stats)
	}

	got, err := store.LookupTracks(ctx, []track.Key{{FeedGUID: "f1", ItemGUID: "i1"}, {FeedGUID: "f9", ItemGUID: "x"}})
	if err != nil {
		t.Fatalf("LookupTracks: %v", err)
	}
	stored, ok := got[track.Key{FeedGUID: "f1", ItemGUID: "i1"}]
	if !ok || len(got) != 1 {
		t.Fatalf("unexpected lookup result %+v", got)
	}
	if stored.Status != track.StatusResolved || stored.Title != "Song A" || stored.Attempts != 6 {
		t.Fatalf("unexpected stored track %+v", stored)
	}
	if !stored.ResolvedAt.Equal(done.ResolvedAt) || stored.DurationSource != track.DurationFromSource {
		t.Fatalf("fields did not round trip: %+v", stored)
	}

	entries, _ = store.Snapshot(ctx)
	if len(entries) != 1 || entries[0].Kind != track.KindSingle || len(entries[0].Tracks) != 1 {
		t.Fatalf("first resolution should create a single, got %+v", entries)
	}
}

func TestUnfindableIsSticky(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	gone := track.ResolvedTrack{FeedGUID: "f1", ItemGUID: "i1", Title: "Track 1", Artist: track.UnknownArtist, Status: track.StatusUnfindable}
	if _, err := store.UpsertTracks(ctx, []track.ResolvedTrack{gone}); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	stats, err := store.UpsertTracks(ctx, []track.ResolvedTrack{resolved("f1", "i1", "Song", "Artist")})
	if err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("unfindable rows are sticky, got %+v", stats)
	}
	list, err := store.ListTracks(ctx, TrackFilter{Statuses: []track.Status{track.StatusUnfindable}})
	if err != nil || len(list) != 1 {
		t.Fatalf("ListTracks: %v %+v", err, list)
	}
	summary, err := store.Summary(ctx)
	if err != nil || summary.Unfindable != 1 || summary.Total != 1 {
		t.Fatalf("Summary: %v %+v", err, summary)
	}
}

func TestDedupeSwapRemovesDuplicateSingle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	album := track.CatalogEntry{
		Title:    "X",
		Artist:   "Artist Y",
		FeedGUID: "f-album",
		Kind:     track.KindAlbum,
		Tracks: []track.ResolvedTrack{
			resolved("f-album", "a", "Song A", "Artist Y"),
			resolved("f-album", "b", "Song B", "Artist Y"),
		},
	}
	if _, err := store.AddEntry(ctx, album); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	single := resolved("f-single", "s", "Song A", "Artist Y")
	if _, err := store.UpsertTracks(ctx, []track.ResolvedTrack{single}); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}

	before, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(before) != 2 || before[0].Kind != track.KindAlbum {
		t.Fatalf("expected album then single, got %+v", before)
	}
	if before[0].Tracks[0].Title != "Song A" || before[0].Tracks[1].Title != "Song B" {
		t.Fatalf("album tracks out of order: %+v", before[0].Tracks)
	}

	result := dedupe.New(dedupe.Options{}, nil).Dedupe(before)
	if err := store.ApplyDedupe(ctx, result); err != nil {
		t.Fatalf("ApplyDedupe: %v", err)
	}
	after, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(after) != 1 || len(after[0].Tracks) != 2 {
		t.Fatalf("single should be gone, got %+v", after)
	}

	// A later run that resolves the same reference again must not bring the single back.
	stats, err := store.UpsertTracks(ctx, []track.ResolvedTrack{single})
	if err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected skip, got %+v", stats)
	}
	again, _ := store.Snapshot(ctx)
	if len(again) != 1 {
		t.Fatalf("duplicate single came back: %+v", again)
	}
	if second := dedupe.New(dedupe.Options{}, nil).Dedupe(again); second.Changed() {
		t.Fatalf("catalog should already be clean, got %+v", second.Removed)
	}
}

func TestRunsHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := Run{ID: "run-1", Started: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Elapsed: 1500 * time.Millisecond, Batches: 3,
		Summary: track.Summary{Resolved: 10, Unresolved: 1, Unfindable: 1, Total: 12}}
	newer := Run{ID: "run-2", Started: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Cancelled: true}
	for _, run := range []Run{older, newer} {
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || !runs[0].Cancelled {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[1].Summary != older.Summary || runs[1].Elapsed != older.Elapsed || runs[1].Batches != 3 {
		t.Fatalf("run did not round trip: %+v", runs[1])
	}
}

func TestReopenChecksSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()
	store, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = store.Close()
}

func TestEntryID(t *testing.T) {
	got := EntryID(track.KindSingle, "Song A", "Artist Y", "917393e3-1b1e-5cef")
	if got != "single-artist-y-song-a-917393e3" {
		t.Fatalf("unexpected id %q", got)
	}
	if EntryID(track.KindAlbum, "", "", "") != "album" {
		t.Fatal("empty inputs should still yield the kind prefix")
	}
}

func TestUpsertSkipsMalformedReferences(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	malformed := track.ResolvedTrack{ItemGUID: "i1", Status: track.StatusUnresolved, Error: "malformed reference"}
	stats, err := store.UpsertTracks(ctx, []track.ResolvedTrack{malformed})
	if err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	if stats.Skipped != 1 || stats.Inserted != 0 {
		t.Fatalf("malformed outcomes must not be stored, got %+v", stats)
	}
	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Total != 0 {
		t.Fatalf("expected empty catalog, got %+v", summary)
	}
}

func TestTitleSourceRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	untitled := resolved("f1", "i1", "Track 3", "Band")
	untitled.TitleSource = track.TitlePlaceholder
	if _, err := store.UpsertTracks(ctx, []track.ResolvedTrack{untitled}); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}
	got, err := store.LookupTracks(ctx, []track.Key{untitled.Key()})
	if err != nil {
		t.Fatalf("LookupTracks: %v", err)
	}
	if got[untitled.Key()].TitleSource != track.TitlePlaceholder {
		t.Fatalf("title source lost: %+v", got[untitled.Key()])
	}
	entries, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(entries) != 1 || entries[0].Tracks[0].TitleSource != track.TitlePlaceholder {
		t.Fatalf("snapshot lost title source: %+v", entries)
	}
}
