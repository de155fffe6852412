package resolvecache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hydrator/internal/track"
)

func TestRoundTripAndExpiry(t *testing.T) {
	clock := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cache, err := Open(context.Background(), filepath.Join(t.TempDir(), "lookup.db"), Options{
		TTL: time.Hour,
		Now: func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cache.Close()
	ctx := context.Background()

	feed := track.FeedRecord{FeedGUID: "f1", ID: 42, Title: "Album", Author: "Artist", ArtworkURL: "a.jpg", OriginURL: "https://x/feed.xml"}
	if err := cache.SaveFeed(ctx, feed); err != nil {
		t.Fatalf("SaveFeed: %v", err)
	}
	ep := track.EpisodeRecord{ItemGUID: "Item-ONE", FeedID: 42, Title: "Song", AudioURL: "s.mp3", DurationSeconds: 90}
	if err := cache.SaveEpisode(ctx, "f1", ep); err != nil {
		t.Fatalf("SaveEpisode: %v", err)
	}

	gotFeed, ok, err := cache.LoadFeed(ctx, "f1")
	if err != nil || !ok || gotFeed != feed {
		t.Fatalf("LoadFeed = %+v %v %v", gotFeed, ok, err)
	}
	gotEp, ok, err := cache.LoadEpisode(ctx, track.Key{FeedGUID: "f1", ItemGUID: "item-one"})
	if err != nil || !ok || gotEp != ep {
		t.Fatalf("LoadEpisode = %+v %v %v", gotEp, ok, err)
	}

	clock = clock.Add(2 * time.Hour)
	if _, ok, _ := cache.LoadFeed(ctx, "f1"); ok {
		t.Fatal("expired feed must be treated as a miss")
	}

	stats, err := cache.Clear(ctx)
	if err != nil || stats.Feeds != 1 || stats.Episodes != 1 {
		t.Fatalf("Clear = %+v %v", stats, err)
	}
	after, _ := cache.Stats(ctx)
	if after.Feeds != 0 || after.Episodes != 0 {
		t.Fatalf("cache not empty after clear: %+v", after)
	}
}
