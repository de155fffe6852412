package normalize

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hydrator/internal/podcastindex"
	"hydrator/internal/track"
)

var fixed = Options{Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}

func TestTrackPrecedence(t *testing.T) {
	tests := []struct {
		name        string
		feed        track.FeedRecord
		ep          track.EpisodeRecord
		wantTitle   string
		wantArtist  string
		wantArtwork string
	}{
		{
			name:        "episode fields win",
			feed:        track.FeedRecord{Title: "Album X", Author: "Band", ArtworkURL: "feed.jpg"},
			ep:          track.EpisodeRecord{Title: "Song A", Author: "Guest", ArtworkURL: "ep.jpg", AudioURL: "a.mp3"},
			wantTitle:   "Song A",
			wantArtist:  "Guest",
			wantArtwork: "ep.jpg",
		},
		{
			name:        "feed author then artwork",
			feed:        track.FeedRecord{Title: "Album X", Author: "Band", ArtworkURL: "feed.jpg"},
			ep:          track.EpisodeRecord{Title: "Song A", AudioURL: "a.mp3"},
			wantTitle:   "Song A",
			wantArtist:  "Band",
			wantArtwork: "feed.jpg",
		},
		{
			name:       "feed title as artist",
			feed:       track.FeedRecord{Title: "Album X"},
			ep:         track.EpisodeRecord{AudioURL: "a.mp3"},
			wantTitle:  "Track 4",
			wantArtist: "Album X",
		},
		{
			name:       "unknown artist",
			ep:         track.EpisodeRecord{Title: "  Song   A ", AudioURL: "a.mp3"},
			wantTitle:  "Song A",
			wantArtist: track.UnknownArtist,
		},
		{
			name:       "double escaped entities",
			feed:       track.FeedRecord{Author: "Tom &amp;amp; Jerry"},
			ep:         track.EpisodeRecord{Title: "Rock &amp; Roll", AudioURL: "a.mp3"},
			wantTitle:  "Rock & Roll",
			wantArtist: "Tom & Jerry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Track(tt.feed, tt.ep, 4, fixed)
			if got.Title != tt.wantTitle || got.Artist != tt.wantArtist || got.ArtworkURL != tt.wantArtwork {
				t.Fatalf("got title=%q artist=%q artwork=%q", got.Title, got.Artist, got.ArtworkURL)
			}
			if got.Status != track.StatusResolved {
				t.Fatalf("expected resolved, got %s", got.Status)
			}
			wantSource := track.TitleFromSource
			if tt.ep.Title == "" {
				wantSource = track.TitlePlaceholder
			}
			if got.TitleSource != wantSource {
				t.Fatalf("title source = %q, want %q", got.TitleSource, wantSource)
			}
		})
	}
}

func TestTrackDurationAndStatus(t *testing.T) {
	withDuration := Track(track.FeedRecord{}, track.EpisodeRecord{AudioURL: "a.mp3", DurationSeconds: 215}, 1, fixed)
	if withDuration.DurationSeconds != 215 || withDuration.DurationSource != track.DurationFromSource {
		t.Fatalf("unexpected duration %+v", withDuration)
	}

	placeholder := Track(track.FeedRecord{}, track.EpisodeRecord{AudioURL: "a.mp3"}, 1, Options{PlaceholderDuration: 200})
	if placeholder.DurationSeconds != 200 || placeholder.DurationSource != track.DurationPlaceholder {
		t.Fatalf("unexpected placeholder %+v", placeholder)
	}

	noAudio := Track(track.FeedRecord{}, track.EpisodeRecord{Title: "Song"}, 1, fixed)
	if noAudio.Status != track.StatusUnresolved || noAudio.DurationSeconds != DefaultPlaceholderDuration {
		t.Fatalf("a track without audio must stay unresolved: %+v", noAudio)
	}
	if !noAudio.ResolvedAt.Equal(fixed.Now()) {
		t.Fatalf("unexpected timestamp %s", noAudio.ResolvedAt)
	}
}

func TestOutcomeMapsErrors(t *testing.T) {
	ref := track.Reference{FeedGUID: "f1", ItemGUID: "i1"}
	tests := []struct {
		name   string
		err    error
		status track.Status
		reason string
	}{
		{"feed not found", fmt.Errorf("%w: feed f1", podcastindex.ErrNotFound), track.StatusUnfindable, podcastindex.KindNotFound},
		{"rate limited", &podcastindex.RateLimitError{}, track.StatusUnresolved, podcastindex.KindRateLimited},
		{"server error", &podcastindex.StatusError{StatusCode: 500}, track.StatusUnresolved, podcastindex.KindTransient},
		{"forbidden", &podcastindex.StatusError{StatusCode: 403}, track.StatusUnresolved, podcastindex.KindPermanent},
		{"malformed", fmt.Errorf("%w: feed guid is empty", track.ErrMalformedReference), track.StatusUnresolved, "malformed_reference"},
		{"cancelled", context.Canceled, track.StatusUnresolved, podcastindex.KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Outcome(ref, track.FeedRecord{}, track.EpisodeRecord{}, tt.err, 2, fixed)
			if got.Status != tt.status {
				t.Fatalf("status = %s, want %s", got.Status, tt.status)
			}
			if got.FeedGUID != "f1" || got.ItemGUID != "i1" || got.Error == "" {
				t.Fatalf("outcome must keep the reference and error: %+v", got)
			}
			if got.AudioURL != "" {
				t.Fatal("failed outcomes carry no audio")
			}
			if r := Reason(tt.err); r != tt.reason {
				t.Fatalf("Reason = %q, want %q", r, tt.reason)
			}
		})
	}
}

func TestOutcomeSuccessKeepsReferenceGUIDs(t *testing.T) {
	ref := track.Reference{FeedGUID: "f1", ItemGUID: "i1"}
	got := Outcome(ref, track.FeedRecord{FeedGUID: "F1"}, track.EpisodeRecord{ItemGUID: "I1", AudioURL: "a.mp3"}, nil, 1, fixed)
	if got.Key() != ref.Key() {
		t.Fatalf("key = %v, want %v", got.Key(), ref.Key())
	}
	if got.Status != track.StatusResolved || got.Error != "" {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestTrackCleansEscapedAndDecomposedText(t *testing.T) {
	feed := track.FeedRecord{FeedGUID: "f", Title: "Feed"}
	ep := track.EpisodeRecord{
		ItemGUID: "i",
		Title:    "  Rock &amp;amp; Roll  ",
		Author:   "Beyonce\u0301",
		AudioURL: "https://cdn.example/a.mp3",
	}
	got := Track(feed, ep, 1, Options{})
	if got.Title != "Rock & Roll" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Artist != "Beyonc\u00e9" {
		t.Fatalf("artist = %q, want composed form", got.Artist)
	}
}
