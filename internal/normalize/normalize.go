package normalize

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"hydrator/internal/podcastindex"
	"hydrator/internal/track"
)

// DefaultPlaceholderDuration is used when the index reports no duration.
const DefaultPlaceholderDuration = 180

// Options tunes normalization.
type Options struct {
	// PlaceholderDuration in seconds; <= 0 selects DefaultPlaceholderDuration.
	PlaceholderDuration int
	// Now stamps ResolvedAt. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) placeholder() int {
	if o.PlaceholderDuration <= 0 {
		return DefaultPlaceholderDuration
	}
	return o.PlaceholderDuration
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// Track builds the canonical track for ep within feed. ordinal is the
// 1-based position of the reference in its playlist and only feeds the
// fallback title.
func Track(feed track.FeedRecord, ep track.EpisodeRecord, ordinal int, opts Options) track.ResolvedTrack {
	t := track.ResolvedTrack{
		FeedGUID:   feed.FeedGUID,
		ItemGUID:   ep.ItemGUID,
		Title:      cleanText(ep.Title),
		Artist:     firstNonEmpty(cleanText(ep.Author), cleanText(feed.Author), cleanText(feed.Title), track.UnknownArtist),
		AudioURL:   strings.TrimSpace(ep.AudioURL),
		ArtworkURL: firstNonEmpty(strings.TrimSpace(ep.ArtworkURL), strings.TrimSpace(feed.ArtworkURL)),
		FeedTitle:  cleanText(feed.Title),
		ResolvedAt: opts.now(),
	}
	if t.Title != "" {
		t.TitleSource = track.TitleFromSource
	} else {
		t.Title = fallbackTitle(ordinal)
		t.TitleSource = track.TitlePlaceholder
	}
	if ep.DurationSeconds > 0 {
		t.DurationSeconds = ep.DurationSeconds
		t.DurationSource = track.DurationFromSource
	} else {
		t.DurationSeconds = opts.placeholder()
		t.DurationSource = track.DurationPlaceholder
	}
	if t.AudioURL != "" {
		t.Status = track.StatusResolved
	} else {
		t.Status = track.StatusUnresolved
		t.Error = "episode has no enclosure url"
	}
	return t
}

// Outcome maps the result of resolving ref to a track. err is the first
// error returned by the feed or episode resolver; a not-found answer from
// either makes the track unfindable, anything else leaves it unresolved.
func Outcome(ref track.Reference, feed track.FeedRecord, ep track.EpisodeRecord, err error, ordinal int, opts Options) track.ResolvedTrack {
	if err == nil {
		t := Track(feed, ep, ordinal, opts)
		t.FeedGUID = ref.FeedGUID
		t.ItemGUID = ref.ItemGUID
		return t
	}
	t := track.ResolvedTrack{
		FeedGUID:        ref.FeedGUID,
		ItemGUID:        ref.ItemGUID,
		Title:           fallbackTitle(ordinal),
		TitleSource:     track.TitlePlaceholder,
		Artist:          firstNonEmpty(cleanText(feed.Author), cleanText(feed.Title), track.UnknownArtist),
		ArtworkURL:      strings.TrimSpace(feed.ArtworkURL),
		FeedTitle:       cleanText(feed.Title),
		DurationSeconds: opts.placeholder(),
		DurationSource:  track.DurationPlaceholder,
		Error:           err.Error(),
		ResolvedAt:      opts.now(),
	}
	switch {
	case podcastindex.IsNotFound(err):
		t.Status = track.StatusUnfindable
	default:
		t.Status = track.StatusUnresolved
	}
	return t
}

// Reason returns a short machine-readable cause for an unresolved outcome.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, track.ErrMalformedReference):
		return "malformed_reference"
	}
	return podcastindex.Classify(err)
}

func fallbackTitle(ordinal int) string {
	if ordinal <= 0 {
		return "Untitled Track"
	}
	return fmt.Sprintf("Track %d", ordinal)
}

// cleanText trims, decodes HTML entities and composes to NFC. Index titles
// are sometimes escaped twice, so decoding repeats until the text stops
// changing.
func cleanText(value string) string {
	value = strings.TrimSpace(value)
	for i := 0; i < 3 && strings.Contains(value, "&"); i++ {
		decoded := html.UnescapeString(value)
		if decoded == value {
			break
		}
		value = decoded
	}
	return norm.NFC.String(strings.Join(strings.Fields(value), " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
