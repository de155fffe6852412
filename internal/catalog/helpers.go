package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"hydrator/internal/track"
)

const trackColumns = "feed_guid, item_guid, title, title_source, artist, audio_url, artwork_url, duration_seconds, duration_source, status, feed_title, error_message, attempts, resolved_at"

func scanTrack(scanner interface{ Scan(dest ...any) error }) (track.ResolvedTrack, error) {
	var (
		t           track.ResolvedTrack
		titleSource string
		source      string
		status      string
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(
		&t.FeedGUID,
		&t.ItemGUID,
		&t.Title,
		&titleSource,
		&t.Artist,
		&t.AudioURL,
		&t.ArtworkURL,
		&t.DurationSeconds,
		&source,
		&status,
		&t.FeedTitle,
		&t.Error,
		&t.Attempts,
		&resolvedRaw,
	); err != nil {
		return track.ResolvedTrack{}, err
	}
	parsed, err := track.ParseStatus(status)
	if err != nil {
		return track.ResolvedTrack{}, fmt.Errorf("track %s/%s: %w", t.FeedGUID, t.ItemGUID, err)
	}
	t.Status = parsed
	t.TitleSource = track.TitleSource(titleSource)
	t.DurationSource = track.DurationSource(source)
	t.ResolvedAt = parseTime(resolvedRaw)
	return t, nil
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid || value.String == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// EntryID derives a stable, readable identifier for an album or single.
func EntryID(kind track.EntryKind, title, artist, guid string) string {
	base := slug.Make(strings.TrimSpace(artist + " " + title))
	suffix := slug.Make(guid)
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	parts := []string{string(kind)}
	if base != "" {
		parts = append(parts, base)
	}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, "-")
}
