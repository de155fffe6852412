package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hydrator/internal/track"
)

// UpsertStats counts what UpsertTracks did.
type UpsertStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

const upsertTrackSQL = `INSERT INTO tracks (
    feed_guid, item_guid, entry_id, position, title, title_source, artist, audio_url, artwork_url,
    duration_seconds, duration_source, status, feed_title, error_message, attempts,
    resolved_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(feed_guid, item_guid) DO UPDATE SET
    entry_id = excluded.entry_id,
    position = excluded.position,
    title = excluded.title,
    title_source = excluded.title_source,
    artist = excluded.artist,
    audio_url = excluded.audio_url,
    artwork_url = excluded.artwork_url,
    duration_seconds = excluded.duration_seconds,
    duration_source = excluded.duration_source,
    status = excluded.status,
    feed_title = excluded.feed_title,
    error_message = excluded.error_message,
    attempts = tracks.attempts + excluded.attempts,
    resolved_at = excluded.resolved_at,
    updated_at = excluded.updated_at`

type existingTrack struct {
	found    bool
	status   track.Status
	entryID  sql.NullString
	position int
}

// UpsertTracks stores resolution outcomes keyed by (feedGuid, itemGuid).
// Rows already resolved or unfindable are left untouched, as are outcomes of
// malformed references. A track resolved for the first time becomes a single
// in the catalog.
func (s *Store) UpsertTracks(ctx context.Context, tracks []track.ResolvedTrack) (UpsertStats, error) {
	var stats UpsertStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowString()
	for _, t := range tracks {
		if t.Reference().Validate() != nil {
			stats.Skipped++
			continue
		}
		existing, err := loadExisting(ctx, tx, t.Key())
		if err != nil {
			return stats, err
		}
		if existing.found && existing.status.Terminal() {
			stats.Skipped++
			continue
		}

		entryID := existing.entryID
		position := existing.position
		if !entryID.Valid && t.Status == track.StatusResolved {
			id := EntryID(track.KindSingle, t.Title, t.Artist, t.ItemGUID)
			entry := track.CatalogEntry{ID: id, Title: t.Title, Artist: t.Artist, FeedGUID: t.FeedGUID, Kind: track.KindSingle}
			if err := upsertEntry(ctx, tx, entry, now); err != nil {
				return stats, err
			}
			entryID = sql.NullString{String: id, Valid: true}
			if position, err = nextPosition(ctx, tx, id); err != nil {
				return stats, err
			}
		}

		if err := execUpsertTrack(ctx, tx, t, entryID, position, now); err != nil {
			return stats, err
		}
		if existing.found {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit upsert: %w", err)
	}
	return stats, nil
}

// LookupTracks returns stored outcomes for the given keys. Unknown keys are
// absent from the result.
func (s *Store) LookupTracks(ctx context.Context, keys []track.Key) (map[track.Key]track.ResolvedTrack, error) {
	out := make(map[track.Key]track.ResolvedTrack, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	stmt, err := s.db.PrepareContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE feed_guid = ? AND item_guid = ?")
	if err != nil {
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		t, err := scanTrack(stmt.QueryRowContext(ctx, key.FeedGUID, key.ItemGUID))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup track %s: %w", key, err)
		}
		out[key] = t
	}
	return out, nil
}

// TrackFilter narrows ListTracks.
type TrackFilter struct {
	Statuses []track.Status
}

// ListTracks returns stored tracks ordered by feed and item GUID.
func (s *Store) ListTracks(ctx context.Context, filter TrackFilter) ([]track.ResolvedTrack, error) {
	query := "SELECT " + trackColumns + " FROM tracks"
	args := make([]any, 0, len(filter.Statuses))
	if len(filter.Statuses) > 0 {
		query += " WHERE status IN (?" + strings.Repeat(", ?", len(filter.Statuses)-1) + ")"
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY feed_guid, item_guid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []track.ResolvedTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Summary counts stored tracks by status.
func (s *Store) Summary(ctx context.Context) (track.Summary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM tracks GROUP BY status")
	if err != nil {
		return track.Summary{}, fmt.Errorf("summarize tracks: %w", err)
	}
	defer rows.Close()

	var summary track.Summary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return track.Summary{}, err
		}
		parsed, err := track.ParseStatus(status)
		if err != nil {
			return track.Summary{}, err
		}
		switch parsed {
		case track.StatusResolved:
			summary.Resolved = count
		case track.StatusUnfindable:
			summary.Unfindable = count
		default:
			summary.Unresolved = count
		}
		summary.Total += count
	}
	return summary, rows.Err()
}

func loadExisting(ctx context.Context, tx *sql.Tx, key track.Key) (existingTrack, error) {
	var (
		status string
		out    existingTrack
	)
	err := tx.QueryRowContext(ctx,
		"SELECT status, entry_id, position FROM tracks WHERE feed_guid = ? AND item_guid = ?",
		key.FeedGUID, key.ItemGUID,
	).Scan(&status, &out.entryID, &out.position)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("load track %s: %w", key, err)
	}
	out.found = true
	out.status = track.Status(status)
	return out, nil
}

func execUpsertTrack(ctx context.Context, tx *sql.Tx, t track.ResolvedTrack, entryID sql.NullString, position int, now string) error {
	var entry any
	if entryID.Valid {
		entry = entryID.String
	}
	_, err := tx.ExecContext(ctx, upsertTrackSQL,
		t.FeedGUID,
		t.ItemGUID,
		entry,
		position,
		t.Title,
		string(t.TitleSource),
		t.Artist,
		t.AudioURL,
		t.ArtworkURL,
		t.DurationSeconds,
		string(t.DurationSource),
		string(t.Status),
		t.FeedTitle,
		t.Error,
		t.Attempts,
		formatTime(t.ResolvedAt),
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert track %s: %w", t.Key(), err)
	}
	return nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, entryID string) (int, error) {
	var position int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), 0) + 1 FROM tracks WHERE entry_id = ?", entryID,
	).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("next position in %s: %w", entryID, err)
	}
	return position, nil
}
