package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"hydrator/internal/dedupe"
	"hydrator/internal/track"
)

// AddEntry stores an album or single with its tracks in order. Tracks that
// already hold a terminal status keep their stored row and membership.
func (s *Store) AddEntry(ctx context.Context, entry track.CatalogEntry) (UpsertStats, error) {
	var stats UpsertStats
	if entry.ID == "" {
		entry.ID = EntryID(entry.Kind, entry.Title, entry.Artist, entry.FeedGUID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin entry tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowString()
	if err := upsertEntry(ctx, tx, entry, now); err != nil {
		return stats, err
	}
	for i, t := range entry.Tracks {
		existing, err := loadExisting(ctx, tx, t.Key())
		if err != nil {
			return stats, err
		}
		if existing.found && existing.status.Terminal() {
			stats.Skipped++
			continue
		}
		entryID := sql.NullString{String: entry.ID, Valid: true}
		if err := execUpsertTrack(ctx, tx, t, entryID, i+1, now); err != nil {
			return stats, err
		}
		if existing.found {
			stats.Updated++
		} else {
			stats.Inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit entry: %w", err)
	}
	return stats, nil
}

// Snapshot returns every catalog entry with its member tracks, in the order
// entries were first stored. Tracks detached by a dedupe pass and tracks
// that never resolved are not members of any entry.
func (s *Store) Snapshot(ctx context.Context) ([]track.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, artist, feed_guid, kind FROM entries ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	var entries []track.CatalogEntry
	index := make(map[string]int)
	for rows.Next() {
		var entry track.CatalogEntry
		var kind string
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Artist, &entry.FeedGUID, &kind); err != nil {
			rows.Close()
			return nil, err
		}
		entry.Kind = track.EntryKind(kind)
		index[entry.ID] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	trackRows, err := s.db.QueryContext(ctx,
		"SELECT entry_id, "+trackColumns+" FROM tracks WHERE entry_id IS NOT NULL ORDER BY position, rowid")
	if err != nil {
		return nil, fmt.Errorf("list entry tracks: %w", err)
	}
	defer trackRows.Close()
	for trackRows.Next() {
		var entryID string
		t, err := scanTrack(prefixedScanner{row: trackRows, prefix: &entryID})
		if err != nil {
			return nil, err
		}
		if i, ok := index[entryID]; ok {
			entries[i].Tracks = append(entries[i].Tracks, t)
		}
	}
	return entries, trackRows.Err()
}

// ApplyDedupe writes a dedupe result in one transaction: removed tracks are
// detached from their entries and marked as duplicates of the kept track,
// and dropped entries are deleted. Track rows survive so their sticky status
// stops later runs from recreating the duplicate.
func (s *Store) ApplyDedupe(ctx context.Context, result dedupe.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dedupe tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := nowString()
	for _, removal := range result.Removed {
		key := removal.Track.Key()
		if _, err := tx.ExecContext(ctx,
			`UPDATE tracks SET entry_id = NULL, duplicate_of = ?, updated_at = ?
             WHERE feed_guid = ? AND item_guid = ? AND entry_id = ?`,
			nullableString(removal.Kept.String()), now, key.FeedGUID, key.ItemGUID, removal.Entry,
		); err != nil {
			return fmt.Errorf("detach duplicate %s: %w", key, err)
		}
	}
	for _, id := range result.DroppedEntries {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
			return fmt.Errorf("drop entry %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dedupe: %w", err)
	}
	return nil
}

func upsertEntry(ctx context.Context, tx *sql.Tx, entry track.CatalogEntry, now string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, title, artist, feed_guid, kind, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             title = excluded.title,
             artist = excluded.artist,
             updated_at = excluded.updated_at`,
		entry.ID, entry.Title, entry.Artist, entry.FeedGUID, string(entry.Kind), now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.ID, err)
	}
	return nil
}

// prefixedScanner scans one leading column before handing the rest to scanTrack.
type prefixedScanner struct {
	row    *sql.Rows
	prefix *string
}

func (p prefixedScanner) Scan(dest ...any) error {
	return p.row.Scan(append([]any{p.prefix}, dest...)...)
}
