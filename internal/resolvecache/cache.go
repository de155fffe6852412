package resolvecache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hydrator/internal/resolver"
	"hydrator/internal/track"
)

//go:embed schema.sql
var schemaSQL string

// Cache keeps found feeds and episodes across runs. It never stores
// not-found answers, so a record that appears in the index later is picked
// up by the next run.
type Cache struct {
	db   *sql.DB
	path string
	ttl  time.Duration
	now  func() time.Time
}

var _ resolver.Backing = (*Cache)(nil)

// Options tunes the cache.
type Options struct {
	// TTL bounds how long entries are trusted. Zero keeps them forever.
	TTL time.Duration
	Now func() time.Time
}

// Open creates or opens the cache database at path.
func Open(ctx context.Context, path string, opts Options) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{db: db, path: path, ttl: opts.TTL, now: now}, nil
}

// Path returns the database location.
func (c *Cache) Path() string { return c.path }

// Close releases the database.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// LoadFeed returns a cached feed.
func (c *Cache) LoadFeed(ctx context.Context, feedGUID string) (track.FeedRecord, bool, error) {
	var (
		feed     track.FeedRecord
		cachedAt string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT feed_guid, feed_id, title, author, artwork_url, origin_url, cached_at FROM feeds WHERE feed_guid = ?`,
		feedGUID,
	).Scan(&feed.FeedGUID, &feed.ID, &feed.Title, &feed.Author, &feed.ArtworkURL, &feed.OriginURL, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return track.FeedRecord{}, false, nil
	}
	if err != nil {
		return track.FeedRecord{}, false, fmt.Errorf("load cached feed %s: %w", feedGUID, err)
	}
	if c.expired(cachedAt) {
		return track.FeedRecord{}, false, nil
	}
	return feed, true, nil
}

// SaveFeed stores a found feed.
func (c *Cache) SaveFeed(ctx context.Context, feed track.FeedRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO feeds (feed_guid, feed_id, title, author, artwork_url, origin_url, cached_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(feed_guid) DO UPDATE SET
             feed_id = excluded.feed_id, title = excluded.title, author = excluded.author,
             artwork_url = excluded.artwork_url, origin_url = excluded.origin_url, cached_at = excluded.cached_at`,
		feed.FeedGUID, feed.ID, feed.Title, feed.Author, feed.ArtworkURL, feed.OriginURL, c.stamp(),
	)
	if err != nil {
		return fmt.Errorf("save cached feed %s: %w", feed.FeedGUID, err)
	}
	return nil
}

// LoadEpisode returns a cached episode. key.ItemGUID is compared
// case-insensitively.
func (c *Cache) LoadEpisode(ctx context.Context, key track.Key) (track.EpisodeRecord, bool, error) {
	var (
		ep       track.EpisodeRecord
		cachedAt string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT guid, feed_id, title, author, audio_url, artwork_url, duration_seconds, cached_at
         FROM episodes WHERE feed_guid = ? AND item_guid = ?`,
		key.FeedGUID, itemKey(key.ItemGUID),
	).Scan(&ep.ItemGUID, &ep.FeedID, &ep.Title, &ep.Author, &ep.AudioURL, &ep.ArtworkURL, &ep.DurationSeconds, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return track.EpisodeRecord{}, false, nil
	}
	if err != nil {
		return track.EpisodeRecord{}, false, fmt.Errorf("load cached episode %s: %w", key, err)
	}
	if c.expired(cachedAt) {
		return track.EpisodeRecord{}, false, nil
	}
	return ep, true, nil
}

// SaveEpisode stores a found episode under its feed.
func (c *Cache) SaveEpisode(ctx context.Context, feedGUID string, ep track.EpisodeRecord) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO episodes (feed_guid, item_guid, feed_id, guid, title, author, audio_url, artwork_url, duration_seconds, cached_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(feed_guid, item_guid) DO UPDATE SET
             feed_id = excluded.feed_id, guid = excluded.guid, title = excluded.title, author = excluded.author,
             audio_url = excluded.audio_url, artwork_url = excluded.artwork_url,
             duration_seconds = excluded.duration_seconds, cached_at = excluded.cached_at`,
		feedGUID, itemKey(ep.ItemGUID), ep.FeedID, ep.ItemGUID, ep.Title, ep.Author, ep.AudioURL, ep.ArtworkURL, ep.DurationSeconds, c.stamp(),
	)
	if err != nil {
		return fmt.Errorf("save cached episode %s/%s: %w", feedGUID, ep.ItemGUID, err)
	}
	return nil
}

// Stats counts cached rows.
type Stats struct {
	Feeds    int `json:"feeds"`
	Episodes int `json:"episodes"`
}

// Stats reports how many feeds and episodes are cached.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM feeds").Scan(&stats.Feeds); err != nil {
		return stats, fmt.Errorf("count feeds: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM episodes").Scan(&stats.Episodes); err != nil {
		return stats, fmt.Errorf("count episodes: %w", err)
	}
	return stats, nil
}

// Clear removes every cached row and returns what was removed.
func (c *Cache) Clear(ctx context.Context) (Stats, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return stats, err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin clear tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"feeds", "episodes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return stats, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit clear: %w", err)
	}
	return stats, nil
}

func (c *Cache) stamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

func (c *Cache) expired(cachedAt string) bool {
	if c.ttl <= 0 {
		return false
	}
	at, err := time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return true
	}
	return c.now().Sub(at) > c.ttl
}

func itemKey(guid string) string {
	return strings.ToLower(strings.TrimSpace(guid))
}
