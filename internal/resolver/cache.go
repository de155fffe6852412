package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"hydrator/internal/logging"
	"hydrator/internal/track"
)

// Backing is an optional persistent layer behind a Cache. Only positive
// results are written through; misses stay scoped to the run.
type Backing interface {
	LoadFeed(ctx context.Context, feedGUID string) (track.FeedRecord, bool, error)
	SaveFeed(ctx context.Context, feed track.FeedRecord) error
	LoadEpisode(ctx context.Context, key track.Key) (track.EpisodeRecord, bool, error)
	SaveEpisode(ctx context.Context, feedGUID string, episode track.EpisodeRecord) error
}

type feedEntry struct {
	record  track.FeedRecord
	missing bool
}

type episodeEntry struct {
	record  track.EpisodeRecord
	missing bool
}

// Cache memoizes lookups for the lifetime of one resolution run. It is safe
// for concurrent use and never evicts.
type Cache struct {
	mu       sync.Mutex
	feeds    map[string]feedEntry
	episodes map[track.Key]episodeEntry
	backing  Backing
	logger   *slog.Logger
	hits     int
	misses   int
}

// NewCache returns an empty run-scoped cache. backing may be nil. Backing
// failures are logged and treated as misses.
func NewCache(backing Backing, logger *slog.Logger) *Cache {
	return &Cache{
		feeds:    make(map[string]feedEntry),
		episodes: make(map[track.Key]episodeEntry),
		backing:  backing,
		logger:   logging.NewComponentLogger(logger, "lookup-cache"),
	}
}

// CacheStats reports cache effectiveness for logging.
type CacheStats struct {
	Feeds    int
	Episodes int
	Hits     int
	Misses   int
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Feeds: len(c.feeds), Episodes: len(c.episodes), Hits: c.hits, Misses: c.misses}
}

// Feed returns the cached outcome for feedGUID. ok is false when nothing is
// known; missing is true when the index reported the feed as not found.
func (c *Cache) Feed(ctx context.Context, feedGUID string) (record track.FeedRecord, missing bool, ok bool) {
	feedGUID = track.CanonicalGUID(feedGUID)
	c.mu.Lock()
	entry, found := c.feeds[feedGUID]
	if found {
		c.hits++
	}
	c.mu.Unlock()
	if found {
		return entry.record, entry.missing, true
	}
	if c.backing != nil {
		record, found, err := c.backing.LoadFeed(ctx, feedGUID)
		if err != nil {
			c.backingFailed(ctx, "load", err)
		} else if found {
			c.mu.Lock()
			c.feeds[feedGUID] = feedEntry{record: record}
			c.hits++
			c.mu.Unlock()
			return record, false, true
		}
	}
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return track.FeedRecord{}, false, false
}

// PutFeed records a found feed.
func (c *Cache) PutFeed(ctx context.Context, feedGUID string, record track.FeedRecord) {
	feedGUID = track.CanonicalGUID(feedGUID)
	c.mu.Lock()
	c.feeds[feedGUID] = feedEntry{record: record}
	c.mu.Unlock()
	if c.backing != nil {
		if err := c.backing.SaveFeed(ctx, record); err != nil {
			c.backingFailed(ctx, "save", err)
		}
	}
}

// PutFeedMissing records that the index has no such feed.
func (c *Cache) PutFeedMissing(feedGUID string) {
	c.mu.Lock()
	c.feeds[track.CanonicalGUID(feedGUID)] = feedEntry{missing: true}
	c.mu.Unlock()
}

// Episode returns the cached outcome for an item within a feed.
func (c *Cache) Episode(ctx context.Context, feedGUID, itemGUID string) (record track.EpisodeRecord, missing bool, ok bool) {
	key := episodeKey(feedGUID, itemGUID)
	c.mu.Lock()
	entry, found := c.episodes[key]
	if found {
		c.hits++
	}
	c.mu.Unlock()
	if found {
		return entry.record, entry.missing, true
	}
	if c.backing != nil {
		record, found, err := c.backing.LoadEpisode(ctx, key)
		if err != nil {
			c.backingFailed(ctx, "load", err)
		} else if found {
			c.mu.Lock()
			c.episodes[key] = episodeEntry{record: record}
			c.hits++
			c.mu.Unlock()
			return record, false, true
		}
	}
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return track.EpisodeRecord{}, false, false
}

// PutEpisode records a found episode.
func (c *Cache) PutEpisode(ctx context.Context, feedGUID string, record track.EpisodeRecord) {
	c.putEpisodes(ctx, feedGUID, []track.EpisodeRecord{record}, true)
}

// PutEpisodeMissing records that the item is absent from the feed.
func (c *Cache) PutEpisodeMissing(feedGUID, itemGUID string) {
	c.mu.Lock()
	c.episodes[episodeKey(feedGUID, itemGUID)] = episodeEntry{missing: true}
	c.mu.Unlock()
}

// putEpisodes stores listed episodes. Existing entries are kept unless
// overwrite is set, so a listing never hides an earlier direct lookup.
func (c *Cache) putEpisodes(ctx context.Context, feedGUID string, records []track.EpisodeRecord, overwrite bool) {
	stored := make([]track.EpisodeRecord, 0, len(records))
	c.mu.Lock()
	for _, record := range records {
		if strings.TrimSpace(record.ItemGUID) == "" {
			continue
		}
		key := episodeKey(feedGUID, record.ItemGUID)
		if existing, found := c.episodes[key]; found && !overwrite && !existing.missing {
			continue
		}
		c.episodes[key] = episodeEntry{record: record}
		stored = append(stored, record)
	}
	c.mu.Unlock()
	if c.backing == nil {
		return
	}
	for _, record := range stored {
		if err := c.backing.SaveEpisode(ctx, track.CanonicalGUID(feedGUID), record); err != nil {
			c.backingFailed(ctx, "save", err)
			return
		}
	}
}

func (c *Cache) backingFailed(ctx context.Context, op string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "lookup cache "+op+" failed", "lookup_cache_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run hydrator cache clear or disable [cache] persistent"),
		logging.String(logging.FieldImpact, "lookups fall back to the index"),
	)
}

func episodeKey(feedGUID, itemGUID string) track.Key {
	return track.Key{FeedGUID: track.CanonicalGUID(feedGUID), ItemGUID: normalizeItemGUID(itemGUID)}
}

// normalizeItemGUID folds case so listings match references regardless of
// how the publisher capitalised the GUID.
func normalizeItemGUID(guid string) string {
	return strings.ToLower(strings.TrimSpace(guid))
}
