package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"hydrator/internal/logging"
	"hydrator/internal/podcastindex"
	"hydrator/internal/track"
)

// DefaultEpisodeScanMax bounds the fallback feed listing.
const DefaultEpisodeScanMax = 100

// EpisodeResolver maps an item GUID within a resolved feed to its episode.
type EpisodeResolver struct {
	index   Index
	cache   *Cache
	scanMax int
	logger  *slog.Logger
	group   singleflight.Group
	lists   singleflight.Group

	mu     sync.Mutex
	listed map[int64][]track.EpisodeRecord
}

// NewEpisodeResolver builds a resolver over index. scanMax <= 0 selects
// DefaultEpisodeScanMax.
func NewEpisodeResolver(index Index, cache *Cache, scanMax int, logger *slog.Logger) (*EpisodeResolver, error) {
	if index == nil {
		return nil, errors.New("resolver: index is required")
	}
	if cache == nil {
		cache = NewCache(nil, logger)
	}
	if scanMax <= 0 {
		scanMax = DefaultEpisodeScanMax
	}
	return &EpisodeResolver{
		index:   index,
		cache:   cache,
		scanMax: scanMax,
		logger:  logging.NewComponentLogger(logger, "episode-resolver"),
		listed:  make(map[int64][]track.EpisodeRecord),
	}, nil
}

// ResolveEpisode finds itemGUID within feed. It first asks the index for the
// episode directly; when that reports not found it scans the feed's most
// recent episodes. Rate limit and transient errors from the direct lookup
// are returned without attempting the scan.
func (r *EpisodeResolver) ResolveEpisode(ctx context.Context, feed track.FeedRecord, itemGUID string) (track.EpisodeRecord, error) {
	itemGUID = track.CanonicalGUID(itemGUID)
	if itemGUID == "" {
		return track.EpisodeRecord{}, fmt.Errorf("%w: item guid is empty", track.ErrMalformedReference)
	}
	if record, missing, ok := r.cache.Episode(ctx, feed.FeedGUID, itemGUID); ok {
		if missing {
			return track.EpisodeRecord{}, fmt.Errorf("%w: episode %s (cached)", podcastindex.ErrNotFound, itemGUID)
		}
		return record, nil
	}

	key := episodeKey(feed.FeedGUID, itemGUID).String()
	value, err, _ := r.group.Do(key, func() (any, error) {
		return r.lookup(ctx, feed, itemGUID)
	})
	if err != nil {
		return track.EpisodeRecord{}, err
	}
	return value.(track.EpisodeRecord), nil
}

func (r *EpisodeResolver) lookup(ctx context.Context, feed track.FeedRecord, itemGUID string) (track.EpisodeRecord, error) {
	logger := logging.WithContext(ctx, r.logger).With(logging.Reference(feed.FeedGUID, itemGUID))

	record, err := r.index.EpisodeByGUID(ctx, itemGUID, feed.FeedGUID, feed.ID)
	if err == nil {
		r.cache.PutEpisode(ctx, feed.FeedGUID, record)
		logger.Debug("episode resolved", logging.String("strategy", "byguid"))
		return record, nil
	}
	if !podcastindex.IsNotFound(err) {
		return track.EpisodeRecord{}, err
	}
	if feed.ID <= 0 {
		r.cache.PutEpisodeMissing(feed.FeedGUID, itemGUID)
		return track.EpisodeRecord{}, err
	}

	episodes, err := r.listFeed(ctx, feed)
	if err != nil {
		if podcastindex.IsNotFound(err) {
			r.cache.PutEpisodeMissing(feed.FeedGUID, itemGUID)
		}
		return track.EpisodeRecord{}, err
	}
	want := normalizeItemGUID(itemGUID)
	for _, episode := range episodes {
		if normalizeItemGUID(episode.ItemGUID) == want {
			logger.Debug("episode resolved",
				logging.String("strategy", "feed scan"),
				logging.Int("scanned", len(episodes)),
			)
			return episode, nil
		}
	}
	r.cache.PutEpisodeMissing(feed.FeedGUID, itemGUID)
	logger.Debug("episode not found in feed listing", logging.Int("scanned", len(episodes)))
	return track.EpisodeRecord{}, fmt.Errorf("%w: episode %s not among %d most recent items of feed %d",
		podcastindex.ErrNotFound, itemGUID, len(episodes), feed.ID)
}

// listFeed fetches the feed listing once per feed for the resolver's
// lifetime and caches every entry so sibling references skip their own
// lookups. Failed listings are not remembered.
func (r *EpisodeResolver) listFeed(ctx context.Context, feed track.FeedRecord) ([]track.EpisodeRecord, error) {
	r.mu.Lock()
	episodes, ok := r.listed[feed.ID]
	r.mu.Unlock()
	if ok {
		return episodes, nil
	}
	value, err, _ := r.lists.Do(strconv.FormatInt(feed.ID, 10), func() (any, error) {
		episodes, err := r.index.EpisodesByFeedID(ctx, feed.ID, r.scanMax)
		if err != nil {
			return nil, err
		}
		if len(episodes) > r.scanMax {
			episodes = episodes[:r.scanMax]
		}
		r.cache.putEpisodes(ctx, feed.FeedGUID, episodes, false)
		r.mu.Lock()
		r.listed[feed.ID] = episodes
		r.mu.Unlock()
		return episodes, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]track.EpisodeRecord), nil
}
