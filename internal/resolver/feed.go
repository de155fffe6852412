package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"hydrator/internal/logging"
	"hydrator/internal/podcastindex"
	"hydrator/internal/track"
)

// FeedResolver maps a feed GUID to the index's feed record.
type FeedResolver struct {
	index  Index
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
}

// NewFeedResolver builds a resolver over index. A nil cache gets a private
// run-scoped one.
func NewFeedResolver(index Index, cache *Cache, logger *slog.Logger) (*FeedResolver, error) {
	if index == nil {
		return nil, errors.New("resolver: index is required")
	}
	if cache == nil {
		cache = NewCache(nil, logger)
	}
	return &FeedResolver{
		index:  index,
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "feed-resolver"),
	}, nil
}

// ResolveFeed returns the feed for feedGUID. A not-found answer is cached for
// the run and returned as podcastindex.ErrNotFound on every later call.
// Transient failures are not cached.
func (r *FeedResolver) ResolveFeed(ctx context.Context, feedGUID string) (track.FeedRecord, error) {
	feedGUID = track.CanonicalGUID(feedGUID)
	if feedGUID == "" {
		return track.FeedRecord{}, fmt.Errorf("%w: feed guid is empty", track.ErrMalformedReference)
	}
	if record, missing, ok := r.cache.Feed(ctx, feedGUID); ok {
		if missing {
			return track.FeedRecord{}, fmt.Errorf("%w: feed %s (cached)", podcastindex.ErrNotFound, feedGUID)
		}
		return record, nil
	}

	value, err, shared := r.group.Do(feedGUID, func() (any, error) {
		record, err := r.index.PodcastByGUID(ctx, feedGUID)
		switch {
		case err == nil:
			r.cache.PutFeed(ctx, feedGUID, record)
		case podcastindex.IsNotFound(err):
			r.cache.PutFeedMissing(feedGUID)
		}
		return record, err
	})
	logger := logging.WithContext(ctx, r.logger)
	if err != nil {
		logger.Debug("feed lookup failed",
			logging.String(logging.FieldFeedGUID, feedGUID),
			logging.String("kind", podcastindex.Classify(err)),
			logging.Error(err),
		)
		return track.FeedRecord{}, err
	}
	record := value.(track.FeedRecord)
	logger.Debug("feed resolved",
		logging.String(logging.FieldFeedGUID, feedGUID),
		logging.Int64("feed_id", record.ID),
		logging.Bool("shared", shared),
	)
	return record, nil
}
