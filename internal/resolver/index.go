package resolver

import (
	"context"

	"hydrator/internal/podcastindex"
	"hydrator/internal/track"
)

// Index is the subset of the Podcast Index API the resolvers use.
type Index interface {
	PodcastByGUID(ctx context.Context, feedGUID string) (track.FeedRecord, error)
	EpisodeByGUID(ctx context.Context, itemGUID, feedGUID string, feedID int64) (track.EpisodeRecord, error)
	EpisodesByFeedID(ctx context.Context, feedID int64, limit int) ([]track.EpisodeRecord, error)
}

var _ Index = (*podcastindex.Client)(nil)
