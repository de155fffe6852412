package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arunsworld/nursery"
	"github.com/google/uuid"

	"hydrator/internal/logging"
	"hydrator/internal/normalize"
	"hydrator/internal/retry"
	"hydrator/internal/track"
)

// FeedSource resolves feed GUIDs.
type FeedSource interface {
	ResolveFeed(ctx context.Context, feedGUID string) (track.FeedRecord, error)
}

// EpisodeSource resolves items within a feed.
type EpisodeSource interface {
	ResolveEpisode(ctx context.Context, feed track.FeedRecord, itemGUID string) (track.EpisodeRecord, error)
}

// Scheduler dispatches references to the resolvers in fixed-size batches.
type Scheduler struct {
	feeds    FeedSource
	episodes EpisodeSource
	opts     Options
	logger   *slog.Logger
}

// New validates the collaborators and returns a Scheduler.
func New(feeds FeedSource, episodes EpisodeSource, opts Options, logger *slog.Logger) (*Scheduler, error) {
	if feeds == nil || episodes == nil {
		return nil, errors.New("scheduler: feed and episode resolvers are required")
	}
	return &Scheduler{
		feeds:    feeds,
		episodes: episodes,
		opts:     opts.normalized(),
		logger:   logging.NewComponentLogger(logger, "scheduler"),
	}, nil
}

// Item is a reference with its 1-based position in its playlist. The
// position only feeds the fallback title of untitled tracks.
type Item struct {
	Reference track.Reference
	Ordinal   int
}

// Items numbers refs by their order in the slice.
func Items(refs []track.Reference) []Item {
	items := make([]Item, len(refs))
	for i, ref := range refs {
		items[i] = Item{Reference: ref, Ordinal: i + 1}
	}
	return items
}

type job struct {
	ref     track.Reference
	ordinal int
	slots   []int
}

// Run resolves every reference and returns one outcome per input.
// Per-reference failures are recorded on the outcome. When ctx is cancelled
// the report is still complete: references that were never dispatched are
// marked unresolved and the context error is returned alongside the report.
func (s *Scheduler) Run(ctx context.Context, refs []track.Reference) (Report, error) {
	return s.RunItems(ctx, Items(refs))
}

// RunItems is Run for references that carry their playlist position.
func (s *Scheduler) RunItems(ctx context.Context, items []Item) (Report, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, s.logger)
	report := Report{RunID: runID, Started: time.Now(), Tracks: make([]track.ResolvedTrack, len(items))}

	jobs := s.plan(ctx, items, report.Tracks, &report.Reused)
	logger.Info("resolution run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("references", len(items)),
		logging.Int("dispatch", len(jobs)),
		logging.Int("reused", report.Reused),
		logging.Int("batch_size", s.opts.BatchSize),
	)

	next := 0
	for start := 0; start < len(jobs); start += s.opts.BatchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 && s.opts.InterBatchDelay > 0 {
			if err := s.opts.Sleep(ctx, s.opts.InterBatchDelay); err != nil {
				break
			}
		}
		end := min(start+s.opts.BatchSize, len(jobs))
		stat := s.runBatch(ctx, len(report.Batches), jobs[start:end], report.Tracks)
		report.Batches = append(report.Batches, stat)
		next = end
		logger.Debug("batch complete",
			logging.Int("batch", stat.Index),
			logging.Int("size", stat.Size),
			logging.Duration("elapsed", stat.Elapsed),
		)
	}

	runErr := ctx.Err()
	if next < len(jobs) {
		cause := runErr
		if cause == nil {
			cause = context.Canceled
		}
		for _, j := range jobs[next:] {
			outcome := normalize.Outcome(j.ref, track.FeedRecord{}, track.EpisodeRecord{},
				fmt.Errorf("not dispatched: %w", cause), j.ordinal, s.opts.Normalize)
			fill(report.Tracks, j.slots, outcome)
		}
		report.Cancelled = true
		logging.WarnWithContext(logger, "resolution run cancelled", "run_cancelled",
			logging.Int("undispatched", len(jobs)-next),
			logging.String(logging.FieldErrorHint, "re-run resolve to pick up unresolved references"),
			logging.String(logging.FieldImpact, "remaining references left unresolved"),
		)
	}

	report.Summary = track.Summarize(report.Tracks)
	report.Elapsed = time.Since(report.Started)
	logger.Info("resolution run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("resolved", report.Summary.Resolved),
		logging.Int("unresolved", report.Summary.Unresolved),
		logging.Int("unfindable", report.Summary.Unfindable),
		logging.Int("batches", len(report.Batches)),
		logging.Duration("elapsed", report.Elapsed),
	)
	if report.Cancelled && runErr != nil {
		return report, runErr
	}
	return report, nil
}

// plan fills outcomes that need no network call and returns the jobs to
// dispatch, one per distinct valid reference.
func (s *Scheduler) plan(ctx context.Context, items []Item, out []track.ResolvedTrack, reused *int) []job {
	var jobs []job
	byKey := make(map[track.Key]int)
	for i, item := range items {
		raw := item.Reference
		ordinal := item.Ordinal
		if ordinal <= 0 {
			ordinal = i + 1
		}
		if err := raw.Validate(); err != nil {
			out[i] = normalize.Outcome(raw, track.FeedRecord{}, track.EpisodeRecord{}, err, ordinal, s.opts.Normalize)
			continue
		}
		ref := raw.Canonical()
		if idx, ok := byKey[ref.Key()]; ok {
			jobs[idx].slots = append(jobs[idx].slots, i)
			continue
		}
		byKey[ref.Key()] = len(jobs)
		jobs = append(jobs, job{ref: ref, ordinal: ordinal, slots: []int{i}})
	}
	if s.opts.Prior == nil || len(jobs) == 0 {
		return jobs
	}

	keys := make([]track.Key, 0, len(jobs))
	for _, j := range jobs {
		keys = append(keys, j.ref.Key())
	}
	prior, err := s.opts.Prior.LookupTracks(ctx, keys)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "prior outcome lookup failed", "prior_lookup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the catalog database"),
			logging.String(logging.FieldImpact, "all references will be resolved again"),
		)
		return jobs
	}
	pending := jobs[:0]
	for _, j := range jobs {
		if stored, ok := prior[j.ref.Key()]; ok && stored.Status.Terminal() {
			fill(out, j.slots, stored)
			*reused += len(j.slots)
			continue
		}
		pending = append(pending, j)
	}
	return pending
}

func (s *Scheduler) runBatch(ctx context.Context, index int, batch []job, out []track.ResolvedTrack) BatchStat {
	stat := BatchStat{Index: index, Size: len(batch), Started: time.Now()}
	queue := make(chan job, len(batch))
	for _, j := range batch {
		queue <- j
	}
	close(queue)

	workers := make([]nursery.ConcurrentJob, min(s.opts.BatchSize, len(batch)))
	for w := range workers {
		workers[w] = func(ctx context.Context, _ chan error) {
			for j := range queue {
				fill(out, j.slots, s.resolve(ctx, j))
			}
		}
	}
	// Workers never report errors; per-reference failures live on the outcome.
	_ = nursery.RunConcurrentlyWithContext(ctx, workers...)
	stat.Elapsed = time.Since(stat.Started)
	return stat
}

func (s *Scheduler) resolve(ctx context.Context, j job) track.ResolvedTrack {
	logger := logging.WithContext(ctx, s.logger).With(logging.Reference(j.ref.FeedGUID, j.ref.ItemGUID))
	policy := s.opts.retryPolicy(func(attempt int, delay time.Duration, err error) {
		logger.Debug("retrying lookup",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	})

	var feed track.FeedRecord
	feedAttempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var lookupErr error
		feed, lookupErr = s.feeds.ResolveFeed(ctx, j.ref.FeedGUID)
		return lookupErr
	})
	attempts := feedAttempts

	var episode track.EpisodeRecord
	if err == nil {
		var episodeAttempts int
		episodeAttempts, err = retry.Do(ctx, policy, func(ctx context.Context) error {
			var lookupErr error
			episode, lookupErr = s.episodes.ResolveEpisode(ctx, feed, j.ref.ItemGUID)
			return lookupErr
		})
		attempts += episodeAttempts
	}

	outcome := normalize.Outcome(j.ref, feed, episode, err, j.ordinal, s.opts.Normalize)
	outcome.Attempts = attempts
	if outcome.Status == track.StatusUnresolved {
		logging.WarnWithContext(logger, "reference left unresolved", "reference_unresolved",
			logging.String("reason", normalize.Reason(err)),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldErrorHint, outcome.Error),
			logging.String(logging.FieldImpact, "track stays unresolved until the next run"),
		)
	}
	return outcome
}

func fill(out []track.ResolvedTrack, slots []int, outcome track.ResolvedTrack) {
	for _, i := range slots {
		out[i] = outcome
	}
}
