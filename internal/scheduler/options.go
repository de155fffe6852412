package scheduler

import (
	"context"
	"time"

	"hydrator/internal/normalize"
	"hydrator/internal/retry"
	"hydrator/internal/track"
)

// Defaults for Options.
const (
	DefaultBatchSize       = 5
	DefaultInterBatchDelay = time.Second
	DefaultMaxRetries      = retry.DefaultMaxRetries
	DefaultBaseBackoff     = retry.DefaultBase
	DefaultMaxBackoff      = retry.DefaultMax
)

// PriorLookup returns previously stored outcomes for keys. Terminal ones are
// reused without contacting the index.
type PriorLookup interface {
	LookupTracks(ctx context.Context, keys []track.Key) (map[track.Key]track.ResolvedTrack, error)
}

// Options controls batching and retries.
type Options struct {
	BatchSize       int
	InterBatchDelay time.Duration
	MaxRetries      int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	Prior           PriorLookup
	Normalize       normalize.Options
	// Sleep is used for inter-batch delays and retry backoff.
	Sleep retry.Sleeper
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:       DefaultBatchSize,
		InterBatchDelay: DefaultInterBatchDelay,
		MaxRetries:      DefaultMaxRetries,
		BaseBackoff:     DefaultBaseBackoff,
		MaxBackoff:      DefaultMaxBackoff,
	}
}

func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = 0
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.Sleep == nil {
		o.Sleep = retry.SleepWithContext
	}
	return o
}

func (o Options) retryPolicy(onRetry func(int, time.Duration, error)) retry.Policy {
	return retry.Policy{
		MaxRetries: o.MaxRetries,
		Base:       o.BaseBackoff,
		Max:        o.MaxBackoff,
		Sleep:      o.Sleep,
		OnRetry:    onRetry,
	}
}
