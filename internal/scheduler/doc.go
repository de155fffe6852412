// Package scheduler resolves remote item references in fixed-size batches
// with a bounded worker pool, retry with backoff, and a pause between batches.
package scheduler
