package scheduler

import (
	"time"

	"hydrator/internal/track"
)

// BatchStat describes one dispatched batch.
type BatchStat struct {
	Index   int           `json:"index"`
	Size    int           `json:"size"`
	Started time.Time     `json:"started"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report is the result of a run. Tracks holds one outcome per input
// reference in input order; duplicate references share an outcome.
type Report struct {
	RunID     string                `json:"runId"`
	Tracks    []track.ResolvedTrack `json:"tracks"`
	Summary   track.Summary         `json:"summary"`
	Batches   []BatchStat           `json:"batches"`
	Started   time.Time             `json:"started"`
	Elapsed   time.Duration         `json:"elapsed"`
	Reused    int                   `json:"reused"`
	Cancelled bool                  `json:"cancelled"`
}

// ByKey indexes the outcomes by reference.
func (r Report) ByKey() map[track.Key]track.ResolvedTrack {
	out := make(map[track.Key]track.ResolvedTrack, len(r.Tracks))
	for _, t := range r.Tracks {
		out[t.Key()] = t
	}
	return out
}

// Unique returns one outcome per distinct reference, in first-seen order.
func (r Report) Unique() []track.ResolvedTrack {
	seen := make(map[track.Key]struct{}, len(r.Tracks))
	out := make([]track.ResolvedTrack, 0, len(r.Tracks))
	for _, t := range r.Tracks {
		if _, ok := seen[t.Key()]; ok {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	return out
}
