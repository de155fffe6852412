package dedupe

import (
	"log/slog"
	"strings"

	"hydrator/internal/logging"
	"hydrator/internal/track"
)

// Weights score a track's completeness.
type Weights struct {
	Audio    int
	Artist   int
	Optional int
}

// DefaultWeights prefers playable tracks, then credited ones.
func DefaultWeights() Weights {
	return Weights{Audio: 10, Artist: 5, Optional: 1}
}

// Options configures a Merger.
type Options struct {
	KeyMode string
	Weights Weights
}

// Removal describes one track dropped in favour of a better duplicate.
type Removal struct {
	Track     track.ResolvedTrack `json:"track"`
	Entry     string              `json:"entry"`
	KeptEntry string              `json:"keptEntry"`
	Kept      track.Key           `json:"kept"`
	Key       Key                 `json:"key"`
}

// Result is the deduplicated catalog plus what changed.
type Result struct {
	Entries        []track.CatalogEntry `json:"entries"`
	Removed        []Removal            `json:"removed"`
	DroppedEntries []string             `json:"droppedEntries"`
}

// Changed reports whether the pass removed anything.
func (r Result) Changed() bool {
	return len(r.Removed) > 0 || len(r.DroppedEntries) > 0
}

// Merger collapses duplicate tracks across catalog entries.
type Merger struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Merger. Zero weights fall back to DefaultWeights and an
// unknown key mode falls back to title_artist.
func New(opts Options, logger *slog.Logger) *Merger {
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if opts.KeyMode != KeyTitle {
		opts.KeyMode = KeyTitleArtist
	}
	return &Merger{opts: opts, logger: logging.NewComponentLogger(logger, "dedupe")}
}

// Score rates how complete a track is.
func (m *Merger) Score(t track.ResolvedTrack) int {
	score := 0
	if strings.TrimSpace(t.AudioURL) != "" {
		score += m.opts.Weights.Audio
	}
	if !placeholderArtist(t.Artist) {
		score += m.opts.Weights.Artist
	}
	if strings.TrimSpace(t.ArtworkURL) != "" {
		score += m.opts.Weights.Optional
	}
	if t.DurationSeconds > 0 && t.DurationSource != track.DurationPlaceholder {
		score += m.opts.Weights.Optional
	}
	return score
}

type position struct {
	entry int
	track int
}

// Dedupe keeps the highest scoring track for every key and removes the
// rest. Ties go to the first track in catalog order. Tracks whose title is a
// positional placeholder carry no identity and are never merged. Entries
// emptied by the pass are dropped; entries that were already empty are kept.
// The input is not modified, and running Dedupe on its own output changes
// nothing.
func (m *Merger) Dedupe(entries []track.CatalogEntry) Result {
	winners := make(map[Key]position)
	for ei, entry := range entries {
		for ti, t := range entry.Tracks {
			if !mergeable(t) {
				continue
			}
			key := keyFor(t.Title, t.Artist, m.opts.KeyMode)
			best, ok := winners[key]
			if !ok || m.Score(t) > m.Score(entries[best.entry].Tracks[best.track]) {
				winners[key] = position{entry: ei, track: ti}
			}
		}
	}

	result := Result{Entries: make([]track.CatalogEntry, 0, len(entries))}
	for ei, entry := range entries {
		if len(entry.Tracks) == 0 {
			result.Entries = append(result.Entries, entry)
			continue
		}
		kept := make([]track.ResolvedTrack, 0, len(entry.Tracks))
		for ti, t := range entry.Tracks {
			if !mergeable(t) {
				kept = append(kept, t)
				continue
			}
			key := keyFor(t.Title, t.Artist, m.opts.KeyMode)
			winner := winners[key]
			if winner == (position{entry: ei, track: ti}) {
				kept = append(kept, t)
				continue
			}
			result.Removed = append(result.Removed, Removal{
				Track:     t,
				Entry:     entry.ID,
				KeptEntry: entries[winner.entry].ID,
				Kept:      entries[winner.entry].Tracks[winner.track].Key(),
				Key:       key,
			})
		}
		if len(kept) == 0 {
			result.DroppedEntries = append(result.DroppedEntries, entry.ID)
			continue
		}
		entry.Tracks = kept
		result.Entries = append(result.Entries, entry)
	}

	m.logger.Info("dedupe pass complete",
		logging.String(logging.FieldEventType, "dedupe_complete"),
		logging.String("key_mode", m.opts.KeyMode),
		logging.Int("entries", len(entries)),
		logging.Int("removed_tracks", len(result.Removed)),
		logging.Int("dropped_entries", len(result.DroppedEntries)),
	)
	return result
}

// mergeable reports whether t's title identifies the song. Generated
// "Track {n}" titles repeat across unrelated feeds.
func mergeable(t track.ResolvedTrack) bool {
	return t.TitleSource != track.TitlePlaceholder
}

func placeholderArtist(artist string) bool {
	folded := Fold(artist)
	return folded == "" || folded == Fold(track.UnknownArtist)
}
