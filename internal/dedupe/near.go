package dedupe

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"hydrator/internal/track"
)

// NearDuplicate pairs two distinct keys whose titles are within a small
// edit distance for the same artist.
type NearDuplicate struct {
	A        Key `json:"a"`
	B        Key `json:"b"`
	Distance int `json:"distance"`
}

// NearDuplicates reports likely duplicates that exact key matching misses,
// such as typos. It only reports; nothing is merged. maxDistance <= 0
// disables the report.
func NearDuplicates(entries []track.CatalogEntry, maxDistance int) []NearDuplicate {
	if maxDistance <= 0 {
		return nil
	}
	byArtist := make(map[string][]Key)
	seen := make(map[Key]bool)
	for _, entry := range entries {
		for _, t := range entry.Tracks {
			if !mergeable(t) {
				continue
			}
			key := keyFor(t.Title, t.Artist, KeyTitleArtist)
			if seen[key] || key.Title == "" {
				continue
			}
			seen[key] = true
			byArtist[key.Artist] = append(byArtist[key.Artist], key)
		}
	}

	var out []NearDuplicate
	for _, keys := range byArtist {
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				d := levenshtein.ComputeDistance(keys[i].Title, keys[j].Title)
				if d <= maxDistance {
					out = append(out, NearDuplicate{A: keys[i], B: keys[j], Distance: d})
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].A.String() != out[j].A.String() {
			return out[i].A.String() < out[j].A.String()
		}
		return out[i].B.String() < out[j].B.String()
	})
	return out
}
