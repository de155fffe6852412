package track

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrMalformedReference marks a remote item reference that cannot be sent to the index.
var ErrMalformedReference = errors.New("malformed reference")

const maxGUIDLength = 256

// Reference identifies a track hosted in another feed.
type Reference struct {
	FeedGUID string `json:"feedGuid" yaml:"feedGuid"`
	ItemGUID string `json:"itemGuid" yaml:"itemGuid"`
}

// Key identifies a reference, a resolved track, or a cache entry.
type Key struct {
	FeedGUID string
	ItemGUID string
}

func (k Key) String() string { return k.FeedGUID + "/" + k.ItemGUID }

// Key returns the (feedGuid, itemGuid) identity of the reference.
func (r Reference) Key() Key { return Key{FeedGUID: r.FeedGUID, ItemGUID: r.ItemGUID} }

// Validate reports ErrMalformedReference when either GUID is unusable.
func (r Reference) Validate() error {
	if err := validateGUID(r.FeedGUID); err != nil {
		return fmt.Errorf("%w: feed guid %v", ErrMalformedReference, err)
	}
	if err := validateGUID(r.ItemGUID); err != nil {
		return fmt.Errorf("%w: item guid %v", ErrMalformedReference, err)
	}
	return nil
}

// Canonical trims both GUIDs and lowercases UUID-shaped values so the same
// reference written with different casing maps to one cache key. Opaque
// non-UUID GUIDs are kept verbatim.
func (r Reference) Canonical() Reference {
	return Reference{FeedGUID: CanonicalGUID(r.FeedGUID), ItemGUID: CanonicalGUID(r.ItemGUID)}
}

// CanonicalGUID normalizes a single GUID.
func CanonicalGUID(value string) string {
	value = strings.TrimSpace(value)
	if id, err := uuid.Parse(value); err == nil && len(value) == 36 {
		return id.String()
	}
	return value
}

func validateGUID(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return errors.New("is empty")
	}
	if len(trimmed) > maxGUIDLength {
		return fmt.Errorf("exceeds %d bytes", maxGUIDLength)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.New("contains whitespace or control characters")
		}
	}
	return nil
}

// FeedRecord is the index's view of a feed.
type FeedRecord struct {
	FeedGUID   string `json:"feedGuid"`
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	OriginURL  string `json:"originUrl,omitempty"`
}

// EpisodeRecord is the index's view of one item within a feed.
type EpisodeRecord struct {
	ItemGUID        string `json:"itemGuid"`
	FeedID          int64  `json:"feedId"`
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	AudioURL        string `json:"audioUrl,omitempty"`
	ArtworkURL      string `json:"artworkUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Status is the resolution state of a track.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusUnfindable Status = "unfindable"
)

// Terminal reports whether the status is sticky and must not be retried automatically.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusUnfindable
}

// ParseStatus converts user or database input into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusResolved:
		return StatusResolved, nil
	case StatusUnresolved:
		return StatusUnresolved, nil
	case StatusUnfindable:
		return StatusUnfindable, nil
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// DurationSource tells consumers whether a duration was measured or assumed.
type DurationSource string

const (
	DurationFromSource  DurationSource = "source"
	DurationPlaceholder DurationSource = "placeholder"
)

// TitleSource tells consumers whether a title came from the source or was
// generated from the track's position.
type TitleSource string

const (
	TitleFromSource  TitleSource = "source"
	TitlePlaceholder TitleSource = "placeholder"
)

// Placeholder values used when the index omits a field.
const (
	UnknownArtist = "Unknown Artist"
)

// ResolvedTrack is the normalized output of a resolution.
type ResolvedTrack struct {
	FeedGUID        string         `json:"feedGuid"`
	ItemGUID        string         `json:"itemGuid"`
	Title           string         `json:"title"`
	TitleSource     TitleSource    `json:"titleSource,omitempty"`
	Artist          string         `json:"artist"`
	AudioURL        string         `json:"audioUrl"`
	ArtworkURL      string         `json:"artworkUrl"`
	DurationSeconds int            `json:"durationSeconds"`
	DurationSource  DurationSource `json:"durationSource,omitempty"`
	Status          Status         `json:"resolutionStatus"`
	FeedTitle       string         `json:"feedTitle,omitempty"`
	Error           string         `json:"error,omitempty"`
	Attempts        int            `json:"attempts,omitempty"`
	ResolvedAt      time.Time      `json:"resolvedAt,omitzero"`
}

// Key returns the (feedGuid, itemGuid) identity of the track.
func (t ResolvedTrack) Key() Key { return Key{FeedGUID: t.FeedGUID, ItemGUID: t.ItemGUID} }

// Reference returns the reference the track was resolved from.
func (t ResolvedTrack) Reference() Reference {
	return Reference{FeedGUID: t.FeedGUID, ItemGUID: t.ItemGUID}
}

// EntryKind distinguishes albums from standalone singles.
type EntryKind string

const (
	KindAlbum  EntryKind = "album"
	KindSingle EntryKind = "single"
)

// CatalogEntry groups tracks under one album or single.
type CatalogEntry struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Artist   string          `json:"artist"`
	FeedGUID string          `json:"feedGuid"`
	Kind     EntryKind       `json:"kind"`
	Tracks   []ResolvedTrack `json:"tracks"`
}

// Summary counts outcomes of a resolution run.
type Summary struct {
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Unfindable int `json:"unfindable"`
	Total      int `json:"total"`
}

// Add records one outcome.
func (s *Summary) Add(status Status) {
	s.Total++
	switch status {
	case StatusResolved:
		s.Resolved++
	case StatusUnfindable:
		s.Unfindable++
	default:
		s.Unresolved++
	}
}

// Summarize counts the statuses of tracks.
func Summarize(tracks []ResolvedTrack) Summary {
	var s Summary
	for _, t := range tracks {
		s.Add(t.Status)
	}
	return s
}
