package podcastindex

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"hydrator/internal/track"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// flexBool accepts the index's "true"/"false" strings as well as JSON booleans.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "1":
		*b = true
	default:
		*b = false
	}
	return nil
}

// flexInt accepts numbers, numeric strings, and null.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}

type envelope struct {
	Status      *flexBool `json:"status"`
	Description string    `json:"description"`
}

// ok reports the status flag. A response without one is malformed.
func (e envelope) ok(endpoint string) (bool, error) {
	if e.Status == nil {
		return false, fmt.Errorf("podcastindex: %s response has no status field", endpoint)
	}
	return bool(*e.Status), nil
}

type podcastResponse struct {
	envelope
	Feed jsoniter.RawMessage `json:"feed"`
}

type episodeResponse struct {
	envelope
	Episode jsoniter.RawMessage `json:"episode"`
}

type episodesResponse struct {
	envelope
	Items []episodePayload `json:"items"`
	Count flexInt          `json:"count"`
}

type feedPayload struct {
	ID          flexInt `json:"id"`
	PodcastGUID string  `json:"podcastGuid"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	OriginalURL string  `json:"originalUrl"`
	Author      string  `json:"author"`
	OwnerName   string  `json:"ownerName"`
	Image       string  `json:"image"`
	Artwork     string  `json:"artwork"`
	Medium      string  `json:"medium"`
}

type episodePayload struct {
	ID           flexInt `json:"id"`
	GUID         string  `json:"guid"`
	Title        string  `json:"title"`
	Author       string  `json:"author"`
	EnclosureURL string  `json:"enclosureUrl"`
	Duration     flexInt `json:"duration"`
	Image        string  `json:"image"`
	FeedID       flexInt `json:"feedId"`
}

// decodeObject decodes raw into out. The index returns an empty array instead
// of an object when nothing matched, which is reported as found=false.
func decodeObject(raw jsoniter.RawMessage, out any) (bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false, nil
	}
	if err := jsonAPI.Unmarshal(trimmed, out); err != nil {
		return false, err
	}
	return true, nil
}

func (p feedPayload) record(requestedGUID string) track.FeedRecord {
	guid := strings.TrimSpace(p.PodcastGUID)
	if guid == "" {
		guid = requestedGUID
	}
	origin := strings.TrimSpace(p.OriginalURL)
	if origin == "" {
		origin = strings.TrimSpace(p.URL)
	}
	artwork := strings.TrimSpace(p.Artwork)
	if artwork == "" {
		artwork = strings.TrimSpace(p.Image)
	}
	author := strings.TrimSpace(p.Author)
	if author == "" {
		author = strings.TrimSpace(p.OwnerName)
	}
	return track.FeedRecord{
		FeedGUID:   track.CanonicalGUID(guid),
		ID:         int64(p.ID),
		Title:      strings.TrimSpace(p.Title),
		Author:     author,
		ArtworkURL: artwork,
		OriginURL:  origin,
	}
}

func (p episodePayload) record() track.EpisodeRecord {
	duration := int(p.Duration)
	if duration < 0 {
		duration = 0
	}
	return track.EpisodeRecord{
		ItemGUID:        strings.TrimSpace(p.GUID),
		FeedID:          int64(p.FeedID),
		Title:           strings.TrimSpace(p.Title),
		Author:          strings.TrimSpace(p.Author),
		AudioURL:        strings.TrimSpace(p.EnclosureURL),
		ArtworkURL:      strings.TrimSpace(p.Image),
		DurationSeconds: duration,
	}
}
