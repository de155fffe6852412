package remoteitem

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"hydrator/internal/track"
)

const (
	nsPodcast = "https://podcastindex.org/namespace/1.0"
	nsItunes  = "http://www.itunes.com/dtds/podcast-1.0.dtd"
)

// Ref is a reference found in a feed together with its provenance.
type Ref struct {
	track.Reference
	// Position is the 1-based order of the reference among the feed's remote items.
	Position int    `json:"position"`
	FeedURL  string `json:"feedUrl,omitempty"`
	Medium   string `json:"medium,omitempty"`
}

// Skipped records a remoteItem element that could not be used.
type Skipped struct {
	Position int    `json:"position"`
	FeedGUID string `json:"feedGuid,omitempty"`
	ItemGUID string `json:"itemGuid,omitempty"`
	Reason   error  `json:"-"`
}

// Item is a track hosted directly in the parsed feed.
type Item struct {
	GUID            string `json:"guid"`
	Title           string `json:"title"`
	Author          string `json:"author,omitempty"`
	EnclosureURL    string `json:"enclosureUrl,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Document is what the extractor learns from one feed.
type Document struct {
	FeedGUID   string    `json:"feedGuid,omitempty"`
	Title      string    `json:"title,omitempty"`
	Author     string    `json:"author,omitempty"`
	Medium     string    `json:"medium,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Items      []Item    `json:"items,omitempty"`
	References []Ref     `json:"references"`
	Skipped    []Skipped `json:"-"`
}

// Refs returns the bare references in document order.
func (d *Document) Refs() []track.Reference {
	out := make([]track.Reference, 0, len(d.References))
	for _, ref := range d.References {
		out = append(out, ref.Reference)
	}
	return out
}

type textNode struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
	Href    string `xml:"href,attr"`
	URL     string `xml:"url,attr"`
}

type rssItem struct {
	Titles    []textNode `xml:"title"`
	GUID      string     `xml:"guid"`
	Enclosure struct {
		URL string `xml:"url,attr"`
	} `xml:"enclosure"`
	Authors   []textNode `xml:"author"`
	Images    []textNode `xml:"image"`
	Durations []textNode `xml:"duration"`
}

type channelImage struct {
	URL string `xml:"url"`
}

// Extract returns the usable references of a feed. It is the narrow form of
// Parse for callers that only need GUID pairs.
func Extract(data []byte) ([]track.Reference, error) {
	doc, err := Parse(bytes.NewReader(data))
	if doc == nil {
		return nil, err
	}
	return doc.Refs(), err
}

// Parse streams a feed and collects channel metadata, hosted items, and
// channel-level podcast:remoteItem references. remoteItem elements nested in
// items (value splits) and in podcast:podroll (recommendations) are not
// track references and are ignored. On malformed XML the document gathered so
// far is returned together with the error.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charsetReader

	doc := &Document{}
	var path []string
	position := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return doc, fmt.Errorf("remoteitem: parse feed: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			parent := ""
			if len(path) > 0 {
				parent = path[len(path)-1]
			}
			if parent != "channel" {
				path = append(path, el.Name.Local)
				continue
			}
			consumed, err := doc.channelElement(dec, el, &position)
			if err != nil {
				return doc, fmt.Errorf("remoteitem: parse feed: %w", err)
			}
			if !consumed {
				path = append(path, el.Name.Local)
			}
		case xml.EndElement:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}
		}
	}
	return doc, nil
}

// channelElement handles a direct child of <channel>. It reports whether the
// element was fully consumed from the decoder.
func (d *Document) channelElement(dec *xml.Decoder, el xml.StartElement, position *int) (bool, error) {
	switch el.Name.Local {
	case "remoteItem":
		*position++
		d.addRemoteItem(el, *position)
		return true, dec.Skip()
	case "podroll", "valueTimeSplit":
		return true, dec.Skip()
	case "item":
		var raw rssItem
		if err := dec.DecodeElement(&raw, &el); err != nil {
			return true, err
		}
		d.Items = append(d.Items, raw.toItem())
		return true, nil
	case "title":
		var text textNode
		if err := dec.DecodeElement(&text, &el); err != nil {
			return true, err
		}
		if el.Name.Space == "" && d.Title == "" {
			d.Title = strings.TrimSpace(text.Value)
		}
		return true, nil
	case "guid":
		var text textNode
		if err := dec.DecodeElement(&text, &el); err != nil {
			return true, err
		}
		if isPodcastNS(el.Name.Space) {
			d.FeedGUID = track.CanonicalGUID(text.Value)
		}
		return true, nil
	case "author":
		var text textNode
		if err := dec.DecodeElement(&text, &el); err != nil {
			return true, err
		}
		if d.Author == "" {
			d.Author = strings.TrimSpace(text.Value)
		}
		return true, nil
	case "medium":
		var text textNode
		if err := dec.DecodeElement(&text, &el); err != nil {
			return true, err
		}
		d.Medium = strings.TrimSpace(text.Value)
		return true, nil
	case "image":
		if el.Name.Space == nsItunes {
			if href := attr(el, "href"); href != "" {
				d.ImageURL = href
			}
			return true, dec.Skip()
		}
		var img channelImage
		if err := dec.DecodeElement(&img, &el); err != nil {
			return true, err
		}
		if d.ImageURL == "" {
			d.ImageURL = strings.TrimSpace(img.URL)
		}
		return true, nil
	}
	return false, nil
}

func (d *Document) addRemoteItem(el xml.StartElement, position int) {
	ref := track.Reference{FeedGUID: attr(el, "feedGuid"), ItemGUID: attr(el, "itemGuid")}
	if err := ref.Validate(); err != nil {
		d.Skipped = append(d.Skipped, Skipped{
			Position: position,
			FeedGUID: ref.FeedGUID,
			ItemGUID: ref.ItemGUID,
			Reason:   err,
		})
		return
	}
	d.References = append(d.References, Ref{
		Reference: ref.Canonical(),
		Position:  position,
		FeedURL:   attr(el, "feedUrl"),
		Medium:    attr(el, "medium"),
	})
}

func (raw rssItem) toItem() Item {
	item := Item{
		GUID:         strings.TrimSpace(raw.GUID),
		EnclosureURL: strings.TrimSpace(raw.Enclosure.URL),
	}
	for _, t := range raw.Titles {
		if t.XMLName.Space == "" {
			item.Title = strings.TrimSpace(t.Value)
			break
		}
	}
	if item.Title == "" && len(raw.Titles) > 0 {
		item.Title = strings.TrimSpace(raw.Titles[0].Value)
	}
	for _, a := range raw.Authors {
		if v := strings.TrimSpace(a.Value); v != "" {
			item.Author = v
			break
		}
	}
	for _, img := range raw.Images {
		if href := strings.TrimSpace(img.Href); href != "" {
			item.ImageURL = href
			break
		}
		if u := strings.TrimSpace(img.URL); u != "" {
			item.ImageURL = u
			break
		}
	}
	for _, dur := range raw.Durations {
		if seconds, ok := ParseDuration(dur.Value); ok {
			item.DurationSeconds = seconds
			break
		}
	}
	return item
}

// attr matches attributes by local name; feeds are inconsistent about
// prefixing remoteItem attributes.
func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func isPodcastNS(space string) bool {
	return space == nsPodcast || strings.Contains(space, "podcastindex.org/namespace")
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// Records describes the feed's own channel and hosted items in the same
// shape the index returns, so hosted albums normalize like resolved tracks.
func (d *Document) Records() (track.FeedRecord, []track.EpisodeRecord) {
	feed := track.FeedRecord{
		FeedGUID:   d.FeedGUID,
		Title:      d.Title,
		Author:     d.Author,
		ArtworkURL: d.ImageURL,
	}
	episodes := make([]track.EpisodeRecord, 0, len(d.Items))
	for _, item := range d.Items {
		episodes = append(episodes, track.EpisodeRecord{
			ItemGUID:        track.CanonicalGUID(item.GUID),
			Title:           item.Title,
			Author:          item.Author,
			AudioURL:        item.EnclosureURL,
			ArtworkURL:      item.ImageURL,
			DurationSeconds: item.DurationSeconds,
		})
	}
	return feed, episodes
}
