package dedupe

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key modes.
const (
	KeyTitleArtist = "title_artist"
	KeyTitle       = "title"
)

// Key is the identity under which tracks are considered duplicates.
type Key struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

func (k Key) String() string {
	if k.Artist == "" {
		return k.Title
	}
	return k.Title + " / " + k.Artist
}

var folder = cases.Fold()

// Fold normalizes text for comparison: NFC, Unicode case folding, trimmed,
// with runs of whitespace collapsed to one space.
func Fold(value string) string {
	value = norm.NFC.String(strings.TrimSpace(value))
	value = folder.String(value)
	return strings.Join(strings.Fields(value), " ")
}

func keyFor(title, artist, mode string) Key {
	if mode == KeyTitle {
		return Key{Title: Fold(title)}
	}
	return Key{Title: Fold(title), Artist: Fold(artist)}
}
