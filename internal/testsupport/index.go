package testsupport

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

// Credentials the fake index accepts.
const (
	TestAPIKey    = "test-key"
	TestAPISecret = "test-secret"
)

// Feed is a feed known to the fake index.
type Feed struct {
	GUID     string
	ID       int64
	Title    string
	Author   string
	Artwork  string
	Episodes []Episode
}

// Episode is an item inside a fake feed.
type Episode struct {
	GUID      string
	Title     string
	Author    string
	Enclosure string
	Duration  int
	Image     string
	// Hidden episodes are absent from episodes/byguid and only appear in the
	// feed listing.
	Hidden bool
}

// Failure scripts a response for an endpoint.
type Failure struct {
	Status     int
	RetryAfter string
	Body       string
}

// FakeIndex is an httptest server speaking the subset of the Podcast Index
// API the client uses. It rejects requests with a bad signature.
type FakeIndex struct {
	server *httptest.Server

	mu       sync.Mutex
	feeds    map[string]Feed
	failures map[string][]Failure
	requests map[string]int
}

var fakeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// NewFakeIndex starts a fake index serving feeds and registers cleanup.
func NewFakeIndex(t testing.TB, feeds ...Feed) *FakeIndex {
	t.Helper()
	f := &FakeIndex{
		feeds:    make(map[string]Feed),
		failures: make(map[string][]Failure),
		requests: make(map[string]int),
	}
	for _, feed := range feeds {
		f.feeds[feed.GUID] = feed
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the base URL to configure the client with.
func (f *FakeIndex) URL() string { return f.server.URL }

// FailNext queues failures for an endpoint such as "episodes/byguid".
func (f *FakeIndex) FailNext(endpoint string, failures ...Failure) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[endpoint] = append(f.failures[endpoint], failures...)
}

// Requests returns how many requests reached endpoint.
func (f *FakeIndex) Requests(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[endpoint]
}

// TotalRequests returns the number of requests across all endpoints.
func (f *FakeIndex) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.requests {
		total += n
	}
	return total
}

func (f *FakeIndex) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.Trim(r.URL.Path, "/")
	f.mu.Lock()
	f.requests[endpoint]++
	var failure *Failure
	if queued := f.failures[endpoint]; len(queued) > 0 {
		failure = &queued[0]
		f.failures[endpoint] = queued[1:]
	}
	f.mu.Unlock()

	if !validSignature(r) {
		http.Error(w, "bad signature", http.StatusUnauthorized)
		return
	}
	if failure != nil {
		if failure.RetryAfter != "" {
			w.Header().Set("Retry-After", failure.RetryAfter)
		}
		w.WriteHeader(failure.Status)
		_, _ = fmt.Fprint(w, failure.Body)
		return
	}

	query := r.URL.Query()
	switch endpoint {
	case "podcasts/byguid":
		feed, ok := f.feed(query.Get("guid"))
		if !ok {
			f.write(w, map[string]any{"status": "true", "feed": []any{}, "description": "No feeds match this guid."})
			return
		}
		f.write(w, map[string]any{"status": "true", "feed": feedJSON(feed)})
	case "episodes/byguid":
		feed, ok := f.feed(query.Get("feedguid"))
		if !ok {
			feed, ok = f.feedByID(query.Get("feedid"))
		}
		if ok {
			for _, ep := range feed.Episodes {
				if ep.GUID == query.Get("guid") && !ep.Hidden {
					f.write(w, map[string]any{"status": "true", "episode": episodeJSON(feed, ep)})
					return
				}
			}
		}
		f.write(w, map[string]any{"status": "false", "episode": []any{}, "description": "No episodes match this guid."})
	case "episodes/byfeedid":
		feed, ok := f.feedByID(query.Get("id"))
		items := []any{}
		if ok {
			limit, _ := strconv.Atoi(query.Get("max"))
			for i, ep := range feed.Episodes {
				if limit > 0 && i >= limit {
					break
				}
				items = append(items, episodeJSON(feed, ep))
			}
		}
		f.write(w, map[string]any{"status": "true", "items": items, "count": len(items)})
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeIndex) feed(guid string) (Feed, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.feeds[guid]
	return feed, ok
}

func (f *FakeIndex) feedByID(raw string) (Feed, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Feed{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, feed := range f.feeds {
		if feed.ID == id {
			return feed, true
		}
	}
	return Feed{}, false
}

func (f *FakeIndex) write(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = fakeJSON.NewEncoder(w).Encode(payload)
}

func feedJSON(feed Feed) map[string]any {
	return map[string]any{
		"id":          feed.ID,
		"podcastGuid": feed.GUID,
		"title":       feed.Title,
		"author":      feed.Author,
		"artwork":     feed.Artwork,
		"url":         "https://feeds.example/" + feed.GUID + ".xml",
	}
}

func episodeJSON(feed Feed, ep Episode) map[string]any {
	return map[string]any{
		"id":           len(ep.GUID) + int(feed.ID)*1000,
		"guid":         ep.GUID,
		"title":        ep.Title,
		"author":       ep.Author,
		"enclosureUrl": ep.Enclosure,
		"duration":     ep.Duration,
		"image":        ep.Image,
		"feedId":       feed.ID,
	}
}

func validSignature(r *http.Request) bool {
	key := r.Header.Get("X-Auth-Key")
	date := r.Header.Get("X-Auth-Date")
	if key != TestAPIKey || date == "" {
		return false
	}
	sum := sha1.Sum([]byte(TestAPIKey + TestAPISecret + date))
	return r.Header.Get("Authorization") == hex.EncodeToString(sum[:])
}
