package podcastindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"hydrator/internal/track"
)

const (
	defaultBaseURL     = "https://api.podcastindex.org/api/1.0"
	defaultUserAgent   = "hydrator/dev"
	defaultHTTPTimeout = 30 * time.Second
	maxEpisodesPerList = 1000
)

// Config describes the Podcast Index client configuration.
type Config struct {
	APIKey     string
	APISecret  string
	UserAgent  string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *RateLimiter
	// Now overrides the clock used for request signatures.
	Now func() time.Time
}

// Client wraps the Podcast Index REST API.
type Client struct {
	apiKey    string
	apiSecret string
	userAgent string
	baseURL   *url.URL
	http      *http.Client
	limiter   *RateLimiter
	now       func() time.Time
	requests  atomic.Int64
}

// New creates a Client from the supplied configuration. Missing credentials
// fail here, before any request is attempted.
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	apiSecret := strings.TrimSpace(cfg.APISecret)
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("podcastindex: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		userAgent: userAgent,
		baseURL:   baseURL,
		http:      client,
		limiter:   cfg.Limiter,
		now:       now,
	}, nil
}

// Requests returns the number of HTTP requests sent so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// PodcastByGUID looks up a feed by its podcast:guid.
func (c *Client) PodcastByGUID(ctx context.Context, feedGUID string) (track.FeedRecord, error) {
	if c == nil {
		return track.FeedRecord{}, errors.New("podcastindex: client is nil")
	}
	params := url.Values{}
	params.Set("guid", feedGUID)

	var payload podcastResponse
	if err := c.get(ctx, "podcasts/byguid", params, &payload); err != nil {
		return track.FeedRecord{}, err
	}
	ok, err := payload.ok("podcasts/byguid")
	if err != nil {
		return track.FeedRecord{}, err
	}
	if !ok {
		return track.FeedRecord{}, fmt.Errorf("%w: feed %s: %s", ErrNotFound, feedGUID, payload.Description)
	}
	var feed feedPayload
	found, err := decodeObject(payload.Feed, &feed)
	if err != nil {
		return track.FeedRecord{}, fmt.Errorf("podcastindex: decode feed: %w", err)
	}
	if !found || feed.ID == 0 {
		return track.FeedRecord{}, fmt.Errorf("%w: feed %s", ErrNotFound, feedGUID)
	}
	return feed.record(feedGUID), nil
}

// EpisodeByGUID looks up one episode by GUID, scoped by feed GUID and/or
// feed id. At least one scope should be supplied.
func (c *Client) EpisodeByGUID(ctx context.Context, itemGUID, feedGUID string, feedID int64) (track.EpisodeRecord, error) {
	if c == nil {
		return track.EpisodeRecord{}, errors.New("podcastindex: client is nil")
	}
	params := url.Values{}
	params.Set("guid", itemGUID)
	if feedGUID != "" {
		params.Set("feedguid", feedGUID)
	}
	if feedID > 0 {
		params.Set("feedid", strconv.FormatInt(feedID, 10))
	}

	var payload episodeResponse
	if err := c.get(ctx, "episodes/byguid", params, &payload); err != nil {
		return track.EpisodeRecord{}, err
	}
	ok, err := payload.ok("episodes/byguid")
	if err != nil {
		return track.EpisodeRecord{}, err
	}
	if !ok {
		return track.EpisodeRecord{}, fmt.Errorf("%w: episode %s: %s", ErrNotFound, itemGUID, payload.Description)
	}
	var ep episodePayload
	found, err := decodeObject(payload.Episode, &ep)
	if err != nil {
		return track.EpisodeRecord{}, fmt.Errorf("podcastindex: decode episode: %w", err)
	}
	if !found || (ep.ID == 0 && ep.GUID == "") {
		return track.EpisodeRecord{}, fmt.Errorf("%w: episode %s", ErrNotFound, itemGUID)
	}
	record := ep.record()
	if record.ItemGUID == "" {
		record.ItemGUID = itemGUID
	}
	return record, nil
}

// EpisodesByFeedID lists up to limit of the most recent episodes of a feed.
func (c *Client) EpisodesByFeedID(ctx context.Context, feedID int64, limit int) ([]track.EpisodeRecord, error) {
	if c == nil {
		return nil, errors.New("podcastindex: client is nil")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxEpisodesPerList {
		limit = maxEpisodesPerList
	}
	params := url.Values{}
	params.Set("id", strconv.FormatInt(feedID, 10))
	params.Set("max", strconv.Itoa(limit))

	var payload episodesResponse
	if err := c.get(ctx, "episodes/byfeedid", params, &payload); err != nil {
		return nil, err
	}
	ok, err := payload.ok("episodes/byfeedid")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: feed id %d: %s", ErrNotFound, feedID, payload.Description)
	}
	episodes := make([]track.EpisodeRecord, 0, len(payload.Items))
	for _, item := range payload.Items {
		episodes = append(episodes, item.record())
	}
	return episodes, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	target := c.baseURL.JoinPath(strings.Split(endpoint, "/")...)
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("podcastindex: build %s request: %w", endpoint, err)
	}
	headers, err := Sign(c.apiKey, c.apiSecret, c.now())
	if err != nil {
		return err
	}
	headers.Apply(req)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.requests.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("podcastindex: %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &RateLimitError{Endpoint: endpoint, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), c.now())}
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned 404", ErrNotFound, endpoint)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := jsonAPI.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("podcastindex: decode %s response: %w", endpoint, err)
	}
	return nil
}
