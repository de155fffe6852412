package podcastindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error kinds reported by Classify.
const (
	KindNotFound      = "not_found"
	KindRateLimited   = "rate_limited"
	KindTransient     = "transient"
	KindPermanent     = "permanent"
	KindConfiguration = "configuration"
	KindCancelled     = "cancelled"
)

var (
	// ErrNotFound means the index has no such feed or episode. It is never retried within a run.
	ErrNotFound = errors.New("podcastindex: not found")
	// ErrMissingCredentials is returned before any request when the key or secret is empty.
	ErrMissingCredentials = errors.New("podcastindex: api key and secret are required")
)

// RateLimitError reports an HTTP 429 response.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("podcastindex: %s rate limited (retry after %s)", e.Endpoint, e.RetryAfter)
	}
	return fmt.Sprintf("podcastindex: %s rate limited", e.Endpoint)
}

// ErrorKind classifies the error for retry decisions.
func (e *RateLimitError) ErrorKind() string { return KindRateLimited }

// StatusError reports an unexpected HTTP status from the index.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("podcastindex: %s failed (%d %s)", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ErrorKind reports server errors and request timeouts as transient.
func (e *StatusError) ErrorKind() string {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusRequestTimeout {
		return KindTransient
	}
	return KindPermanent
}

type errorClassifier interface {
	ErrorKind() string
}

// Classify maps an error returned by the client to one of the Kind constants.
// Unrecognised failures (network errors, malformed responses) are transient.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrMissingCredentials):
		return KindConfiguration
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	var classifier errorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return KindTransient
}

// IsNotFound reports whether err means the index has no matching record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// RetryAfterHint extracts the server-requested delay from a rate limit error.
func RetryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
