package podcastindex

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Header names used by the Podcast Index authentication scheme.
const (
	HeaderAuthKey       = "X-Auth-Key"
	HeaderAuthDate      = "X-Auth-Date"
	HeaderAuthorization = "Authorization"
)

// Headers is one signed header set. The index checks X-Auth-Date against the
// signature, so a set must be produced for every request and never reused.
type Headers struct {
	Key           string
	Date          string
	Authorization string
}

// Sign returns the header set for key and secret at the given time. The
// signature is the lowercase hex SHA-1 of key+secret+unixSeconds.
func Sign(key, secret string, now time.Time) (Headers, error) {
	if strings.TrimSpace(key) == "" || strings.TrimSpace(secret) == "" {
		return Headers{}, ErrMissingCredentials
	}
	date := strconv.FormatInt(now.Unix(), 10)
	sum := sha1.Sum([]byte(key + secret + date))
	return Headers{
		Key:           key,
		Date:          date,
		Authorization: hex.EncodeToString(sum[:]),
	}, nil
}

// Apply sets the signed headers on req.
func (h Headers) Apply(req *http.Request) {
	req.Header.Set(HeaderAuthKey, h.Key)
	req.Header.Set(HeaderAuthDate, h.Date)
	req.Header.Set(HeaderAuthorization, h.Authorization)
}
