// Package podcastindex is a small client for the Podcast Index API covering
// the three lookups the resolver needs: podcasts/byguid, episodes/byguid and
// episodes/byfeedid.
//
// Every request carries a freshly signed header set (see Sign). Failures are
// typed so callers can tell a missing record (ErrNotFound) from a rate limit
// (*RateLimitError) or a transient outage (*StatusError, network errors);
// Classify maps any returned error to its kind.
package podcastindex
