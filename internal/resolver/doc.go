// Package resolver turns remote item references into index records.
//
// FeedResolver and EpisodeResolver share an injected Cache whose lifetime is
// one resolution run. Both cache positive answers and not-found answers, so a
// missing feed or item costs one request per run. Concurrent lookups for the
// same key are collapsed into a single request.
package resolver
