// Package remoteitem extracts podcast:remoteItem references from RSS feeds
// with a streaming XML decoder.
//
// Only channel-level remoteItem elements are treated as track references, as
// in musicL playlists and albums assembled from other feeds. Elements with a
// missing or unusable GUID are reported in Document.Skipped and never reach
// the resolver.
package remoteitem
