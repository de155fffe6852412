// Package track defines the data model shared by the resolver pipeline:
// remote item references, index feed and episode records, normalized tracks
// with their resolution status, and catalog entries.
package track
