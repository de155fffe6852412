// Package catalog stores resolved tracks, albums and singles, and run
// history in SQLite.
//
// Resolved and unfindable tracks are sticky: later upserts never overwrite
// them. A dedupe pass is applied in a single transaction.
package catalog
