// Package main hosts the hydrator CLI entrypoint and command graph.
//
// The Cobra command tree extracts podcast:remoteItem references from feed
// files, resolves them against the Podcast Index in rate-limited batches,
// stores the outcomes in the local catalog, and runs the duplicate merger
// over catalog entries. Configuration resolution, the writer lock, and
// logger setup live in commandContext so subcommands stay declarative.
package main
