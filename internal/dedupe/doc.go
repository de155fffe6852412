// Package dedupe collapses duplicate tracks across catalog entries,
// keeping the most complete copy of each.
package dedupe
