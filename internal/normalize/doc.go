// Package normalize turns index records into canonical tracks, filling
// gaps with deterministic fallbacks.
package normalize
