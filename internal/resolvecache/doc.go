// Package resolvecache persists index lookups between runs. It is opt-in
// and sits behind the run-scoped resolver cache.
package resolvecache
