// Package preflight provides readiness checks for the paths, stores, and
// remote services hydrator depends on.
//
// `hydrator doctor` runs RunAll and prints one line per check. Checks are
// gated by configuration: the Postgres mirror is only probed when a DSN is
// set and the lookup cache only when persistence is enabled.
package preflight
