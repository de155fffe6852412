// Package config loads, normalizes, and validates hydrator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the PODCAST_INDEX_API_KEY and
// PODCAST_INDEX_API_SECRET environment fallbacks. Invalid settings surface as
// *ConfigError so callers can abort before any network or database work.
package config
