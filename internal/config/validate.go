package config

import "fmt"

// Validate ensures the configuration is usable. Podcast Index credentials are
// checked separately by RequireCredentials so commands that never touch the
// network work without them.
func (c *Config) Validate() error {
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateDedupe(); err != nil {
		return err
	}
	if err := c.validatePodcastIndex(); err != nil {
		return err
	}
	if c.Cache.TTLHours < 0 {
		return &ConfigError{Field: "cache.ttl_hours", Msg: "must be >= 0"}
	}
	return nil
}

// RequireCredentials reports a ConfigError when the Podcast Index key or
// secret is missing.
func (c *Config) RequireCredentials() error {
	if c.PodcastIndex.APIKey == "" {
		return &ConfigError{
			Field: "podcast_index.api_key",
			Msg:   fmt.Sprintf("is required; set %s or edit %s (create with 'hydrator config init')", EnvAPIKey, configPathHint()),
		}
	}
	if c.PodcastIndex.APISecret == "" {
		return &ConfigError{
			Field: "podcast_index.api_secret",
			Msg:   fmt.Sprintf("is required; set %s or edit %s", EnvAPISecret, configPathHint()),
		}
	}
	return nil
}

func (c *Config) validateResolver() error {
	r := c.Resolver
	if r.BatchSize < 1 {
		return &ConfigError{Field: "resolver.batch_size", Msg: "must be at least 1"}
	}
	if r.InterBatchDelayMS < 0 {
		return &ConfigError{Field: "resolver.inter_batch_delay_ms", Msg: "must be >= 0"}
	}
	if r.MaxRetries < 0 {
		return &ConfigError{Field: "resolver.max_retries", Msg: "must be >= 0"}
	}
	if r.BaseBackoffMS < 0 {
		return &ConfigError{Field: "resolver.base_backoff_ms", Msg: "must be >= 0"}
	}
	if r.MaxBackoffMS < r.BaseBackoffMS {
		return &ConfigError{Field: "resolver.max_backoff_ms", Msg: "must be >= resolver.base_backoff_ms"}
	}
	if r.EpisodeScanMax < 1 || r.EpisodeScanMax > 1000 {
		return &ConfigError{Field: "resolver.episode_scan_max", Msg: "must be between 1 and 1000"}
	}
	if r.PlaceholderDurationSeconds < 0 {
		return &ConfigError{Field: "resolver.placeholder_duration_seconds", Msg: "must be >= 0"}
	}
	return nil
}

func (c *Config) validateDedupe() error {
	switch c.Dedupe.KeyMode {
	case KeyModeTitleArtist, KeyModeTitle:
	default:
		return &ConfigError{Field: "dedupe.key_mode", Msg: fmt.Sprintf("unsupported value %q (use %q or %q)", c.Dedupe.KeyMode, KeyModeTitleArtist, KeyModeTitle)}
	}
	if c.Dedupe.AudioWeight < 0 || c.Dedupe.ArtistWeight < 0 || c.Dedupe.OptionalWeight < 0 {
		return &ConfigError{Field: "dedupe", Msg: "weights must be >= 0"}
	}
	if c.Dedupe.NearDuplicateDistance < 0 {
		return &ConfigError{Field: "dedupe.near_duplicate_distance", Msg: "must be >= 0"}
	}
	return nil
}

func (c *Config) validatePodcastIndex() error {
	if c.PodcastIndex.RequestsPerWindow < 0 {
		return &ConfigError{Field: "podcast_index.requests_per_window", Msg: "must be >= 0"}
	}
	return nil
}

func configPathHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}
