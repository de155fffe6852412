package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePodcastIndex()
	c.normalizeResolver()
	c.normalizeDedupe()
	c.normalizePostgres()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePodcastIndex() {
	c.PodcastIndex.APIKey = strings.TrimSpace(c.PodcastIndex.APIKey)
	if c.PodcastIndex.APIKey == "" {
		if value, ok := os.LookupEnv(EnvAPIKey); ok {
			c.PodcastIndex.APIKey = strings.TrimSpace(value)
		}
	}
	c.PodcastIndex.APISecret = strings.TrimSpace(c.PodcastIndex.APISecret)
	if c.PodcastIndex.APISecret == "" {
		if value, ok := os.LookupEnv(EnvAPISecret); ok {
			c.PodcastIndex.APISecret = strings.TrimSpace(value)
		}
	}
	c.PodcastIndex.BaseURL = strings.TrimRight(strings.TrimSpace(c.PodcastIndex.BaseURL), "/")
	if c.PodcastIndex.BaseURL == "" {
		c.PodcastIndex.BaseURL = defaultBaseURL
	}
	c.PodcastIndex.UserAgent = strings.TrimSpace(c.PodcastIndex.UserAgent)
	if c.PodcastIndex.UserAgent == "" {
		c.PodcastIndex.UserAgent = defaultUserAgent
	}
	if c.PodcastIndex.RequestTimeoutSeconds <= 0 {
		c.PodcastIndex.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.PodcastIndex.WindowSeconds <= 0 {
		c.PodcastIndex.WindowSeconds = defaultWindowSeconds
	}
}

func (c *Config) normalizeResolver() {
	if c.Resolver.BatchSize == 0 {
		c.Resolver.BatchSize = defaultBatchSize
	}
	if c.Resolver.EpisodeScanMax == 0 {
		c.Resolver.EpisodeScanMax = defaultEpisodeScanMax
	}
	if c.Resolver.PlaceholderDurationSeconds == 0 {
		c.Resolver.PlaceholderDurationSeconds = defaultPlaceholderDurationSeconds
	}
	if c.Resolver.BaseBackoffMS == 0 {
		c.Resolver.BaseBackoffMS = defaultBaseBackoffMS
	}
	if c.Resolver.MaxBackoffMS == 0 {
		c.Resolver.MaxBackoffMS = defaultMaxBackoffMS
	}
}

func (c *Config) normalizeDedupe() {
	c.Dedupe.KeyMode = strings.ToLower(strings.TrimSpace(c.Dedupe.KeyMode))
	switch c.Dedupe.KeyMode {
	case "", "title+artist", "title-artist":
		c.Dedupe.KeyMode = KeyModeTitleArtist
	case "title_only", "title-only":
		c.Dedupe.KeyMode = KeyModeTitle
	}
}

func (c *Config) normalizePostgres() {
	c.Postgres.DSN = strings.TrimSpace(c.Postgres.DSN)
	c.Postgres.Schema = strings.TrimSpace(c.Postgres.Schema)
	if c.Postgres.Schema == "" {
		c.Postgres.Schema = defaultPostgresSchema
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = defaultPostgresMaxConns
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
