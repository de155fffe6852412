package testsupport

import (
	"path/filepath"
	"testing"

	"hydrator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are set, delays are zero and backoff is a millisecond so runs
// finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.PodcastIndex.APIKey = TestAPIKey
	cfgVal.PodcastIndex.APISecret = TestAPISecret
	cfgVal.PodcastIndex.UserAgent = "hydrator/test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Resolver.InterBatchDelayMS = 0
	cfgVal.Resolver.BaseBackoffMS = 1
	cfgVal.Resolver.MaxBackoffMS = 10

	builder := &configBuilder{cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithIndex points the config at a fake index server.
func WithIndex(index *FakeIndex) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PodcastIndex.BaseURL = index.URL()
	}
}

// WithBatching overrides batch size and inter-batch delay.
func WithBatching(size, delayMS int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolver.BatchSize = size
		b.cfg.Resolver.InterBatchDelayMS = delayMS
	}
}

// WithoutCredentials clears the Podcast Index key and secret.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.PodcastIndex.APIKey = ""
		b.cfg.PodcastIndex.APISecret = ""
	}
}

// WithPersistentCache enables the on-disk lookup cache.
func WithPersistentCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Persistent = true
	}
}
