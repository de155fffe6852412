package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// PodcastIndex contains credentials and transport settings for the Podcast Index API.
type PodcastIndex struct {
	APIKey                string `toml:"api_key"`
	APISecret             string `toml:"api_secret"`
	BaseURL               string `toml:"base_url"`
	UserAgent             string `toml:"user_agent"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	RequestsPerWindow     int    `toml:"requests_per_window"` // 0 disables client-side limiting
	WindowSeconds         int    `toml:"window_seconds"`
}

// Resolver contains batch scheduling and normalization settings.
type Resolver struct {
	BatchSize                  int `toml:"batch_size"`
	InterBatchDelayMS          int `toml:"inter_batch_delay_ms"`
	MaxRetries                 int `toml:"max_retries"`
	BaseBackoffMS              int `toml:"base_backoff_ms"`
	MaxBackoffMS               int `toml:"max_backoff_ms"`
	EpisodeScanMax             int `toml:"episode_scan_max"`
	PlaceholderDurationSeconds int `toml:"placeholder_duration_seconds"`
}

// Dedupe contains the duplicate detection key mode and scoring weights.
type Dedupe struct {
	// KeyMode is "title_artist" (default) or "title".
	KeyMode               string `toml:"key_mode"`
	AudioWeight           int    `toml:"audio_weight"`
	ArtistWeight          int    `toml:"artist_weight"`
	OptionalWeight        int    `toml:"optional_weight"`
	NearDuplicateDistance int    `toml:"near_duplicate_distance"`
}

// Paths contains on-disk locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Cache controls the lookup cache lifetime.
type Cache struct {
	// Persistent keeps found feed/episode lookups on disk across runs.
	Persistent bool `toml:"persistent"`
	// TTLHours bounds how long persisted lookups are trusted; 0 keeps them forever.
	TTLHours int `toml:"ttl_hours"`
}

// Postgres configures the optional Postgres mirror of resolved tracks.
type Postgres struct {
	DSN            string `toml:"dsn"`
	MaxConns       int    `toml:"max_conns"`
	SimpleProtocol bool   `toml:"simple_protocol"`
	Schema         string `toml:"schema"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hydrator.
type Config struct {
	PodcastIndex PodcastIndex `toml:"podcast_index"`
	Resolver     Resolver     `toml:"resolver"`
	Dedupe       Dedupe       `toml:"dedupe"`
	Paths        Paths        `toml:"paths"`
	Cache        Cache        `toml:"cache"`
	Postgres     Postgres     `toml:"postgres"`
	Logging      Logging      `toml:"logging"`
}

// ConfigError reports an unusable configuration. It is the only error class
// allowed to abort a resolution run, and it is always raised before any I/O.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s %s", e.Field, e.Msg)
}

// ErrorKind classifies configuration failures.
func (e *ConfigError) ErrorKind() string { return "configuration" }

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hydrator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CatalogPath returns the SQLite catalog database location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LookupCachePath returns the persistent lookup cache database location.
func (c *Config) LookupCachePath() string {
	return filepath.Join(c.Paths.DataDir, "lookup-cache.db")
}

// CacheTTL returns how long persisted lookups are trusted.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// LockPath returns the lock file guarding catalog writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "hydrator.lock")
}

// InterBatchDelay returns the pause inserted between scheduler batches.
func (c *Config) InterBatchDelay() time.Duration {
	return time.Duration(c.Resolver.InterBatchDelayMS) * time.Millisecond
}

// BaseBackoff returns the first retry delay.
func (c *Config) BaseBackoff() time.Duration {
	return time.Duration(c.Resolver.BaseBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Resolver.MaxBackoffMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout for the index client.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.PodcastIndex.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	out.PodcastIndex.APIKey = mask(out.PodcastIndex.APIKey)
	out.PodcastIndex.APISecret = mask(out.PodcastIndex.APISecret)
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = "<set>"
	}
	return out
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
