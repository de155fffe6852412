package config

const (
	defaultConfigPath                 = "~/.config/hydrator/config.toml"
	defaultDataDir                    = "~/.local/share/hydrator"
	defaultLogDir                     = "~/.local/share/hydrator/logs"
	defaultBaseURL                    = "https://api.podcastindex.org/api/1.0"
	defaultUserAgent                  = "hydrator/dev"
	defaultRequestTimeoutSeconds      = 30
	defaultWindowSeconds              = 1
	defaultBatchSize                  = 5
	defaultInterBatchDelayMS          = 1000
	defaultMaxRetries                 = 3
	defaultBaseBackoffMS              = 1000
	defaultMaxBackoffMS               = 30000
	defaultEpisodeScanMax             = 100
	defaultPlaceholderDurationSeconds = 180
	defaultKeyMode                    = KeyModeTitleArtist
	defaultAudioWeight                = 10
	defaultArtistWeight               = 5
	defaultOptionalWeight             = 1
	defaultNearDuplicateDistance      = 2
	defaultPostgresMaxConns           = 2
	defaultPostgresSchema             = "public"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
)

// Dedupe key modes.
const (
	KeyModeTitleArtist = "title_artist"
	KeyModeTitle       = "title"
)

// Environment variables consulted when the config file leaves credentials empty.
const (
	EnvAPIKey    = "PODCAST_INDEX_API_KEY"
	EnvAPISecret = "PODCAST_INDEX_API_SECRET"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		PodcastIndex: PodcastIndex{
			BaseURL:               defaultBaseURL,
			UserAgent:             defaultUserAgent,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			WindowSeconds:         defaultWindowSeconds,
		},
		Resolver: Resolver{
			BatchSize:                  defaultBatchSize,
			InterBatchDelayMS:          defaultInterBatchDelayMS,
			MaxRetries:                 defaultMaxRetries,
			BaseBackoffMS:              defaultBaseBackoffMS,
			MaxBackoffMS:               defaultMaxBackoffMS,
			EpisodeScanMax:             defaultEpisodeScanMax,
			PlaceholderDurationSeconds: defaultPlaceholderDurationSeconds,
		},
		Dedupe: Dedupe{
			KeyMode:               defaultKeyMode,
			AudioWeight:           defaultAudioWeight,
			ArtistWeight:          defaultArtistWeight,
			OptionalWeight:        defaultOptionalWeight,
			NearDuplicateDistance: defaultNearDuplicateDistance,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Postgres: Postgres{
			MaxConns: defaultPostgresMaxConns,
			Schema:   defaultPostgresSchema,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
