package pgsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hydrator/internal/logging"
	"hydrator/internal/track"
)

const (
	defaultSchema    = "public"
	defaultMaxConns  = 2
	defaultBatchSize = 200
)

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config describes the Postgres mirror.
type Config struct {
	DSN string
	// MaxConns caps the pool size.
	MaxConns int
	// SimpleProtocol is needed behind transaction-pooling bouncers.
	SimpleProtocol bool
	Schema         string
	BatchSize      int
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Sink mirrors track upserts into a Postgres table.
type Sink struct {
	pool      *pgxpool.Pool
	sender    batchSender
	table     string
	batchSize int
	logger    *slog.Logger
}

// Open connects to Postgres and ensures the mirror table exists.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("pgsink: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgsink: parse dsn: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	poolCfg.MaxConns = int32(maxConns)
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	sink, err := newSink(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgsink: connect: %w", err)
	}
	sink.pool = pool
	sink.sender = pool
	if err := sink.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return sink, nil
}

func newSink(cfg Config, sender batchSender, logger *slog.Logger) (*Sink, error) {
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = defaultSchema
	}
	if !schemaPattern.MatchString(schema) {
		return nil, fmt.Errorf("pgsink: invalid schema name %q", schema)
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Sink{
		sender:    sender,
		table:     fmt.Sprintf(`"%s".hydrator_tracks`, schema),
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "pgsink"),
	}, nil
}

// Close releases the pool.
func (s *Sink) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Sink) ensureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
    feed_guid TEXT NOT NULL,
    item_guid TEXT NOT NULL,
    title TEXT NOT NULL,
    artist TEXT NOT NULL,
    audio_url TEXT NOT NULL DEFAULT '',
    artwork_url TEXT NOT NULL DEFAULT '',
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    duration_source TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    resolved_at TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (feed_guid, item_guid)
)`)
	if err != nil {
		return fmt.Errorf("pgsink: ensure table: %w", err)
	}
	return nil
}

func (s *Sink) upsertSQL() string {
	return `INSERT INTO ` + s.table + `
    (feed_guid, item_guid, title, artist, audio_url, artwork_url,
     duration_seconds, duration_source, status, error_message, resolved_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    ON CONFLICT (feed_guid, item_guid) DO UPDATE SET
        title = EXCLUDED.title,
        artist = EXCLUDED.artist,
        audio_url = EXCLUDED.audio_url,
        artwork_url = EXCLUDED.artwork_url,
        duration_seconds = EXCLUDED.duration_seconds,
        duration_source = EXCLUDED.duration_source,
        status = EXCLUDED.status,
        error_message = EXCLUDED.error_message,
        resolved_at = EXCLUDED.resolved_at,
        updated_at = EXCLUDED.updated_at
    WHERE ` + s.table + `.status NOT IN ('resolved', 'unfindable')`
}

// UpsertTracks mirrors tracks in batches. Rows already resolved or
// unfindable in Postgres are not overwritten. It returns the number of rows
// written.
func (s *Sink) UpsertTracks(ctx context.Context, tracks []track.ResolvedTrack) (int, error) {
	if len(tracks) == 0 {
		return 0, nil
	}
	query := s.upsertSQL()
	now := time.Now().UTC()
	total := 0
	for i := 0; i < len(tracks); i += s.batchSize {
		j := min(i+s.batchSize, len(tracks))
		b := &pgx.Batch{}
		for _, t := range tracks[i:j] {
			var resolvedAt *time.Time
			if !t.ResolvedAt.IsZero() {
				at := t.ResolvedAt.UTC()
				resolvedAt = &at
			}
			b.Queue(query,
				t.FeedGUID, t.ItemGUID, t.Title, t.Artist, t.AudioURL, t.ArtworkURL,
				t.DurationSeconds, string(t.DurationSource), string(t.Status), t.Error, resolvedAt, now,
			)
		}
		count := b.Len()
		br := s.sender.SendBatch(ctx, b)
		for k := 0; k < count; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, fmt.Errorf("pgsink: upsert: %w", err)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, fmt.Errorf("pgsink: close batch: %w", err)
		}
	}
	s.logger.Debug("mirrored tracks",
		logging.Int("tracks", len(tracks)),
		logging.Int("written", total),
	)
	return total, nil
}
