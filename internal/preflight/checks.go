package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"hydrator/internal/catalog"
	"hydrator/internal/config"
	"hydrator/internal/pgsink"
	"hydrator/internal/podcastindex"
	"hydrator/internal/resolvecache"
)

// ProbeFeedGUID is looked up to confirm the index accepts our signature.
// Whether the feed exists does not matter; a not-found answer still proves
// the request was authenticated.
const ProbeFeedGUID = "917393e3-1b1e-5cef-ace4-edaa54e1f810"

const probeTimeout = 10 * time.Second

// CheckPodcastIndex performs one signed lookup without retries.
func CheckPodcastIndex(ctx context.Context, cfg *config.Config) Result {
	const name = "Podcast Index"

	client, err := podcastindex.New(podcastindex.Config{
		APIKey:     cfg.PodcastIndex.APIKey,
		APISecret:  cfg.PodcastIndex.APISecret,
		UserAgent:  cfg.PodcastIndex.UserAgent,
		BaseURL:    cfg.PodcastIndex.BaseURL,
		HTTPClient: &http.Client{Timeout: probeTimeout},
	})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err = client.PodcastByGUID(checkCtx, ProbeFeedGUID)
	switch podcastindex.Classify(err) {
	case "":
		return Result{Name: name, Passed: true, Detail: "reachable, signature accepted"}
	case podcastindex.KindNotFound:
		return Result{Name: name, Passed: true, Detail: "reachable, signature accepted (probe feed not indexed)"}
	case podcastindex.KindRateLimited:
		return Result{Name: name, Passed: true, Detail: "reachable but rate limited; lower resolver.batch_size"}
	case podcastindex.KindPermanent:
		return Result{Name: name, Detail: "request rejected (check api_key and api_secret): " + err.Error()}
	default:
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
}

// CheckCatalog opens the catalog, creating it when missing, and verifies the
// schema version.
func CheckCatalog(ctx context.Context, path string) Result {
	const name = "Catalog"
	store, err := catalog.Open(ctx, path)
	if err != nil {
		if errors.Is(err, catalog.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (schema mismatch; move the file aside to rebuild)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	summary, err := store.Summary(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d tracks)", path, summary.Total)}
}

// CheckLookupCache opens the persistent lookup cache.
func CheckLookupCache(ctx context.Context, path string) Result {
	const name = "Lookup cache"
	cache, err := resolvecache.Open(ctx, path, resolvecache.Options{})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer cache.Close()
	stats, err := cache.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d feeds, %d episodes)", path, stats.Feeds, stats.Episodes)}
}

// CheckPostgres connects to the mirror database and ensures its table.
func CheckPostgres(ctx context.Context, cfg *config.Config) Result {
	const name = "Postgres mirror"

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	sink, err := pgsink.Open(checkCtx, pgsink.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       1,
		SimpleProtocol: cfg.Postgres.SimpleProtocol,
		Schema:         cfg.Postgres.Schema,
	}, nil)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	sink.Close()
	return Result{Name: name, Passed: true, Detail: "connected, table ready"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
