package preflight

import (
	"context"

	"hydrator/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckCatalog(ctx, cfg.CatalogPath()),
	}
	if cfg.Cache.Persistent {
		results = append(results, CheckLookupCache(ctx, cfg.LookupCachePath()))
	}

	// The index probe needs credentials; report their absence once.
	if err := cfg.RequireCredentials(); err != nil {
		results = append(results, Result{Name: "Podcast Index", Detail: err.Error()})
	} else {
		results = append(results, CheckPodcastIndex(ctx, cfg))
	}

	if cfg.Postgres.DSN != "" {
		results = append(results, CheckPostgres(ctx, cfg))
	}
	return results
}
