package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hydrator/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		passed bool
	}{
		{"writable dir", t.TempDir(), true},
		{"missing", filepath.Join(t.TempDir(), "nope"), false},
		{"file", file, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tt.path)
			if result.Passed != tt.passed {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tt.passed, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckPodcastIndexAcceptsNotFoundProbe(t *testing.T) {
	index := testsupport.NewFakeIndex(t)
	cfg := testsupport.NewConfig(t, testsupport.WithIndex(index))

	result := CheckPodcastIndex(context.Background(), cfg)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if index.Requests("podcasts/byguid") != 1 {
		t.Fatalf("expected a single probe, got %d", index.Requests("podcasts/byguid"))
	}
}

func TestCheckPodcastIndexReportsBadSecret(t *testing.T) {
	index := testsupport.NewFakeIndex(t)
	cfg := testsupport.NewConfig(t, testsupport.WithIndex(index))
	cfg.PodcastIndex.APISecret = "wrong"

	result := CheckPodcastIndex(context.Background(), cfg)
	if result.Passed {
		t.Fatal("expected failure for a rejected signature")
	}
	if !strings.Contains(result.Detail, "api_secret") {
		t.Fatalf("expected credential hint, got %q", result.Detail)
	}
}

func TestRunAllSkipsIndexWithoutCredentials(t *testing.T) {
	index := testsupport.NewFakeIndex(t)
	cfg := testsupport.NewConfig(t, testsupport.WithIndex(index), testsupport.WithoutCredentials())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}
	if results[3].Passed || !Failed(results) {
		t.Fatalf("missing credentials must fail the index check: %+v", results[3])
	}
	if index.TotalRequests() != 0 {
		t.Fatalf("no request expected without credentials, got %d", index.TotalRequests())
	}
}

func TestCheckCatalogCreatesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	result := CheckCatalog(context.Background(), path)
	if !result.Passed || !strings.Contains(result.Detail, "0 tracks") {
		t.Fatalf("unexpected catalog result %+v", result)
	}
}
