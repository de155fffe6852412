package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"hydrator/internal/config"
	"hydrator/internal/testsupport"
	"hydrator/internal/track"
)

type cliTestEnv struct {
	cfg        *config.Config
	index      *testsupport.FakeIndex
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, index *testsupport.FakeIndex, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvAPISecret, "")

	if index != nil {
		opts = append([]testsupport.ConfigOption{testsupport.WithIndex(index)}, opts...)
	}
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, index: index, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	flags = append(flags, "--env-file", "")
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

const playlistFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0">
  <channel>
    <title>Road Trip</title>
    <podcast:medium>musicL</podcast:medium>
    <podcast:remoteItem feedGuid="f-single" itemGuid="s1" medium="music"/>
    <podcast:remoteItem feedGuid="f-gone" itemGuid="x1"/>
    <podcast:remoteItem feedGuid="" itemGuid="broken"/>
  </channel>
</rss>`

const albumFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:podcast="https://podcastindex.org/namespace/1.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Album X</title>
    <itunes:author>Artist Y</itunes:author>
    <podcast:guid>f-album</podcast:guid>
    <podcast:medium>music</podcast:medium>
    <image><url>https://img.example/x.jpg</url></image>
    <item>
      <title>Song A</title>
      <guid>a</guid>
      <enclosure url="https://cdn.example/a.mp3" type="audio/mpeg"/>
      <itunes:duration>3:35</itunes:duration>
    </item>
    <item>
      <title>Song B</title>
      <guid>b</guid>
      <enclosure url="https://cdn.example/b.mp3" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func singleFeeds() []testsupport.Feed {
	return []testsupport.Feed{
		{
			GUID:   "f-single",
			ID:     100,
			Title:  "Song A (Single)",
			Author: "Artist Y",
			Episodes: []testsupport.Episode{
				{GUID: "s1", Title: "Song A", Enclosure: "https://cdn.example/single-a.mp3"},
				{GUID: "s2", Title: "Deep Cut", Enclosure: "https://cdn.example/deep.mp3", Duration: 200, Hidden: true},
			},
		},
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Credentials: yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, testsupport.TestAPISecret) {
		t.Fatalf("secret leaked into output:\n%s", out)
	}
	requireContains(t, out, "batch_size")
}

func TestExtractListsReferences(t *testing.T) {
	dir := t.TempDir()
	feedPath := testsupport.WriteFile(t, dir, "playlist.xml", playlistFeed)

	out, _, err := runCLI(t, []string{"extract", feedPath}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	requireContains(t, out, "Road Trip (medium: musicL, 2 references)")
	requireContains(t, out, "f-single")
	requireContains(t, out, "f-gone")
	requireContains(t, out, "skipped #3")
}

func TestResolveStoresOutcomesAndReusesTerminalOnes(t *testing.T) {
	index := testsupport.NewFakeIndex(t, singleFeeds()...)
	index.FailNext("podcasts/byguid", testsupport.Failure{Status: 429, RetryAfter: "0"})
	env := setupCLITestEnv(t, index)

	refs := testsupport.WriteFile(t, env.baseDir, "refs.yaml", `
- feedGuid: f-single
  itemGuid: s1
- feedGuid: f-single
  itemGuid: s2
- feedGuid: f-single
  itemGuid: nope
- feedGuid: f-gone
  itemGuid: x1
`)

	out, _, err := runCLI(t, []string{"resolve", "--refs", refs, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var first resolveOutput
	if err := json.Unmarshal([]byte(out), &first); err != nil {
		t.Fatalf("decode resolve output: %v\n%s", err, out)
	}
	want := track.Summary{Resolved: 2, Unfindable: 2, Total: 4}
	if first.Summary != want {
		t.Fatalf("summary = %+v, want %+v", first.Summary, want)
	}
	if first.Stored.Inserted != 4 {
		t.Fatalf("expected 4 stored tracks, got %+v", first.Stored)
	}
	if index.Requests("episodes/byfeedid") != 1 {
		t.Fatalf("expected one feed scan shared by s2 and nope, got %d", index.Requests("episodes/byfeedid"))
	}
	for _, tr := range first.Tracks {
		if tr.ItemGUID == "s2" && (tr.Status != track.StatusResolved || tr.DurationSeconds != 200) {
			t.Fatalf("hidden episode should resolve through the feed scan: %+v", tr)
		}
	}

	before := index.TotalRequests()
	out, _, err = runCLI(t, []string{"resolve", "--refs", refs, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	var second resolveOutput
	if err := json.Unmarshal([]byte(out), &second); err != nil {
		t.Fatalf("decode second output: %v", err)
	}
	if second.Reused != 4 || second.Summary != want {
		t.Fatalf("expected all outcomes reused, got reused=%d summary=%+v", second.Reused, second.Summary)
	}
	if index.TotalRequests() != before {
		t.Fatalf("terminal outcomes must not hit the index again (%d -> %d)", before, index.TotalRequests())
	}

	out, _, err = runCLI(t, []string{"tracks", "--status", "unfindable", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	var stored []track.ResolvedTrack
	if err := json.Unmarshal([]byte(out), &stored); err != nil {
		t.Fatalf("decode tracks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 unfindable tracks, got %+v", stored)
	}

	out, _, err = runCLI(t, []string{"tracks", "--runs"}, env.configPath)
	if err != nil {
		t.Fatalf("tracks --runs: %v", err)
	}
	requireContains(t, out, first.RunID)
	requireContains(t, out, second.RunID)
}

func TestResolveFromFeedFilesReportsMalformedReferences(t *testing.T) {
	index := testsupport.NewFakeIndex(t, singleFeeds()...)
	env := setupCLITestEnv(t, index)
	refs := testsupport.WriteFile(t, env.baseDir, "refs.json", `{"references": [{"feedGuid": "", "itemGuid": "i"}]}`)
	feedPath := testsupport.WriteFile(t, env.baseDir, "playlist.xml", playlistFeed)

	out, _, err := runCLI(t, []string{"resolve", "--refs", refs, "--batch-size", "1", feedPath}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireContains(t, out, "malformed")
	requireContains(t, out, "f-gone")
	requireContains(t, out, "2 batches")
}

func TestResolveRequiresCredentialsBeforeAnyRequest(t *testing.T) {
	index := testsupport.NewFakeIndex(t, singleFeeds()...)
	env := setupCLITestEnv(t, index, testsupport.WithoutCredentials())
	refs := testsupport.WriteFile(t, env.baseDir, "refs.yaml", "- {feedGuid: f-single, itemGuid: s1}\n")

	_, _, err := runCLI(t, []string{"resolve", "--refs", refs}, env.configPath)
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if index.TotalRequests() != 0 {
		t.Fatalf("no request may be sent without credentials, got %d", index.TotalRequests())
	}
}

func TestImportThenDedupeRemovesStandaloneSingle(t *testing.T) {
	index := testsupport.NewFakeIndex(t, singleFeeds()...)
	env := setupCLITestEnv(t, index)
	album := testsupport.WriteFile(t, env.baseDir, "album.xml", albumFeed)

	out, _, err := runCLI(t, []string{"import", album}, env.configPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Imported Album X by Artist Y: 2 tracks")

	refs := testsupport.WriteFile(t, env.baseDir, "refs.yaml", "- {feedGuid: f-single, itemGuid: s1}\n")
	if _, _, err := runCLI(t, []string{"resolve", "--refs", refs}, env.configPath); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	out, _, err = runCLI(t, []string{"dedupe", "--dry-run", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("dedupe --dry-run: %v", err)
	}
	var preview dedupeOutput
	if err := json.Unmarshal([]byte(out), &preview); err != nil {
		t.Fatalf("decode dedupe output: %v", err)
	}
	if !preview.DryRun || len(preview.Removed) != 1 || preview.Removed[0].Track.ItemGUID != "s1" {
		t.Fatalf("unexpected dry run result %+v", preview)
	}

	out, _, err = runCLI(t, []string{"dedupe"}, env.configPath)
	if err != nil {
		t.Fatalf("dedupe: %v", err)
	}
	requireContains(t, out, "Removed 1 duplicate tracks and 1 emptied entries")

	out, _, err = runCLI(t, []string{"dedupe"}, env.configPath)
	if err != nil {
		t.Fatalf("second dedupe: %v", err)
	}
	requireContains(t, out, "No duplicates found")
}

func TestCacheClear(t *testing.T) {
	index := testsupport.NewFakeIndex(t, singleFeeds()...)
	env := setupCLITestEnv(t, index, testsupport.WithPersistentCache())
	refs := testsupport.WriteFile(t, env.baseDir, "refs.yaml", "- {feedGuid: f-single, itemGuid: s1}\n")

	if _, _, err := runCLI(t, []string{"resolve", "--refs", refs}, env.configPath); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Feeds:    1")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 feeds")
}

func TestDoctorReportsChecks(t *testing.T) {
	index := testsupport.NewFakeIndex(t)
	env := setupCLITestEnv(t, index)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Catalog")
	requireContains(t, out, "signature accepted")
}
