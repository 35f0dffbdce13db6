package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"kununu/internal/columns"
	"kununu/internal/config"
	"kununu/internal/fetch"
	"kununu/internal/scrape"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned HTML by URL and records the proxy mode of each call.
type fakeFetcher struct {
	pages map[string]string

	mu       sync.Mutex
	viaProxy []bool
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string, viaProxy bool) (*goquery.Document, error) {
	f.mu.Lock()
	f.viaProxy = append(f.viaProxy, viaProxy)
	f.mu.Unlock()

	html, ok := f.pages[pageURL]
	if !ok {
		return nil, &fetch.StatusError{URL: pageURL, StatusCode: http.StatusNotFound, Body: "not found"}
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// testDeps returns seams backed by f, counting metrics init calls.
func testDeps(f *fakeFetcher, metricsCalls *atomic.Int64) appDeps {
	return appDeps{
		newFetcher: func(fetch.Options) scrape.Fetcher { return f },
		initMetrics: func(context.Context, config.Config, logrus.FieldLogger) (func(), error) {
			metricsCalls.Add(1)
			return func() {}, nil
		},
	}
}

const profileHTML = `<html><head><script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"company":{"name":"ACME GmbH","simpleName":"ACME","locations":{"main":{"city":"Berlin"}},"logo":null}}}}
</script></head><body></body></html>`

const listingHTML = `<div class="LinksLevel_container__cGmmL">
<a href="acme">ACME</a><a href="beta">Beta</a><a name="x">no href</a></div>`

func runCmd(t *testing.T, stdin string, deps appDeps, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, deps)
	return code, stdout.String(), stderr.String()
}

func TestRun_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		wantInErr string
	}{
		{name: "unknown_flag", args: []string{"scrape", "--nope"}, wantInErr: "unknown flag: --nope"},
		{name: "unknown_command", args: []string{"crawl"}, wantInErr: `unknown command "crawl"`},
		{name: "links_without_url", args: []string{"links", "--direct"}, wantInErr: "requires at least 1 arg"},
		{name: "scrape_nothing", args: []string{"scrape", "--direct"}, wantInErr: "no pages to scrape"},
		{name: "scrape_dir_and_urls", args: []string{"scrape", "--dir", ".", "https://x"}, wantInErr: "--dir cannot be combined"},
		{name: "bad_log_format", args: []string{"columns", "--log-format", "xml"}, wantInErr: "unknown --log-format"},
		{name: "missing_config", args: []string{"validate", "--config", "/nonexistent/kununu.json5"}, wantInErr: "load config"},
		{name: "normalize_with_args", args: []string{"normalize", "extra"}, wantInErr: "unknown command"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps := appDeps{
				newFetcher: func(fetch.Options) scrape.Fetcher {
					t.Fatalf("newFetcher must not be called on usage errors")
					return nil
				},
				initMetrics: func(context.Context, config.Config, logrus.FieldLogger) (func(), error) {
					t.Fatalf("initMetrics must not be called on usage errors")
					return nil, nil
				},
			}
			code, stdout, stderr := runCmd(t, "", deps, tc.args...)
			require.Equal(t, 2, code, "stderr=%s", stderr)
			require.Contains(t, stderr, tc.wantInErr)
			require.Empty(t, stdout)
		})
	}
}

// Proxy mode without a key is a config error, reported before any fetch.
func TestRun_LinksMissingAPIKey(t *testing.T) {
	t.Setenv(fetch.APIKeyEnv, "")

	var calls atomic.Int64
	code, stdout, stderr := runCmd(t, "", testDeps(&fakeFetcher{}, &calls), "links", "https://www.kununu.com/de/branchen")
	require.Equal(t, 2, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "error: fetch.api_key")
	require.Contains(t, stderr, "configuration is invalid")
	require.Zero(t, calls.Load())
}

func TestRun_Links(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{"https://www.kununu.com/de/branchen": listingHTML}}
	var calls atomic.Int64

	code, stdout, stderr := runCmd(t, "", testDeps(f, &calls),
		"links", "--direct", "--base-url", "https://www.kununu.com/at/", "https://www.kununu.com/de/branchen")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, "https://www.kununu.com/at/acme\nhttps://www.kununu.com/at/beta\n", stdout)
	require.Equal(t, []bool{false}, f.viaProxy)
	require.EqualValues(t, 1, calls.Load())
}

func TestRun_LinksPartialFailure(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{"https://a": listingHTML}}
	var calls atomic.Int64

	code, stdout, stderr := runCmd(t, "", testDeps(f, &calls), "links", "--direct", "https://a", "https://b")
	require.Equal(t, 1, code)
	require.Equal(t, "https://www.kununu.com/de/acme\nhttps://www.kununu.com/de/beta\n", stdout)
	require.Contains(t, stderr, "1 of 2 listing pages failed")
}

func TestRun_LinksCrawl(t *testing.T) {
	t.Parallel()

	container := func(hrefs ...string) string {
		html := `<div class="LinksLevel_container__cGmmL">`
		for _, h := range hrefs {
			html += `<a href="` + h + `">x</a>`
		}
		return html + `</div>`
	}
	f := &fakeFetcher{pages: map[string]string{
		"https://www.kununu.com/de/branchen": container("it", "handel"),
		"https://www.kununu.com/de/it":       container("acme"),
		"https://www.kununu.com/de/handel":   container("acme", "beta"),
	}}
	var calls atomic.Int64

	code, stdout, stderr := runCmd(t, "", testDeps(f, &calls),
		"links", "--direct", "--depth", "1", "--workers", "2", "https://www.kununu.com/de/branchen")
	require.Equal(t, 0, code, "stderr=%s", stderr)

	got := strings.Split(strings.TrimSpace(stdout), "\n")
	sort.Strings(got)
	require.Equal(t, []string{
		"https://www.kununu.com/de/acme",
		"https://www.kununu.com/de/beta",
		"https://www.kununu.com/de/handel",
		"https://www.kununu.com/de/it",
	}, got)

	code, _, stderr = runCmd(t, "", testDeps(f, &calls), "links", "--direct", "--depth=-1", "https://x")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "--depth must not be negative")
}

func TestRun_ScrapeFromStdinFile(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{"https://www.kununu.com/de/acme": profileHTML}}
	var calls atomic.Int64

	urls := "# profiles\nhttps://www.kununu.com/de/acme\n\nhttps://www.kununu.com/de/gone\n"
	code, stdout, stderr := runCmd(t, urls, testDeps(f, &calls), "scrape", "--direct", "--file", "-")
	require.Equal(t, 1, code, "one of two pages fails")
	require.Contains(t, stderr, "1 of 2 pages failed")
	require.Equal(t,
		`{"kn_url":"https://www.kununu.com/de/acme","kn_firm_name":"ACME GmbH","kn_firm_simple_name":"ACME","kn_city":"Berlin"}`+"\n",
		stdout)
}

func TestRun_ScrapeRecordAndCompleteOnly(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{pages: map[string]string{"https://x/acme": profileHTML}}
	var calls atomic.Int64

	code, stdout, stderr := runCmd(t, "", testDeps(f, &calls), "scrape", "--direct", "--record", "https://x/acme")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t,
		`{"name":"ACME GmbH","simple_name":"ACME","locations_main_city":"Berlin","logo":null,"url":"https://x/acme"}`+"\n",
		stdout)

	code, stdout, stderr = runCmd(t, "", testDeps(f, &calls), "scrape", "--direct", "--complete-only", "https://x/acme")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Empty(t, stdout)
}

func TestRun_ScrapeDirWithMappings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pages := filepath.Join(dir, "pages")
	require.NoError(t, os.Mkdir(pages, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "acme.html"),
		[]byte(strings.Replace(profileHTML, "<body>", `<body><span class="score">Note 4,3</span>`, 1)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(pages, "broken.html"), []byte("<p>nothing</p>"), 0o600))

	mappings := filepath.Join(dir, "profile.json5")
	require.NoError(t, os.WriteFile(mappings, []byte(`{
		embedded_json: "script#__NEXT_DATA__",
		json_path: "props.pageProps.company",
		mappings: [{selector: ".score", extract: "text", field: "overallRating", match: "(\\d,\\d)"}],
	}`), 0o600))

	cfgPath := filepath.Join(dir, "scraper.json5")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{mappings: "profile.json5"}`), 0o600))

	deps := appDeps{
		newFetcher: func(fetch.Options) scrape.Fetcher { return nil },
		initMetrics: func(context.Context, config.Config, logrus.FieldLogger) (func(), error) {
			return func() {}, nil
		},
	}
	// No API key is needed: directory mode never fetches.
	code, stdout, stderr := runCmd(t, "", deps, "scrape", "--config", cfgPath, "--dir", pages)
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t,
		`{"kn_url":"acme.html","kn_overall":"4,3","kn_firm_name":"ACME GmbH","kn_firm_simple_name":"ACME","kn_city":"Berlin","source_file":"acme.html"}`+"\n",
		stdout)
}

func TestRun_ScrapeBadMappings(t *testing.T) {
	t.Parallel()

	bad := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(bad, []byte(`{mappings: [{selector: "", field: "x"}]}`), 0o600))

	var calls atomic.Int64
	code, _, stderr := runCmd(t, "", testDeps(&fakeFetcher{}, &calls), "scrape", "--direct", "--mappings", bad, "https://x")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "load mappings")
	require.Zero(t, calls.Load())
}

func TestRun_Normalize(t *testing.T) {
	t.Parallel()

	input := `{"firmName":"ACME","locations":{"mainCity":"Köln"},"tags":[{"tagName":"it"}],"logo":null}`
	deps := appDeps{}

	code, stdout, stderr := runCmd(t, input, deps, "normalize")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, `{"firm_name":"ACME","locations":{"main_city":"Köln"},"tags":[{"tag_name":"it"}],"logo":null}`+"\n", stdout)

	code, stdout, _ = runCmd(t, input, deps, "normalize", "--flatten", "--prefix", "kn")
	require.Equal(t, 0, code)
	require.Equal(t, `{"kn_firm_name":"ACME","kn_locations_main_city":"Köln","kn_tags":[{"tag_name":"it"}],"kn_logo":null}`+"\n", stdout)

	code, stdout, stderr = runCmd(t, `{"name":"ACME","simpleName":"A","url":"https://x"}`, deps, "normalize", "--columns")
	require.Equal(t, 0, code)
	require.Equal(t, `{"kn_url":"https://x","kn_firm_name":"ACME","kn_firm_simple_name":"A"}`+"\n", stdout)
	require.Contains(t, stderr, "missing required fields")

	code, stdout, _ = runCmd(t, `{"firmName":"ACME"}`, deps, "normalize", "--dump")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, `"firm_name"`)
	require.Contains(t, stdout, `"ACME"`)
}

func TestRun_NormalizeErrors(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCmd(t, `{"a":`, appDeps{}, "normalize")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "parse json")

	code, _, stderr = runCmd(t, `[1,2]`, appDeps{}, "normalize", "--flatten")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "not a mapping")
}

func TestRun_Columns(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runCmd(t, "", appDeps{}, "columns", "url", "overall_rating")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, strings.Join([]string{
		"╭────────────────┬────────────╮",
		"│ SOURCE         │ COLUMN     │",
		"├────────────────┼────────────┤",
		"│ url            │ kn_url     │",
		"│ overall_rating │ kn_overall │",
		"╰────────────────┴────────────╯",
	}, "\n")+"\n", stdout)

	code, stdout, _ = runCmd(t, "", appDeps{}, "columns")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "│ locations_main_city")
	require.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), columns.Len()+4)

	code, stdout, _ = runCmd(t, "", appDeps{}, "columns", "--required")
	require.Equal(t, 0, code)
	require.True(t, strings.HasPrefix(stdout, "name\nsimple_name\n"), stdout)
	require.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 20)

	code, _, stderr = runCmd(t, "", appDeps{}, "columns", "nope")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "no column for nope")
}

func TestRun_Validate(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), "scraper.json5")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{fetch: {direct: true}, links: {base_url: "https://www.kununu.com/ch"}}`), 0o600))

	code, stdout, stderr := runCmd(t, "", appDeps{}, "validate", "--config", cfgPath)
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, "configuration is valid\n", stdout)
	require.Contains(t, stderr, "warning: links.base_url")

	bad := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(bad, []byte(`{fetch: {direct: true, timeout: "later"}}`), 0o600))
	code, _, stderr = runCmd(t, "", appDeps{}, "validate", "--config", bad)
	require.Equal(t, 2, code)
	require.Contains(t, stderr, `error: fetch.timeout: invalid duration "later"`)
}

func TestRun_Select(t *testing.T) {
	t.Parallel()

	html := `<div id="x">  A  </div><div id="x"><b>B</b></div>`
	code, stdout, stderr := runCmd(t, html, appDeps{}, "select", "--text", "div#x")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, "A\n\nB\n\n", stdout)

	f := &fakeFetcher{pages: map[string]string{"https://x/p": html}}
	var calls atomic.Int64
	code, stdout, stderr = runCmd(t, "", testDeps(f, &calls), "select", "--direct", "--url", "https://x/p", "b")
	require.Equal(t, 0, code, "stderr=%s", stderr)
	require.Equal(t, "<b>B</b>\n\n", stdout)
	require.Equal(t, []bool{false}, f.viaProxy)

	code, _, _ = runCmd(t, html, appDeps{}, "select")
	require.Equal(t, 2, code)
}

func TestInitMetrics(t *testing.T) {
	t.Parallel()

	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})

	stop, err := initMetrics(context.Background(), config.Config{Metrics: config.Metrics{Backend: "none"}}, log)
	require.NoError(t, err)
	stop()

	_, err = initMetrics(context.Background(), config.Config{Metrics: config.Metrics{Backend: "statsd"}}, log)
	require.ErrorContains(t, err, `unknown metrics backend "statsd"`)
}
