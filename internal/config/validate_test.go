package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	c := Default()
	c.Fetch.APIKey = "key"
	return c
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []Issue
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:   "direct_without_key",
			mutate: func(c *Config) { c.Fetch.Direct = true; c.Fetch.APIKey = "" },
		},
		{
			name:   "proxy_without_key",
			mutate: func(c *Config) { c.Fetch.APIKey = "" },
			want: []Issue{{SeverityError, "fetch.api_key",
				"proxy fetching needs an API key (set SCRAPINGBEE_API_KEY or fetch.direct)"}},
		},
		{
			name:   "relative_proxy_endpoint",
			mutate: func(c *Config) { c.Fetch.ProxyEndpoint = "/api/v1" },
			want:   []Issue{{SeverityError, "fetch.proxy_endpoint", `not an absolute URL: "/api/v1"`}},
		},
		{
			name:   "render_js_direct",
			mutate: func(c *Config) { c.Fetch.Direct = true; c.Fetch.RenderJS = true },
			want:   []Issue{{SeverityWarning, "fetch.render_js", "ignored for direct fetches"}},
		},
		{
			name:   "bad_timeout",
			mutate: func(c *Config) { c.Fetch.Timeout = "soon" },
			want:   []Issue{{SeverityError, "fetch.timeout", `invalid duration "soon"`}},
		},
		{
			name:   "negative_timeout",
			mutate: func(c *Config) { c.Fetch.Timeout = "-1s" },
			want:   []Issue{{SeverityError, "fetch.timeout", "must be positive, got -1s"}},
		},
		{
			name:   "class_with_spaces",
			mutate: func(c *Config) { c.Links.ContainerClass = "a b" },
			want:   []Issue{{SeverityError, "links.container_class", `must be a single class name, got "a b"`}},
		},
		{
			name:   "base_url_without_slash",
			mutate: func(c *Config) { c.Links.BaseURL = "https://www.kununu.com/de" },
			want: []Issue{{SeverityWarning, "links.base_url",
				`"https://www.kununu.com/de" has no trailing slash; hrefs are appended verbatim`}},
		},
		{
			name:   "unknown_backend",
			mutate: func(c *Config) { c.Metrics.Backend = "statsd" },
			want:   []Issue{{SeverityError, "metrics.backend", `unknown backend "statsd" (want none or datadog)`}},
		},
		{
			name:   "datadog_bad_flush",
			mutate: func(c *Config) { c.Metrics.Backend = "datadog"; c.Metrics.FlushEvery = "0s" },
			want:   []Issue{{SeverityError, "metrics.flush_every", "must be positive, got 0s"}},
		},
		{
			name:   "tag_shape",
			mutate: func(c *Config) { c.Metrics.Tags = []string{"ok:1", "bare"} },
			want:   []Issue{{SeverityWarning, "metrics.tags[1]", `"bare" is not in key:value form`}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tc.mutate(&c)
			require.Equal(t, tc.want, c.Validate())
		})
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	require.False(t, HasErrors(nil))
	require.False(t, HasErrors([]Issue{{Severity: SeverityWarning}}))
	require.True(t, HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}))
	require.Equal(t, "error: fetch.timeout: bad", Issue{SeverityError, "fetch.timeout", "bad"}.String())
}
