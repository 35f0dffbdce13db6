package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding. Path uses the JSON field names,
// e.g. "fetch.timeout".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks c and returns every issue found, errors and warnings mixed,
// in field order. A nil result means the config is usable as is.
func (c Config) Validate() []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Job) == "" {
		add(SeverityWarning, "job", "empty job name; metrics will be tagged job:unknown")
	}

	if !c.Fetch.Direct {
		if c.Fetch.APIKey == "" {
			add(SeverityError, "fetch.api_key", "proxy fetching needs an API key (set SCRAPINGBEE_API_KEY or fetch.direct)")
		}
		if u, err := url.Parse(c.Fetch.ProxyEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			add(SeverityError, "fetch.proxy_endpoint", "not an absolute URL: %q", c.Fetch.ProxyEndpoint)
		}
	}
	if c.Fetch.Direct && c.Fetch.RenderJS {
		add(SeverityWarning, "fetch.render_js", "ignored for direct fetches")
	}
	if d, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
		add(SeverityError, "fetch.timeout", "invalid duration %q", c.Fetch.Timeout)
	} else if d <= 0 {
		add(SeverityError, "fetch.timeout", "must be positive, got %s", d)
	}

	if strings.TrimSpace(c.Links.ContainerClass) == "" {
		add(SeverityError, "links.container_class", "must not be empty")
	} else if strings.ContainsAny(c.Links.ContainerClass, " \t\n") {
		add(SeverityError, "links.container_class", "must be a single class name, got %q", c.Links.ContainerClass)
	}
	if c.Links.BaseURL != "" && !strings.HasSuffix(c.Links.BaseURL, "/") {
		add(SeverityWarning, "links.base_url", "%q has no trailing slash; hrefs are appended verbatim", c.Links.BaseURL)
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "datadog":
		if d, err := time.ParseDuration(c.Metrics.FlushEvery); err != nil {
			add(SeverityError, "metrics.flush_every", "invalid duration %q", c.Metrics.FlushEvery)
		} else if d <= 0 {
			add(SeverityError, "metrics.flush_every", "must be positive, got %s", d)
		}
	default:
		add(SeverityError, "metrics.backend", "unknown backend %q (want none or datadog)", c.Metrics.Backend)
	}
	for i, tag := range c.Metrics.Tags {
		if !strings.Contains(tag, ":") {
			add(SeverityWarning, fmt.Sprintf("metrics.tags[%d]", i), "%q is not in key:value form", tag)
		}
	}

	return issues
}
