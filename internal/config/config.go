// Package config loads the scraper configuration.
//
// A config file is JSON5. Next to it an optional "<name>.local.<ext>" file
// may override individual values; local files are meant to stay out of
// version control and carry secrets such as the ScrapingBee key. Environment
// variables are applied last.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"
	"github.com/titanous/json5"

	"kununu/internal/fetch"
	"kununu/internal/links"
)

// Environment variables read by ApplyEnv.
const (
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvMetricsTags    = "METRICS_TAGS"
)

// Config is the top-level scraper configuration.
type Config struct {
	// Job names the run in logs and in the "job:<name>" metrics tag.
	Job string `json:"job"`

	Fetch   Fetch   `json:"fetch"`
	Links   Links   `json:"links"`
	Metrics Metrics `json:"metrics"`

	// Mappings is an optional path to an extraction mapping file. Relative
	// paths are resolved against the config file directory.
	Mappings string `json:"mappings,omitempty"`
}

// Fetch configures page retrieval.
type Fetch struct {
	APIKey           string `json:"api_key,omitempty"`
	ProxyEndpoint    string `json:"proxy_endpoint,omitempty"`
	Direct           bool   `json:"direct,omitempty"` // skip the proxy
	RenderJS         bool   `json:"render_js,omitempty"`
	Timeout          string `json:"timeout,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	CloudflareBypass bool   `json:"cloudflare_bypass,omitempty"`
}

// Links configures link extraction.
type Links struct {
	ContainerClass string `json:"container_class,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
}

// Metrics selects and tunes the metrics backend.
type Metrics struct {
	Backend    string   `json:"backend,omitempty"` // "none" or "datadog"
	Tags       []string `json:"tags,omitempty"`
	FlushEvery string   `json:"flush_every,omitempty"`
}

// Default returns the built-in configuration. Load fills every unset field
// from it, so booleans default to false.
func Default() Config {
	return Config{
		Job: "kununu",
		Fetch: Fetch{
			ProxyEndpoint: fetch.DefaultProxyEndpoint,
			Timeout:       "30s",
		},
		Links: Links{
			ContainerClass: links.DefaultContainerClass,
			BaseURL:        links.DefaultBaseURL,
		},
		Metrics: Metrics{
			Backend:    "none",
			FlushEvery: "60s",
		},
	}
}

// Load reads path and its local override, fills defaults and applies the
// environment. An empty path yields Default with the environment applied.
func Load(path string, log logrus.FieldLogger) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		var err error
		cfg, err = ReadConfig[Config](path, log)
		if err != nil {
			return Config{}, err
		}
		if cfg.Mappings != "" && !filepath.IsAbs(cfg.Mappings) {
			cfg.Mappings = filepath.Join(filepath.Dir(path), cfg.Mappings)
		}
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ReadConfig reads a JSON5 file and merges "<name>.local.<ext>" over it.
// Non-zero values set in the local file win. Zero values never override, so a
// local file cannot turn a base true back to false, clear a string or
// empty a list; change the base file for that. It returns an error wrapping
// os.ErrNotExist when neither file exists.
func ReadConfig[T any](path string, log logrus.FieldLogger) (T, error) {
	var out T
	found := false

	base, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return out, fmt.Errorf("read config: %w", err)
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("parse config %s: %w", path, err)
		}
		found = true
	}

	local := LocalPath(path)
	override, err := os.ReadFile(local)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return out, fmt.Errorf("read config: %w", err)
	}
	if len(override) > 0 {
		var o T
		if err := json5.Unmarshal(override, &o); err != nil {
			return out, fmt.Errorf("parse config %s: %w", local, err)
		}
		if err := mergo.Merge(&out, o, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge config: %w", err)
		}
		if log != nil {
			log.WithField("local", local).Info("merging config with local overrides")
		}
		found = true
	}

	if !found {
		return out, fmt.Errorf("config %s: %w", path, os.ErrNotExist)
	}
	return out, nil
}

// LocalPath returns the override path for a config file:
// "dir/scraper.json5" becomes "dir/scraper.local.json5".
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return stem + ".local" + ext
}

// ApplyEnv overrides values from the environment. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(fetch.APIKeyEnv)); v != "" {
		c.Fetch.APIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvMetricsBackend)); v != "" {
		c.Metrics.Backend = v
	}
	if v := strings.TrimSpace(getenv(EnvMetricsTags)); v != "" {
		c.Metrics.Tags = append(c.Metrics.Tags, splitCSV(v)...)
	}
}

// FetchTimeout returns Fetch.Timeout as a duration. Call Validate first.
func (c Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Timeout)
	return d
}

// MetricsFlushEvery returns Metrics.FlushEvery as a duration. Call Validate first.
func (c Config) MetricsFlushEvery() time.Duration {
	d, _ := time.ParseDuration(c.Metrics.FlushEvery)
	return d
}

// FetchOptions converts the fetch section into fetch.Options.
func (c Config) FetchOptions() fetch.Options {
	return fetch.Options{
		APIKey:           c.Fetch.APIKey,
		ProxyEndpoint:    c.Fetch.ProxyEndpoint,
		RenderJS:         c.Fetch.RenderJS,
		Timeout:          c.FetchTimeout(),
		UserAgent:        c.Fetch.UserAgent,
		CloudflareBypass: c.Fetch.CloudflareBypass,
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
