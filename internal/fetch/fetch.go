// Package fetch loads review pages, either directly or through the
// ScrapingBee rendering proxy, and parses them into goquery documents.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"kununu/internal/metrics"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"
)

var tracer = otel.Tracer("kununu/fetch")

const (
	// DefaultProxyEndpoint is the ScrapingBee HTML API.
	DefaultProxyEndpoint = "https://app.scrapingbee.com/api/v1/"

	// APIKeyEnv names the environment variable holding the ScrapingBee key.
	APIKeyEnv = "SCRAPINGBEE_API_KEY"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	maxErrorBody     = 4096
)

// ErrMissingAPIKey is returned for proxied fetches when no ScrapingBee key is configured.
var ErrMissingAPIKey = errors.New("fetch: missing " + APIKeyEnv)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	// Body holds up to 4KB of the response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Options configures a Fetcher. The zero value is usable.
type Options struct {
	// APIKey for ScrapingBee. Empty means read APIKeyEnv at construction.
	APIKey string

	// ProxyEndpoint overrides DefaultProxyEndpoint.
	ProxyEndpoint string

	// RenderJS asks the proxy to execute page JavaScript.
	RenderJS bool

	// Timeout per request. Defaults to 30s.
	Timeout time.Duration

	// UserAgent for direct fetches.
	UserAgent string

	// CloudflareBypass wraps the direct-fetch transport with cloudflare-bp.
	CloudflareBypass bool

	// HTTPClient, if set, is the base client for both modes (tests inject
	// httptest clients here).
	HTTPClient *http.Client
}

// Fetcher performs page fetches. It is safe for concurrent use.
type Fetcher struct {
	direct   *resty.Client
	proxy    *resty.Client
	apiKey   string
	endpoint string
	renderJS bool
}

// New builds a Fetcher from opts.
func New(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}
	endpoint := opts.ProxyEndpoint
	if endpoint == "" {
		endpoint = DefaultProxyEndpoint
	}

	direct := newClient(opts.HTTPClient, timeout)
	direct.SetHeader("User-Agent", ua)
	if opts.CloudflareBypass {
		// The bypass rewrites the TLS config of an *http.Transport in place,
		// so it gets a clone and a caller's transport is left alone.
		rt := direct.GetClient().Transport
		switch t := rt.(type) {
		case nil:
			rt = http.DefaultTransport.(*http.Transport).Clone()
		case *http.Transport:
			rt = t.Clone()
		}
		direct.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(rt)
	}

	return &Fetcher{
		direct:   direct,
		proxy:    newClient(opts.HTTPClient, timeout),
		apiKey:   apiKey,
		endpoint: endpoint,
		renderJS: opts.RenderJS,
	}
}

func newClient(base *http.Client, timeout time.Duration) *resty.Client {
	var c *resty.Client
	if base != nil {
		// Copy so per-mode transport changes don't leak into the caller's client.
		hc := *base
		c = resty.NewWithClient(&hc)
	} else {
		c = resty.New()
	}
	c.SetTimeout(timeout)
	return c
}

// Fetch downloads pageURL and parses it as HTML. With viaProxy the request is
// routed through ScrapingBee using the configured API key.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string, viaProxy bool) (*goquery.Document, error) {
	body, contentType, err := f.FetchRaw(ctx, pageURL, viaProxy)
	if err != nil {
		return nil, err
	}
	return Parse(body, contentType)
}

// Parse decodes body to UTF-8 according to contentType (or content sniffing)
// and parses it as HTML.
func Parse(body []byte, contentType string) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// FetchRaw downloads pageURL and returns the body and its Content-Type.
func (f *Fetcher) FetchRaw(ctx context.Context, pageURL string, viaProxy bool) ([]byte, string, error) {
	ctx, span := tracer.Start(ctx, "fetch:FetchRaw")
	defer span.End()
	span.SetAttributes(
		attribute.String("url", pageURL),
		attribute.Bool("proxy", viaProxy),
	)

	var req *resty.Request
	target := pageURL
	if viaProxy {
		if f.apiKey == "" {
			span.SetStatus(codes.Error, ErrMissingAPIKey.Error())
			return nil, "", ErrMissingAPIKey
		}
		target = f.endpoint
		req = f.proxy.R().SetQueryParams(map[string]string{
			"api_key":   f.apiKey,
			"url":       pageURL,
			"render_js": strconv.FormatBool(f.renderJS),
		})
	} else {
		req = f.direct.R()
	}

	start := time.Now()
	res, err := req.SetContext(ctx).Get(target)
	dur := time.Since(start)
	if err != nil {
		err = redactKey(err, f.apiKey)
		metrics.RecordHTTP(0, dur, -1, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, "", fmt.Errorf("http get %s: %w", pageURL, err)
	}

	body := res.Body()
	status := res.StatusCode()
	metrics.RecordHTTP(status, dur, int64(len(body)), nil)
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		err := &StatusError{
			URL:        pageURL,
			StatusCode: status,
			Body:       strings.TrimSpace(string(snippet)),
		}
		span.SetStatus(codes.Error, "non-2xx response")
		return nil, "", err
	}

	return body, res.Header().Get("Content-Type"), nil
}

// redactKey keeps the ScrapingBee key out of error messages, which embed the
// full request URL.
func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, url.QueryEscape(key), "REDACTED")
		uerr.URL = strings.ReplaceAll(uerr.URL, key, "REDACTED")
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
