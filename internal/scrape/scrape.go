// Package scrape turns kununu company pages into flat, column-projected rows.
//
// A page goes through these steps:
//
//	fetch -> embedded JSON -> NormalizeKeys -> Flatten -> merge mapped fields
//	      -> columns.Project + columns.MissingRequired
//
// Every step is timed through the metrics facade and failures are logged
// with the page's URL or file name.
package scrape

import (
	"context"
	"fmt"
	"time"

	"kununu/internal/columns"
	"kununu/internal/extract"
	"kununu/internal/links"
	"kununu/internal/metrics"
	"kununu/internal/normalize"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kununu/scrape")

// Step names reported to metrics.
const (
	StepFetch     = "fetch"
	StepExtract   = "extract"
	StepNormalize = "normalize"
	StepLinks     = "links"
)

// Fetcher loads and parses a page. *fetch.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, viaProxy bool) (*goquery.Document, error)
}

// Options configures a Pipeline.
type Options struct {
	// Mappings drives extraction. Nil means extract.DefaultMappingFile.
	Mappings *extract.MappingFile

	// ViaProxy routes fetches through the rendering proxy.
	ViaProxy bool

	// ContainerClass and BaseURL configure Links. Empty values use the
	// links package defaults.
	ContainerClass string
	BaseURL        string

	Logger logrus.FieldLogger
}

// Result is one processed page.
type Result struct {
	// Source is the page URL, or the file name in directory mode.
	Source string `json:"source"`

	// Record holds every flattened field, before projection.
	Record *normalize.Object `json:"-"`

	// Row is Record projected onto the column table.
	Row *normalize.Object `json:"row"`

	// Missing lists required keys Record lacks, in required-key order.
	Missing []string `json:"missing,omitempty"`
}

// Complete reports whether the record carries every required key.
func (r *Result) Complete() bool { return len(r.Missing) == 0 }

// Pipeline processes pages. It is safe for concurrent use when its Fetcher is.
type Pipeline struct {
	fetcher        Fetcher
	mappings       *extract.MappingFile
	viaProxy       bool
	containerClass string
	baseURL        string
	log            logrus.FieldLogger
}

// New returns a Pipeline using f for network access. f may be nil when only
// ProcessDocument and ProcessDir are used.
func New(f Fetcher, opts Options) *Pipeline {
	p := &Pipeline{
		fetcher:        f,
		mappings:       opts.Mappings,
		viaProxy:       opts.ViaProxy,
		containerClass: opts.ContainerClass,
		baseURL:        opts.BaseURL,
		log:            opts.Logger,
	}
	if p.mappings == nil {
		p.mappings = extract.DefaultMappingFile()
	}
	if p.containerClass == "" {
		p.containerClass = links.DefaultContainerClass
	}
	if p.baseURL == "" {
		p.baseURL = links.DefaultBaseURL
	}
	if p.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		p.log = l
	}
	return p
}

// Process fetches pageURL and runs it through the pipeline.
func (p *Pipeline) Process(ctx context.Context, pageURL string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "scrape:Process", trace.WithAttributes(attribute.String("url", pageURL)))
	defer span.End()

	doc, err := p.fetch(ctx, pageURL)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	res, err := p.ProcessDocument(ctx, pageURL, doc)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("missing", len(res.Missing)))
	return res, nil
}

// ProcessDocument runs an already parsed page through the pipeline. source
// names the page in the result and in logs. When the record has no "url"
// field, source is stored there.
func (p *Pipeline) ProcessDocument(ctx context.Context, source string, doc *goquery.Document) (*Result, error) {
	_, span := tracer.Start(ctx, "scrape:ProcessDocument", trace.WithAttributes(attribute.String("source", source)))
	defer span.End()
	log := p.log.WithField("source", source)

	start := time.Now()
	payload, fields, err := extract.Page(doc, p.mappings)
	metrics.RecordStep(StepExtract, start, err)
	if err != nil {
		log.WithError(err).Warn("extract failed")
		endSpan(span, err)
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}

	start = time.Now()
	record, err := Record(payload, fields)
	metrics.RecordStep(StepNormalize, start, err)
	if err != nil {
		log.WithError(err).Warn("normalize failed")
		endSpan(span, err)
		return nil, fmt.Errorf("normalize %s: %w", source, err)
	}
	if _, ok := record.Get("url"); !ok {
		record.Set("url", source)
	}

	res := &Result{
		Source:  source,
		Record:  record,
		Row:     columns.Project(record),
		Missing: columns.MissingRequired(record),
	}
	if res.Complete() {
		metrics.RecordRecords("complete", 1)
	} else {
		metrics.RecordRecords("incomplete", 1)
		log.WithField("missing", res.Missing).Debug("record incomplete")
	}
	log.WithFields(logrus.Fields{"fields": record.Len(), "columns": res.Row.Len()}).Debug("page processed")
	return res, nil
}

// Record builds the flat record for one page: the embedded payload with its
// keys normalized and flattened, then the mapped fields, normalized and
// flattened the same way, set over it. A nil payload contributes nothing.
func Record(payload any, fields *normalize.Object) (*normalize.Object, error) {
	record := normalize.NewObject(0)
	if payload != nil {
		flat, err := normalize.Flatten(normalize.NormalizeKeys(payload), "")
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		record = flat
	}

	if fields != nil && fields.Len() > 0 {
		flat, err := normalize.Flatten(normalize.NormalizeKeys(fields), "")
		if err != nil {
			return nil, fmt.Errorf("fields: %w", err)
		}
		flat.Range(func(k string, v any) bool {
			record.Set(k, v)
			return true
		})
	}
	return record, nil
}

// Links fetches a listing page and returns the links inside its container,
// each prefixed with the base URL.
func (p *Pipeline) Links(ctx context.Context, pageURL string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "scrape:Links", trace.WithAttributes(attribute.String("url", pageURL)))
	defer span.End()

	doc, err := p.fetch(ctx, pageURL)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	start := time.Now()
	out, err := links.Extract(doc, p.containerClass, p.baseURL)
	metrics.RecordStep(StepLinks, start, err)
	if err != nil {
		p.log.WithField("url", pageURL).WithError(err).Warn("link extraction failed")
		endSpan(span, err)
		return nil, fmt.Errorf("links %s: %w", pageURL, err)
	}
	span.SetAttributes(attribute.Int("links", len(out)))
	p.log.WithFields(logrus.Fields{"url": pageURL, "links": len(out)}).Info("links extracted")
	return out, nil
}

func (p *Pipeline) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if p.fetcher == nil {
		return nil, fmt.Errorf("fetch %s: no fetcher configured", pageURL)
	}
	start := time.Now()
	doc, err := p.fetcher.Fetch(ctx, pageURL, p.viaProxy)
	metrics.RecordStep(StepFetch, start, err)
	if err != nil {
		p.log.WithFields(logrus.Fields{"url": pageURL, "proxy": p.viaProxy}).WithError(err).Warn("fetch failed")
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	return doc, nil
}

func endSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
