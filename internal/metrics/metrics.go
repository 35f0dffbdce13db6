// Package metrics is the backend-agnostic metrics facade used by the scraper.
//
// Code records through the package-level helpers; main decides which Backend
// (if any) receives the data. The default backend discards everything, so
// library code and tests never need to configure metrics.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions (e.g. {"status": "200"}).
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by recorders and backends.
const (
	HTTPRequestsTotal    = "scrape_http_requests_total"
	HTTPErrorsTotal      = "scrape_http_errors_total"
	HTTPDurationSeconds  = "scrape_http_duration_seconds"
	HTTPDownloadBytes    = "scrape_http_download_bytes"
	StepTotal            = "scrape_step_total"
	StepDurationSeconds  = "scrape_step_duration_seconds"
	RecordsTotal         = "scrape_records_total"
	LinksExtractedTotal  = "scrape_links_total"
	statusUnknown        = "unknown"
	statusTransportError = "error"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordHTTP records one HTTP exchange. status 0 with a non-nil err means the
// request never produced a response.
func RecordHTTP(status int, dur time.Duration, sizeBytes int64, err error) {
	st := statusUnknown
	switch {
	case status > 0:
		st = strconv.Itoa(status)
	case err != nil:
		st = statusTransportError
	}
	l := Labels{"status": st}

	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || status < 200 || status >= 300 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	b.ObserveHistogram(HTTPDurationSeconds, dur.Seconds(), l)
	if sizeBytes >= 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(sizeBytes), l)
	}
}

// RecordStep records the outcome and duration of one pipeline step.
func RecordStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
}

// RecordRecords counts n records of the given kind (e.g. "complete", "incomplete").
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordLinks counts n extracted links.
func RecordLinks(n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(LinksExtractedTotal, float64(n), nil)
}
