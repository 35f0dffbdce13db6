// Command kununu scrapes kununu company profiles into flat table rows.
//
// Print the company links of a listing page:
//
//	kununu links "https://www.kununu.com/de/branchen/it"
//
// Scrape profiles (one JSON row per line):
//
//	kununu scrape "https://www.kununu.com/de/acme"
//	kununu scrape --file urls.txt --config scraper.json5
//	kununu scrape --dir ./pages
//
// Normalize a JSON document from stdin:
//
//	cat company.json | kununu normalize --flatten
//	cat company.json | kununu normalize --columns --dump
//
// Try a selector while writing a mapping file:
//
//	kununu select --text --url "https://www.kununu.com/de/acme" "h1"
//
// Proxied fetches read the ScrapingBee key from SCRAPINGBEE_API_KEY or the
// config file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kununu/internal/config"
	"kununu/internal/fetch"
	"kununu/internal/scrape"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// appDeps holds the seams tests replace.
type appDeps struct {
	newFetcher  func(opts fetch.Options) scrape.Fetcher
	initMetrics func(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		newFetcher: func(opts fetch.Options) scrape.Fetcher {
			return fetch.New(opts)
		},
		initMetrics: initMetrics,
	}
}

// run is split out from main so the command can be tested without spawning
// a process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	deps appDeps,
) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, deps: deps}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	if isUsageError(err) {
		return 2
	}
	return 1
}

// usageError marks failures caused by bad flags, arguments or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports unknown subcommands with a plain error.
	return strings.HasPrefix(err.Error(), "unknown command")
}
