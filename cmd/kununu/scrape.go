package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"kununu/internal/extract"
	"kununu/internal/scrape"

	"github.com/spf13/cobra"
)

type scrapeFlags struct {
	file         string
	dir          string
	mappings     string
	direct       bool
	record       bool
	completeOnly bool
}

func newScrapeCmd(a *app) *cobra.Command {
	var fl scrapeFlags

	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Scrape company profiles and print one JSON row per page",
		Long: `Scrapes company profile pages given as arguments, listed in --file (one URL
per line, "-" for stdin, "#" starts a comment), or saved as HTML files in --dir.
Each page becomes one JSON object per output line: the row projected onto the
output columns, or with --record every flattened field.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScrape(cmd, args, fl)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fl.file, "file", "", `file with one URL per line ("-" reads stdin)`)
	f.StringVar(&fl.dir, "dir", "", "directory of saved profile pages (no network access)")
	f.StringVar(&fl.mappings, "mappings", "", "JSON5 extraction mapping file (default from config, else the embedded Next.js data)")
	f.BoolVar(&fl.direct, "direct", false, "fetch directly instead of through the proxy")
	f.BoolVar(&fl.record, "record", false, "print every flattened field instead of the projected row")
	f.BoolVar(&fl.completeOnly, "complete-only", false, "skip records missing a required field")
	return cmd
}

func (a *app) runScrape(cmd *cobra.Command, args []string, fl scrapeFlags) error {
	if fl.dir != "" && (len(args) > 0 || fl.file != "") {
		return usagef("--dir cannot be combined with URLs or --file")
	}

	var urls []string
	if fl.dir == "" {
		urls = append(urls, args...)
		if fl.file != "" {
			fromFile, err := a.readURLs(fl.file)
			if err != nil {
				return usageError{err}
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return usagef("no pages to scrape: pass URLs, --file or --dir")
		}
	}

	if fl.direct {
		a.cfg.Fetch.Direct = true
	}
	if err := a.checkConfig(fl.dir == ""); err != nil {
		return err
	}

	mappingsPath := fl.mappings
	if mappingsPath == "" {
		mappingsPath = a.cfg.Mappings
	}
	var mf *extract.MappingFile
	if mappingsPath != "" {
		var err error
		if mf, err = extract.LoadMappingFile(mappingsPath); err != nil {
			return usageError{fmt.Errorf("load mappings: %w", err)}
		}
	}

	ctx := cmd.Context()
	defer a.startMetrics(ctx)()

	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	emit := func(res *scrape.Result) error {
		if fl.completeOnly && !res.Complete() {
			a.log.WithField("source", res.Source).WithField("missing", res.Missing).Info("skipping incomplete record")
			return nil
		}
		out := res.Row
		if fl.record {
			out = res.Record
		}
		if fl.dir != "" {
			out.Set("source_file", res.Source)
		}
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}

	p := a.pipeline(mf)

	if fl.dir != "" {
		stats, err := p.ProcessDir(ctx, fl.dir, emit)
		if err != nil {
			return fmt.Errorf("dir scrape: %w", err)
		}
		a.log.WithField("files", stats.Files).WithField("emitted", stats.Emitted).
			WithField("skipped", stats.Skipped).Info("directory scraped")
		return nil
	}

	failed := 0
	for _, u := range urls {
		res, err := p.Process(ctx, u)
		if err != nil {
			failed++
			a.log.WithError(err).WithField("url", u).Error("scrape failed")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		if err := emit(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(urls))
	}
	return nil
}

// readURLs reads one URL per line. Blank lines and "#" comments are skipped.
func (a *app) readURLs(path string) ([]string, error) {
	var r io.Reader = a.stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open url file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}
