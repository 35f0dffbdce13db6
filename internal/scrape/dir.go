package scrape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kununu/internal/fetch"
)

// DirStats summarizes a ProcessDir run.
type DirStats struct {
	Files   int // regular files seen
	Emitted int // results passed to emit
	Skipped int // unreadable, unparseable or failed pages
}

// ProcessDir runs every saved page in dir through the pipeline and passes
// each result to emit, ordered by file name. Subdirectories and files whose
// name starts with "." are ignored. Pages that cannot be read or processed
// are logged and skipped; an emit error stops the run.
func (p *Pipeline) ProcessDir(ctx context.Context, dir string, emit func(*Result) error) (DirStats, error) {
	var stats DirStats

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Files++

		log := p.log.WithField("file", e.Name())
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.WithError(err).Warn("skipping unreadable file")
			stats.Skipped++
			continue
		}
		// Same charset handling as live fetches; saved pages carry no
		// Content-Type, so the meta tag or content sniffing decides.
		doc, err := fetch.Parse(b, "")
		if err != nil {
			log.WithError(err).Warn("skipping unparseable file")
			stats.Skipped++
			continue
		}

		res, err := p.ProcessDocument(ctx, e.Name(), doc)
		if err != nil {
			stats.Skipped++
			continue
		}
		if err := emit(res); err != nil {
			return stats, fmt.Errorf("emit %s: %w", e.Name(), err)
		}
		stats.Emitted++
	}
	return stats, nil
}
