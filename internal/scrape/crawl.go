package scrape

import (
	"context"
	"net/url"
	"sync"
)

// CrawlOptions bounds a Crawl.
type CrawlOptions struct {
	// MaxDepth is how many link levels below the start pages are visited.
	// 0 visits only the start pages.
	MaxDepth int

	// Workers is the number of concurrent fetches. Defaults to 4.
	Workers int
}

// Page is one visited listing page.
type Page struct {
	URL   string
	Depth int
	Links []string
	Err   error
}

// crawlJob is a URL to visit and its depth relative to the start pages.
type crawlJob struct {
	url   string
	depth int
}

// Crawl visits the start pages, then follows the links found in their link
// containers breadth-first up to opts.MaxDepth. Each URL is visited at most
// once. emit is called once per visited page, never concurrently; page
// failures are reported through Page.Err and do not stop the crawl.
//
// Crawl returns when every reachable page is done, or with ctx.Err() after
// ctx is cancelled and in-flight fetches have finished.
func (p *Pipeline) Crawl(ctx context.Context, starts []string, opts CrawlOptions, emit func(Page)) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	jobs := make(chan crawlJob, 64)
	discovered := make(chan crawlJob, 256)

	// wg counts every job anywhere in the system: in flight to the
	// dispatcher, queued there, or being visited. Every Add(1) is matched by
	// exactly one Done.
	var wg sync.WaitGroup

	var emitMu sync.Mutex
	visit := func(job crawlJob) {
		defer wg.Done()

		var page Page
		if err := ctx.Err(); err != nil {
			page = Page{URL: job.url, Depth: job.depth, Err: err}
		} else {
			out, err := p.Links(ctx, job.url)
			page = Page{URL: job.url, Depth: job.depth, Links: out, Err: err}
		}

		emitMu.Lock()
		emit(page)
		emitMu.Unlock()

		next := job.depth + 1
		if page.Err != nil || next > opts.MaxDepth {
			return
		}
		for _, l := range page.Links {
			// Counted before the send so wg cannot reach zero while the
			// candidate is in flight.
			wg.Add(1)
			discovered <- crawlJob{url: l, depth: next}
		}
	}

	var workersDone sync.WaitGroup
	for i := 0; i < workers; i++ {
		workersDone.Add(1)
		go func() {
			defer workersDone.Done()
			for job := range jobs {
				visit(job)
			}
		}()
	}

	dispatcherDone := make(chan struct{})
	stop := make(chan struct{})
	go dispatch(discovered, jobs, opts.MaxDepth, &wg, stop, dispatcherDone)

	seeded := 0
	for _, u := range starts {
		if _, err := url.Parse(u); err != nil {
			p.log.WithField("url", u).WithError(err).Warn("skipping invalid start URL")
			continue
		}
		wg.Add(1)
		seeded++
		discovered <- crawlJob{url: u, depth: 0}
	}

	go func() {
		wg.Wait()
		close(stop)
	}()

	<-dispatcherDone
	workersDone.Wait()
	p.log.WithField("starts", seeded).Debug("crawl finished")
	return ctx.Err()
}

// dispatch owns the visited set. It drops duplicate and too-deep candidates
// and feeds accepted jobs to workers through an internal FIFO, so it keeps
// draining discovered even while jobs is full. It closes jobs once stop is
// closed, which happens when no work is outstanding.
func dispatch(
	discovered <-chan crawlJob,
	jobs chan<- crawlJob,
	maxDepth int,
	wg *sync.WaitGroup,
	stop <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

	visited := make(map[string]struct{})
	queue := make([]crawlJob, 0, 64)

	accept := func(job crawlJob) {
		if job.depth > maxDepth {
			wg.Done()
			return
		}
		parsed, err := url.Parse(job.url)
		if err != nil {
			wg.Done()
			return
		}
		parsed.Fragment = ""
		key := parsed.String()
		if _, seen := visited[key]; seen {
			wg.Done()
			return
		}
		visited[key] = struct{}{}
		job.url = key
		queue = append(queue, job)
	}

	for {
		var (
			next crawlJob
			out  chan<- crawlJob
		)
		if len(queue) > 0 {
			next = queue[0]
			out = jobs
		}

		select {
		case <-stop:
			close(jobs)
			return
		case job := <-discovered:
			accept(job)
		case out <- next:
			queue[0] = crawlJob{}
			queue = queue[1:]
		}
	}
}
