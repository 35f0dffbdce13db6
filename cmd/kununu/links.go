package main

import (
	"context"
	"fmt"

	"kununu/internal/scrape"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLinksCmd(a *app) *cobra.Command {
	var (
		class   string
		baseURL string
		direct  bool
		depth   int
		workers int
	)

	cmd := &cobra.Command{
		Use:   "links <listing-url>...",
		Short: "Print the links inside a listing page's link container",
		Long: `Fetches each listing page, finds the first element carrying the container
class and prints the base URL joined with every anchor href inside it, one per line.

With --depth N the printed links are visited too, down to N levels below the
listing pages, and every distinct link is printed once.`,
		Args: argsUsage(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 0 {
				return usagef("--depth must not be negative")
			}
			if cmd.Flags().Changed("class") {
				a.cfg.Links.ContainerClass = class
			}
			if cmd.Flags().Changed("base-url") {
				a.cfg.Links.BaseURL = baseURL
			}
			if direct {
				a.cfg.Fetch.Direct = true
			}
			if err := a.checkConfig(true); err != nil {
				return err
			}

			ctx := cmd.Context()
			defer a.startMetrics(ctx)()

			p := a.pipeline(nil)
			if depth > 0 {
				return a.crawlLinks(ctx, p, args, scrape.CrawlOptions{MaxDepth: depth, Workers: workers})
			}

			failed := 0
			for _, u := range args {
				out, err := p.Links(ctx, u)
				if err != nil {
					failed++
					a.log.WithError(err).WithField("url", u).Error("links failed")
					continue
				}
				for _, l := range out {
					fmt.Fprintln(a.stdout, l)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d listing pages failed", failed, len(args))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&class, "class", "", "CSS class of the link container (default from config)")
	f.StringVar(&baseURL, "base-url", "", "prefix joined to every href (default from config)")
	f.BoolVar(&direct, "direct", false, "fetch directly instead of through the proxy")
	f.IntVar(&depth, "depth", 0, "follow extracted links this many levels deep")
	f.IntVar(&workers, "workers", 4, "concurrent fetches when --depth is set")
	return cmd
}

// crawlLinks prints every distinct link found while crawling. Failures of
// start pages fail the command; deeper failures are only logged.
func (a *app) crawlLinks(ctx context.Context, p *scrape.Pipeline, starts []string, opts scrape.CrawlOptions) error {
	seen := make(map[string]struct{})
	failed := 0
	err := p.Crawl(ctx, starts, opts, func(page scrape.Page) {
		if page.Err != nil {
			log := a.log.WithError(page.Err).WithFields(logrus.Fields{"url": page.URL, "depth": page.Depth})
			if page.Depth == 0 {
				log.Error("links failed")
				failed++
			} else {
				log.Warn("links failed")
			}
			return
		}
		for _, l := range page.Links {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			fmt.Fprintln(a.stdout, l)
		}
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d listing pages failed", failed, len(starts))
	}
	return nil
}
