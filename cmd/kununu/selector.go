package main

import (
	"fmt"
	"io"

	"kununu/internal/extract"
	"kununu/internal/fetch"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		pageURL  string
		textOnly bool
		direct   bool
	)

	cmd := &cobra.Command{
		Use:   "select <css-selector>",
		Short: "Print the elements matching a selector (for writing mapping files)",
		Long: `Reads HTML from stdin, or fetches --url, and prints every element matching
the selector as outer HTML (or trimmed text with --text), separated by blank lines.`,
		Args: argsUsage(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc *goquery.Document
			if pageURL != "" {
				if direct {
					a.cfg.Fetch.Direct = true
				}
				if err := a.checkConfig(true); err != nil {
					return err
				}
				if a.deps.newFetcher == nil {
					return fmt.Errorf("no fetcher configured")
				}
				var err error
				doc, err = a.deps.newFetcher(a.cfg.FetchOptions()).Fetch(cmd.Context(), pageURL, !a.cfg.Fetch.Direct)
				if err != nil {
					return fmt.Errorf("fetch %s: %w", pageURL, err)
				}
			} else {
				body, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if doc, err = fetch.Parse(body, ""); err != nil {
					return err
				}
			}

			n, err := extract.DebugSelector(a.stdout, doc, args[0], textOnly)
			if err != nil {
				return err
			}
			a.log.WithField("selector", args[0]).WithField("matches", n).Debug("selector evaluated")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&pageURL, "url", "", "fetch the page instead of reading stdin")
	f.BoolVar(&textOnly, "text", false, "print trimmed text instead of outer HTML")
	f.BoolVar(&direct, "direct", false, "fetch directly instead of through the proxy")
	return cmd
}
