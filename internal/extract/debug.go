package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugSelector writes every match of selector in doc, as trimmed text or as
// outer HTML, each followed by a blank line. It returns the number of matches.
// Used while authoring mapping files.
func DebugSelector(w io.Writer, doc *goquery.Document, selector string, textOnly bool) (int, error) {
	var (
		n   int
		err error
	)
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n++
		var block string
		if textOnly {
			block = strings.TrimSpace(s.Text())
		} else if block, err = goquery.OuterHtml(s); err != nil {
			block, _ = s.Html()
			err = nil
		}
		_, err = fmt.Fprintf(w, "%s\n\n", block)
		return err == nil
	})
	if err != nil {
		return n, fmt.Errorf("write selector match: %w", err)
	}
	return n, nil
}
