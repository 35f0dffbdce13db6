// Package links pulls navigation links out of a container element on a
// listing page.
package links

import (
	"errors"
	"fmt"
	"strings"

	"kununu/internal/metrics"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultContainerClass is the CSS class of kununu's link-list container.
	DefaultContainerClass = "LinksLevel_container__cGmmL"

	// DefaultBaseURL is prepended to every extracted href.
	DefaultBaseURL = "https://www.kununu.com/de/"
)

// ErrContainerNotFound is returned when no element carries the container class.
var ErrContainerNotFound = errors.New("links: container not found")

// Extract locates the first element with class cssClass and returns baseURL
// concatenated with the href of every anchor inside it, in document order.
// Anchors without an href attribute are skipped. Hrefs are joined verbatim,
// not resolved, so site-relative paths must match the base URL's shape.
func Extract(doc *goquery.Document, cssClass, baseURL string) ([]string, error) {
	cssClass = strings.TrimSpace(cssClass)
	if cssClass == "" {
		return nil, fmt.Errorf("%w: empty class", ErrContainerNotFound)
	}

	container := doc.Find(classSelector(cssClass)).First()
	if container.Length() == 0 {
		return nil, fmt.Errorf("%w: class=%q", ErrContainerNotFound, cssClass)
	}

	out := make([]string, 0, 16)
	container.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		out = append(out, baseURL+href)
	})

	metrics.RecordLinks(len(out))
	return out, nil
}

// classSelector builds a ".class" selector, escaping characters that CSS
// would otherwise treat as syntax.
func classSelector(class string) string {
	var b strings.Builder
	b.Grow(len(class) + 1)
	b.WriteByte('.')
	for i, r := range class {
		switch {
		case r == '-' || r == '_' || r >= 0x80 ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				// A leading digit must be hex-escaped.
				fmt.Fprintf(&b, "\\%x ", r)
				continue
			}
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
