package links

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestExtract(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
		<nav><a href="outside">not me</a></nav>
		<div class="grid LinksLevel_container__cGmmL">
			<a href="berlin/it">IT</a>
			<span><a href="berlin/handel">Handel</a></span>
			<a>no href</a>
			<a href="">empty</a>
		</div>
		<div class="LinksLevel_container__cGmmL"><a href="second">ignored</a></div>
	`)

	got, err := Extract(doc, DefaultContainerClass, DefaultBaseURL)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{
		"https://www.kununu.com/de/berlin/it",
		"https://www.kununu.com/de/berlin/handel",
		"https://www.kununu.com/de/",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract=%v\nwant %v", got, want)
	}
}

func TestExtract_EmptyContainer(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div class="box"><p>no links</p></div>`)
	got, err := Extract(doc, "box", "https://x/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no links, got %v", got)
	}
}

func TestExtract_ContainerNotFound(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div class="other"><a href="x">x</a></div>`)
	for _, class := range []string{"missing", "", "  "} {
		_, err := Extract(doc, class, DefaultBaseURL)
		if !errors.Is(err, ErrContainerNotFound) {
			t.Fatalf("class %q: err=%v, want ErrContainerNotFound", class, err)
		}
	}
}

func TestClassSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "LinksLevel_container__cGmmL", want: ".LinksLevel_container__cGmmL"},
		{in: "a:b", want: `.a\:b`},
		{in: "1col", want: `.\31 col`},
	}
	for _, tc := range tests {
		if got := classSelector(tc.in); got != tc.want {
			t.Fatalf("classSelector(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

// Escaped selectors must still match the element.
func TestExtract_SpecialCharsInClass(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<ul class="md:grid"><li><a href="a">a</a></li></ul>`)
	got, err := Extract(doc, "md:grid", "/")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"/a"}) {
		t.Fatalf("Extract=%v", got)
	}
}
