package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"kununu/internal/normalize"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNoEmbeddedJSON is returned when the embedded JSON selector matches nothing.
	ErrNoEmbeddedJSON = errors.New("extract: embedded json not found")

	// ErrPathNotFound is returned when a JSON path step does not exist.
	ErrPathNotFound = errors.New("extract: json path not found")
)

// Fields applies mappings relative to root and returns the extracted values
// keyed by Mapping.Field, in mapping order.
//
// Semantics:
//   - If Mapping.All is true, all selector matches are collected into []any.
//   - Otherwise, only the first match is extracted.
//   - If Mapping.Match is set it is a regular expression: group 1 is used when
//     present, else the full match. No match omits the field.
//   - extract=json parses the (filtered) text as JSON.
//
// Missing selectors are not errors; they simply produce no output. Invalid
// regexes and unparseable json values are.
func Fields(root *goquery.Selection, mappings []Mapping) (*normalize.Object, error) {
	out := normalize.NewObject(len(mappings))

	for _, mapping := range mappings {
		re, err := compileOptionalRegex(mapping.Match, mapping.Field)
		if err != nil {
			return nil, err
		}

		extractOne := func(sel *goquery.Selection) (any, bool, error) {
			var s string
			switch mapping.Extract {
			case "text", "json":
				s = strings.TrimSpace(sel.Text())
			case "attr":
				if mapping.Attr == "" {
					return nil, false, nil
				}
				val, ok := sel.Attr(mapping.Attr)
				if !ok {
					return nil, false, nil
				}
				s = strings.TrimSpace(val)
			default:
				// Unknown extraction modes produce no value.
				return nil, false, nil
			}

			s = applyRegexFilter(s, re)
			if s == "" {
				return nil, false, nil
			}
			if mapping.Extract != "json" {
				return s, true, nil
			}
			v, err := normalize.NormalizeNulls(s)
			if err != nil {
				return nil, false, fmt.Errorf("field %q: %w", mapping.Field, err)
			}
			return v, true, nil
		}

		if mapping.All {
			var (
				vals     []any
				firstErr error
			)
			root.Find(mapping.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				v, ok, err := extractOne(sel)
				if err != nil {
					firstErr = err
					return false
				}
				if ok {
					vals = append(vals, v)
				}
				return true
			})
			if firstErr != nil {
				return nil, firstErr
			}
			if len(vals) > 0 {
				out.Set(mapping.Field, vals)
			}
			continue
		}

		sel := root.Find(mapping.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		v, ok, err := extractOne(sel)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Set(mapping.Field, v)
		}
	}

	return out, nil
}

// EmbeddedJSON parses the body of the first element matching selector (usually
// a <script type="application/json">) through normalize.NormalizeNulls.
func EmbeddedJSON(doc *goquery.Document, selector string) (any, error) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: selector=%q", ErrNoEmbeddedJSON, selector)
	}
	v, err := normalize.NormalizeNulls(sel.Text())
	if err != nil {
		return nil, fmt.Errorf("embedded json %q: %w", selector, err)
	}
	return v, nil
}

// At descends a dot-separated path of object keys into v. An empty path
// returns v itself.
func At(v any, path string) (any, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return v, nil
	}

	cur := v
	for i, step := range strings.Split(path, ".") {
		var (
			next any
			ok   bool
		)
		switch t := cur.(type) {
		case *normalize.Object:
			next, ok = t.Get(step)
		case map[string]any:
			next, ok = t[step]
		}
		if !ok {
			walked := strings.Join(strings.Split(path, ".")[:i+1], ".")
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, walked)
		}
		cur = next
	}
	return cur, nil
}

// Page runs a MappingFile against doc. payload is the embedded JSON object
// selected by JSONPath (nil when EmbeddedJSON is unset); fields holds the
// mapping results.
func Page(doc *goquery.Document, mf *MappingFile) (payload any, fields *normalize.Object, err error) {
	if strings.TrimSpace(mf.EmbeddedJSON) != "" {
		raw, err := EmbeddedJSON(doc, mf.EmbeddedJSON)
		if err != nil {
			return nil, nil, err
		}
		payload, err = At(raw, mf.JSONPath)
		if err != nil {
			return nil, nil, err
		}
	}

	fields, err = Fields(doc.Selection, mf.Mappings)
	if err != nil {
		return nil, nil, err
	}
	return payload, fields, nil
}

// compileOptionalRegex compiles pattern, returning (nil, nil) when it is empty.
// Errors name the field so bad configs are easy to find.
func compileOptionalRegex(pattern, field string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex for field=%q: %w", field, err)
	}
	return re, nil
}

// applyRegexFilter applies an optional regex post-processing step to value.
//
// Behavior:
//   - If re is nil, it returns value unchanged.
//   - If re does not match, it returns "" (caller should omit the field).
//   - If re matches and contains capture groups, group 1 is returned.
//   - If re matches with no capture groups, the full match is returned.
func applyRegexFilter(value string, re *regexp.Regexp) string {
	if value == "" || re == nil {
		return value
	}

	sm := re.FindStringSubmatch(value)
	if len(sm) == 0 {
		return ""
	}
	if len(sm) > 1 {
		return sm[1]
	}
	return sm[0]
}
