package normalize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CamelToSnake converts camelCase or PascalCase to snake_case.
//
// An underscore is inserted before every ASCII uppercase letter except one in
// the first position, then the whole string is lowercased. Runs of capitals
// are split letter by letter:
//
//	"myKey"    -> "my_key"
//	"Name"     -> "name"
//	"HTTPCode" -> "h_t_t_p_code"
//
// Keys produced by this scheme are stable: applying it again changes nothing.
func CamelToSnake(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	// Bytewise so invalid UTF-8 passes through unchanged.
	for i := 0; i < len(name); i++ {
		c := name[i]
		if i > 0 && c >= 'A' && c <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteByte(c)
	}
	return lower(b.String())
}

// lower applies full Unicode case mapping (e.g. U+0130 -> "i̇") to the valid
// UTF-8 runs of s and copies invalid bytes as-is. A Caser is stateful, so
// build one per call.
func lower(s string) string {
	c := cases.Lower(language.Und)
	if utf8.ValidString(s) {
		return c.String(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		n := validPrefix(s)
		if n == 0 {
			b.WriteByte(s[0])
			s = s[1:]
			continue
		}
		b.WriteString(c.String(s[:n]))
		s = s[n:]
	}
	return b.String()
}

func validPrefix(s string) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		n += size
	}
	return n
}

// NormalizeKeys returns a copy of v with every mapping key rewritten by
// CamelToSnake. Mapping values and sequence elements are recursed into; all
// other values are returned unchanged.
//
// If two keys of one mapping normalize to the same key, the later one wins.
// For map[string]any "later" means sorted key order.
func NormalizeKeys(v any) any {
	switch t := v.(type) {
	case *Object:
		out := NewObject(t.Len())
		t.Range(func(k string, child any) bool {
			out.Set(CamelToSnake(k), NormalizeKeys(child))
			return true
		})
		return out

	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range sortedKeys(t) {
			out[CamelToSnake(k)] = NormalizeKeys(t[k])
		}
		return out

	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = NormalizeKeys(child)
		}
		return out

	default:
		return v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
