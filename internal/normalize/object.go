package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Object is an insertion-ordered mapping of string keys to JSON-like values.
//
// JSON-like values are, recursively: *Object, map[string]any, []any, string,
// json.Number (or any Go number), bool and nil.
//
// Order matters for Flatten: when two paths produce the same flattened key the
// later one wins, so "later" has to be well defined.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns an empty Object with room for n keys.
func NewObject(n int) *Object {
	return &Object{
		keys: make([]string, 0, n),
		vals: make(map[string]any, n),
	}
}

// Set stores v under key. Overwriting an existing key keeps its original position.
func (o *Object) Set(key string, v any) {
	if o.vals == nil {
		o.vals = make(map[string]any)
	}
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Range calls fn for each key/value pair in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}

// Equal reports whether o and p hold the same keys in the same order with
// deeply equal values. A nil Object equals any empty one.
func (o *Object) Equal(p *Object) bool {
	if o == nil || p == nil {
		return o.Len() == 0 && p.Len() == 0
	}
	if o.Len() != p.Len() {
		return false
	}
	for i, k := range o.keys {
		if p.keys[i] != k {
			return false
		}
		if !valuesEqual(o.vals[k], p.vals[k]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case *Object:
		y, ok := b.(*Object)
		return ok && x.Equal(y)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valuesEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !valuesEqual(xv, yv) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// MarshalJSON writes the object with keys in insertion order. HTML characters
// are not escaped.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeNoEscape(&buf, k); err != nil {
			return nil, fmt.Errorf("encode key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := encodeNoEscape(&buf, o.vals[k]); err != nil {
			return nil, fmt.Errorf("encode value for %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeNoEscape(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encoder always terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// UnmarshalJSON decodes a JSON object, preserving key order. Nested objects
// become *Object and numbers become json.Number.
func (o *Object) UnmarshalJSON(b []byte) error {
	v, err := parse(bytes.NewReader(b))
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return fmt.Errorf("%w: got %s", ErrNotMapping, kindOf(v))
	}
	*o = *obj
	return nil
}

// kindOf names the JSON kind of v for error messages.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Object, map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
