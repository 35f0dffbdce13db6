package normalize

import (
	"errors"
	"fmt"
)

// ErrNotMapping is returned when a mapping was required but something else was given.
var ErrNotMapping = errors.New("not a mapping")

// Flatten collapses nested mappings into a single-level *Object whose keys are
// the ancestor keys joined with "_". prefix is prepended to every key (joined
// with "_" unless empty).
//
// Only mappings are flattened; sequences and scalars are copied as values.
//
//	{"a": {"b": 1, "c": 2}, "d": 3} -> {"a_b": 1, "a_c": 2, "d": 3}
//
// When two paths produce the same key the later one overwrites the earlier
// one, keeping the earlier position:
//
//	{"a": {"b": 1}, "a_b": 2} -> {"a_b": 2}
//
// Flatten fails with ErrNotMapping if v is not *Object or map[string]any.
func Flatten(v any, prefix string) (*Object, error) {
	out := NewObject(16)
	if err := flattenInto(out, v, prefix); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *Object, v any, prefix string) error {
	switch t := v.(type) {
	case *Object:
		t.Range(func(k string, child any) bool {
			emitFlat(out, joinKey(prefix, k), child)
			return true
		})
		return nil

	case map[string]any:
		for _, k := range sortedKeys(t) {
			emitFlat(out, joinKey(prefix, k), t[k])
		}
		return nil

	default:
		return fmt.Errorf("flatten: %w: got %s", ErrNotMapping, kindOf(v))
	}
}

func emitFlat(out *Object, key string, v any) {
	switch v.(type) {
	case *Object, map[string]any:
		// Nested mappings cannot fail.
		_ = flattenInto(out, v, key)
	default:
		out.Set(key, v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}
