package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidJSON is matched (via errors.Is) by every error NormalizeNulls
// returns for input that is not a single valid JSON text.
var ErrInvalidJSON = errors.New("invalid json")

// maxDepth caps object/array nesting, matching encoding/json.
const maxDepth = 10000

var errTooDeep = fmt.Errorf("exceeded max depth %d", maxDepth)

// ParseError describes why a JSON text could not be parsed.
type ParseError struct {
	// Offset is the input byte offset the decoder had reached, when known.
	Offset int64
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse json at offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidJSON) match any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidJSON }

// NormalizeNulls parses jsonText and returns a value with identical structure
// and identical scalars. JSON null stays nil; it is never replaced by a
// sentinel. Objects come back as *Object (key order kept), arrays as []any and
// numbers as json.Number.
//
// The rewrite step is currently the identity. It is kept separate from parsing
// so a null-substitution policy has one place to live.
func NormalizeNulls(jsonText string) (any, error) {
	v, err := parse(strings.NewReader(jsonText))
	if err != nil {
		return nil, err
	}
	return replaceNulls(v), nil
}

func replaceNulls(v any) any {
	switch t := v.(type) {
	case *Object:
		out := NewObject(t.Len())
		t.Range(func(k string, child any) bool {
			out.Set(k, replaceNulls(child))
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = replaceNulls(child)
		}
		return out
	case nil:
		return nil
	default:
		return v
	}
}

// parse decodes exactly one JSON value from r. Empty input and trailing data
// are errors.
func parse(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
	}

	// Anything after the first value is extra data.
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("extra data after value: %v", tok)
		}
		return nil, &ParseError{Offset: dec.InputOffset(), Err: err}
	}
	return v, nil
}

// decodeValue reads one value from the token stream, building *Object for
// objects so key order survives. depth is the number of enclosing containers.
func decodeValue(dec *json.Decoder, depth int) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	d, ok := tok.(json.Delim)
	if !ok {
		// string, json.Number, bool or nil
		return tok, nil
	}
	if (d == '{' || d == '[') && depth >= maxDepth {
		return nil, errTooDeep
	}

	switch d {
	case '{':
		obj := NewObject(8)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, want string", kt)
			}
			val, err := decodeValue(dec, depth+1)
			if err == errTooDeep {
				return nil, err
			}
			if err != nil {
				return nil, fmt.Errorf("value for key %q: %w", key, err)
			}
			obj.Set(key, val)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		return obj, nil

	case '[':
		arr := make([]any, 0)
		for dec.More() {
			val, err := decodeValue(dec, depth+1)
			if err == errTooDeep {
				return nil, err
			}
			if err != nil {
				return nil, fmt.Errorf("array element %d: %w", len(arr), err)
			}
			arr = append(arr, val)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	if err != nil {
		return err
	}
	if tok != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
