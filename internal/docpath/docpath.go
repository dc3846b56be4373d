// Package docpath reads and writes values in nested JSON documents
// addressed by dot-separated paths.
//
// Writes are copy-on-write: Set returns a new document and never touches
// its input, so a document loaded once can be shared with readers while a
// modified copy is prepared for writing.
//
// Every path is validated before traversal. Segments that name structural
// members in other runtimes (__proto__, constructor, prototype) are rejected
// on both read and write, since config paths may come from user-editable
// files that other tools consume.
package docpath

import (
	"strings"

	apperrors "github.com/systmms/openclaw-secure/internal/errors"
)

// Document is a decoded JSON object.
type Document = map[string]any

var reservedSegments = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// Validate rejects empty paths, empty segments, and reserved segments.
func Validate(path string) error {
	if path == "" {
		return &apperrors.UnsafePathError{Path: path}
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return &apperrors.UnsafePathError{Path: path}
		}
		if _, bad := reservedSegments[seg]; bad {
			return &apperrors.UnsafePathError{Path: path, Segment: seg}
		}
	}
	return nil
}

// Get returns the value at path. The boolean is false when any segment is
// missing or an intermediate value is not an object; that is not an error.
func Get(doc Document, path string) (any, bool, error) {
	if err := Validate(path); err != nil {
		return nil, false, err
	}

	var current any = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok || m == nil {
			return nil, false, nil
		}
		current, ok = m[seg]
		if !ok {
			return nil, false, nil
		}
	}
	return current, true, nil
}

// Has reports whether a value exists at path.
func Has(doc Document, path string) (bool, error) {
	_, ok, err := Get(doc, path)
	return ok, err
}

// Set returns a deep copy of doc with value stored at path. Missing
// intermediate objects are created and non-object intermediates are
// replaced by objects.
func Set(doc Document, path string, value any) (Document, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}

	result := Clone(doc)
	if result == nil {
		result = Document{}
	}

	segments := strings.Split(path, ".")
	current := result
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok || next == nil {
			next = map[string]any{}
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value

	return result, nil
}

// Clone deep-copies a document. Nested objects and arrays are copied;
// scalars are shared since they are immutable.
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	return cloneValue(doc).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}
