package model

import (
	"slices"
)

// FlatRow maps dotted field paths to terminal values. Missing paths are simply absent.
type FlatRow map[string]any

func (r FlatRow) Get(path string) (any, bool) {
	v, ok := r[path]
	return v, ok
}

// Flatten joins nested object keys with '.' so {"a":{"b":1}} becomes {"a.b":1}.
// Lists are terminal: a list of scalars is copied in source order and a list
// that holds objects is kept as a single opaque value. Empty objects contribute
// no keys. Flatten never fails.
func Flatten(rec Record) FlatRow {
	row := make(FlatRow, len(rec))
	flattenInto(row, "", rec)
	return row
}

func flattenInto(row FlatRow, prefix string, obj map[string]any) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flattenInto(row, path, v)
		case Record:
			flattenInto(row, path, v)
		case []any:
			row[path] = slices.Clone(v)
		default:
			row[path] = v
		}
	}
}

// IsScalarList reports whether every element of v is neither an object nor a list.
func IsScalarList(v []any) bool {
	return !slices.ContainsFunc(v, func(e any) bool {
		switch e.(type) {
		case map[string]any, Record, []any:
			return true
		}
		return false
	})
}
