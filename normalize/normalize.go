// Package normalize reshapes an extraction table into the column set of a
// schema descriptor and coerces every value to its declared type.
//
// Coercions are looked up by semantic type in a registry, so a new resource
// kind only needs a new descriptor.
package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
)

var newlineStripper = strings.NewReplacer("\r", "", "\n", "")

// Normalize returns a new table holding exactly the descriptor's columns, in
// order. A raw table is read through each field's source path (plus split);
// a table that is already normalized is coerced by column name, which leaves
// correctly typed values untouched. Rows with a value that cannot be coerced
// are left out and reported, one CoercionError per offending cell.
func Normalize(table *model.Table, desc *model.Descriptor) (*model.Table, []*exceptions.CoercionError) {
	names := desc.ColumnNames()
	byName := table.Normalized(names)

	out := &model.Table{
		Columns:        names,
		Rows:           make([]model.FlatRow, 0, len(table.Rows)),
		DateExtraction: table.DateExtraction,
		LogTime:        table.LogTime,
	}

	var rejected []*exceptions.CoercionError
	for i, row := range table.Rows {
		normalized := make(model.FlatRow, len(desc.Fields))
		var rowErrs []*exceptions.CoercionError
		for _, field := range desc.Fields {
			var raw any
			var err error
			if byName {
				raw = row[field.Name]
			} else {
				raw, err = resolve(table, row, field)
			}

			var value any
			if err == nil {
				value, err = coerceCell(field, raw, desc.StripNewlines, !byName)
			}
			if err != nil {
				rowErrs = append(rowErrs, exceptions.NewCoercionError(err, i, field.Name, raw))
				continue
			}
			normalized[field.Name] = value
		}

		if len(rowErrs) > 0 {
			rejected = append(rejected, rowErrs...)
			continue
		}
		out.Rows = append(out.Rows, normalized)
	}

	return out, rejected
}

func coerceCell(field model.Field, raw any, stripNewlines bool, decorate bool) (any, error) {
	value, err := coerce(field, raw)
	if err != nil {
		return nil, err
	}

	if s, ok := value.(string); ok {
		if stripNewlines {
			s = newlineStripper.Replace(s)
		}
		if decorate && field.Quote != "" {
			s = field.Quote + s + field.Quote
		}
		value = s
	}

	if value == nil && field.Required() {
		return nil, errors.New("required column is null")
	}
	return value, nil
}

// resolve reads a field from a raw row: a table tag, or a dotted path with an
// optional positional split.
func resolve(table *model.Table, row model.FlatRow, field model.Field) (any, error) {
	var value any
	switch path := field.SourcePath(); path {
	case model.SourceDateExtraction:
		value = table.DateExtraction
	case model.SourceLogTime:
		value = table.LogTime
	default:
		var ok bool
		if value, ok = row.Get(path); !ok {
			value = subtree(row, path)
		}
	}

	if field.Split == nil || value == nil {
		return value, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("cannot split %T", value)
	}
	return splitSegment(s, *field.Split), nil
}

// splitSegment picks one segment of s; a negative index counts from the end
// and an index out of range yields null.
func splitSegment(s string, split model.Split) any {
	parts := strings.Split(s, split.Sep)
	idx := split.Index
	if idx < 0 {
		idx += len(parts)
	}
	if idx < 0 || idx >= len(parts) {
		return nil
	}
	return parts[idx]
}

// subtree rebuilds the object flattened under path, for json columns that
// capture a whole sub-object such as labels. Nil when nothing is under path.
func subtree(row model.FlatRow, path string) any {
	prefix := path + "."
	var obj map[string]any
	for key, value := range row {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if obj == nil {
			obj = make(map[string]any)
		}
		insertPath(obj, strings.Split(rest, "."), value)
	}
	if obj == nil {
		return nil
	}
	return obj
}

func insertPath(obj map[string]any, parts []string, value any) {
	for _, part := range parts[:len(parts)-1] {
		child, ok := obj[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			obj[part] = child
		}
		obj = child
	}
	obj[parts[len(parts)-1]] = value
}
