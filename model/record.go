package model

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Record is one decoded API object. Numbers are kept as json.Number so int64
// values sent as JSON strings by the REST APIs survive untouched.
type Record map[string]any

var recordJSON = jsoniter.Config{
	UseNumber:              true,
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// DecodeRecord converts a generated API struct (or any JSON-marshalable value)
// into a Record.
func DecodeRecord(v any) (Record, error) {
	raw, err := recordJSON.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return ParseRecord(raw)
}

func ParseRecord(raw []byte) (Record, error) {
	var rec Record
	if err := recordJSON.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

// Lookup walks a dotted path through nested objects.
func (r Record) Lookup(path string) (any, bool) {
	return Flatten(r).Get(path)
}
