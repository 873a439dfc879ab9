package model

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
)

type SemanticType string

const (
	SemanticInteger     SemanticType = "integer"
	SemanticFloat       SemanticType = "float"
	SemanticBoolean     SemanticType = "boolean"
	SemanticString      SemanticType = "string"
	SemanticEpochMillis SemanticType = "epoch_millis"
	SemanticISO8601     SemanticType = "iso8601"
	SemanticDate        SemanticType = "date"
	SemanticListString  SemanticType = "list_string"
	SemanticDuration    SemanticType = "duration"
	SemanticJSON        SemanticType = "json"
)

// Table tags usable as a field source.
const (
	SourceDateExtraction = "@date_extraction"
	SourceLogTime        = "@log_time"
)

// semantic types accepted for each BigQuery column type, the first one being the default
var typeSemantics = map[string][]SemanticType{
	"INTEGER":   {SemanticInteger},
	"INT64":     {SemanticInteger},
	"FLOAT":     {SemanticFloat, SemanticDuration},
	"FLOAT64":   {SemanticFloat, SemanticDuration},
	"NUMERIC":   {SemanticFloat, SemanticDuration},
	"BOOLEAN":   {SemanticBoolean},
	"BOOL":      {SemanticBoolean},
	"STRING":    {SemanticString, SemanticListString, SemanticJSON},
	"JSON":      {SemanticJSON},
	"TIMESTAMP": {SemanticISO8601, SemanticEpochMillis},
	"DATETIME":  {SemanticISO8601, SemanticEpochMillis},
	"DATE":      {SemanticDate},
}

type Split struct {
	Sep   string `json:"sep"`
	Index int    `json:"index"`
}

// Field is one column of a schema descriptor. Name, Type, Mode and Description
// are the BigQuery schema keys; the rest drive normalization and are ignored by
// bigquery.SchemaFromJSON.
type Field struct {
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	Mode        string       `json:"mode,omitempty"`
	Description string       `json:"description,omitempty"`
	Source      string       `json:"source,omitempty"`
	Coerce      SemanticType `json:"coerce,omitempty"`
	Default     any          `json:"default,omitempty"`
	Split       *Split       `json:"split,omitempty"`
	Quote       string       `json:"quote,omitempty"`
}

// SourcePath is the dotted path (or table tag) the column is read from.
func (f Field) SourcePath() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// Semantic resolves the coercion applied to the column.
func (f Field) Semantic() SemanticType {
	if f.Coerce != "" {
		return f.Coerce
	}
	if semantics, ok := typeSemantics[strings.ToUpper(f.Type)]; ok {
		return semantics[0]
	}
	return ""
}

func (f Field) Required() bool {
	return strings.EqualFold(f.Mode, "REQUIRED")
}

type Descriptor struct {
	Fields        []Field `json:"fields"`
	StripNewlines bool    `json:"strip_newlines,omitempty"`
}

// ParseDescriptor accepts either a bare JSON list of fields, the format
// understood by `bq mk --schema`, or an object with "fields" and descriptor
// level options.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	var desc Descriptor
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := recordJSON.Unmarshal(trimmed, &desc.Fields); err != nil {
			return nil, exceptions.NewSchemaMismatchError(fmt.Errorf("invalid descriptor: %w", err), "")
		}
	} else if err := recordJSON.Unmarshal(trimmed, &desc); err != nil {
		return nil, exceptions.NewSchemaMismatchError(fmt.Errorf("invalid descriptor: %w", err), "")
	}

	if err := desc.Validate(); err != nil {
		return nil, exceptions.NewSchemaMismatchError(err, "")
	}
	return &desc, nil
}

func (d *Descriptor) Validate() error {
	if len(d.Fields) == 0 {
		return errors.New("descriptor declares no fields")
	}

	seen := make(map[string]struct{}, len(d.Fields))
	for i, field := range d.Fields {
		if field.Name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if _, ok := seen[field.Name]; ok {
			return fmt.Errorf("duplicate field %s", field.Name)
		}
		seen[field.Name] = struct{}{}

		semantics, ok := typeSemantics[strings.ToUpper(field.Type)]
		if !ok {
			return fmt.Errorf("field %s has unsupported type %q", field.Name, field.Type)
		}
		switch strings.ToUpper(field.Mode) {
		case "", "NULLABLE", "REQUIRED":
		default:
			return fmt.Errorf("field %s has unsupported mode %q", field.Name, field.Mode)
		}
		if field.Coerce != "" && !slices.Contains(semantics, field.Coerce) {
			return fmt.Errorf("field %s: coerce %q is not valid for type %s", field.Name, field.Coerce, field.Type)
		}
		if field.Split != nil && field.Split.Sep == "" {
			return fmt.Errorf("field %s: split needs a separator", field.Name)
		}
		if src := field.SourcePath(); strings.HasPrefix(src, "@") &&
			src != SourceDateExtraction && src != SourceLogTime {
			return fmt.Errorf("field %s: unknown table tag %s", field.Name, src)
		}
	}
	return nil
}

func (d *Descriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.Fields))
	for _, field := range d.Fields {
		names = append(names, field.Name)
	}
	return names
}

// BigQuerySchema is the physical schema of the destination table.
func (d *Descriptor) BigQuerySchema() (bigquery.Schema, error) {
	raw, err := recordJSON.Marshal(d.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor fields: %w", err)
	}
	schema, err := bigquery.SchemaFromJSON(raw)
	if err != nil {
		return nil, exceptions.NewSchemaMismatchError(fmt.Errorf("invalid descriptor: %w", err), "")
	}
	return schema, nil
}

// EqualNames compares column names case-insensitively, in order.
func (d *Descriptor) EqualNames(schema bigquery.Schema) bool {
	if len(schema) != len(d.Fields) {
		return false
	}
	for i, field := range d.Fields {
		if !strings.EqualFold(field.Name, schema[i].Name) {
			return false
		}
	}
	return true
}
