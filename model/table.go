package model

import (
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// Table is the extraction table of one run. Columns is nil while the table is
// raw (rows keyed by dotted source paths) and holds the declared column order
// once the table has been normalized.
type Table struct {
	Columns        []string
	Rows           []FlatRow
	DateExtraction civil.Date
	LogTime        time.Time
}

// NewTable starts a run at now. DateExtraction is the calendar day of now in
// its own location; LogTime is kept in UTC.
func NewTable(now time.Time) *Table {
	return &Table{
		DateExtraction: civil.DateOf(now),
		LogTime:        now.UTC(),
	}
}

func (t *Table) Append(rows ...FlatRow) {
	t.Rows = append(t.Rows, rows...)
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Normalized reports whether the column set equals names, in order.
func (t *Table) Normalized(names []string) bool {
	return t.Columns != nil && slices.Equal(t.Columns, names)
}

// Values returns row i as a slice ordered by Columns.
func (t *Table) Values(i int) []any {
	values := make([]any, len(t.Columns))
	for j, col := range t.Columns {
		values[j] = t.Rows[i][col]
	}
	return values
}
