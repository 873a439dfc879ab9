package connbigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/PeerDB-io/gcp-inventory/model"
)

type RowValueSaver struct {
	Columns []string
	Row     model.FlatRow
}

func (r RowValueSaver) Save() (map[string]bigquery.Value, string, error) {
	bqValues := make(map[string]bigquery.Value, len(r.Columns))
	for _, col := range r.Columns {
		v, ok := r.Row[col]
		if !ok {
			return nil, "", fmt.Errorf("row has no column %s", col)
		}
		if v != nil {
			bqValues[col] = v
		}
	}
	return bqValues, bigquery.NoDedupeID, nil
}

func (s *Sink) insert(ctx context.Context, tableRef *bigquery.Table, columns []string, rows []model.FlatRow) error {
	savers := make([]bigquery.ValueSaver, 0, len(rows))
	for _, row := range rows {
		savers = append(savers, RowValueSaver{Columns: columns, Row: row})
	}

	if err := tableRef.Inserter().Put(ctx, savers); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	return nil
}
