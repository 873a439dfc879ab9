package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/PeerDB-io/gcp-inventory/model"
)

func rawTable(t *testing.T, records ...string) *model.Table {
	t.Helper()
	table := model.NewTable(time.Date(2024, 5, 17, 8, 30, 15, 123456789, time.UTC))
	for _, raw := range records {
		rec, err := model.ParseRecord([]byte(raw))
		require.NoError(t, err)
		table.Append(model.Flatten(rec))
	}
	return table
}

func descriptor(t *testing.T, raw string) *model.Descriptor {
	t.Helper()
	desc, err := model.ParseDescriptor([]byte(raw))
	require.NoError(t, err)
	return desc
}

const fiveColumns = `[
	{"name": "project_id", "type": "STRING", "source": "tableReference.projectId"},
	{"name": "dataset_id", "type": "STRING", "source": "tableReference.datasetId"},
	{"name": "table_id", "type": "STRING", "source": "tableReference.tableId"},
	{"name": "num_rows", "type": "INT64", "source": "numRows"},
	{"name": "num_bytes", "type": "INT64", "source": "numBytes"}
]`

func TestNormalizeRoundTrip(t *testing.T) {
	table := rawTable(t, `{"tableReference":{"projectId":"p1","datasetId":"d1","tableId":"t1"},"numRows":"42","numBytes":null}`)

	out, rejected := Normalize(table, descriptor(t, fiveColumns))
	require.Empty(t, rejected)
	require.Equal(t, []string{"project_id", "dataset_id", "table_id", "num_rows", "num_bytes"}, out.Columns)
	require.Equal(t, 1, out.Len())
	require.Equal(t, []any{"p1", "d1", "t1", int64(42), int64(0)}, out.Values(0))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	desc := descriptor(t, `{"strip_newlines": true, "fields": [
		{"name": "date_extraction", "type": "DATE", "source": "@date_extraction"},
		{"name": "table_id", "type": "STRING", "source": "tableReference.tableId"},
		{"name": "clustering_fields", "type": "STRING", "coerce": "list_string", "source": "clustering.fields"},
		{"name": "creation_time", "type": "TIMESTAMP", "coerce": "epoch_millis", "source": "creationTime"},
		{"name": "update_time", "type": "TIMESTAMP", "source": "updateTime"},
		{"name": "num_rows", "type": "INTEGER", "source": "numRows"},
		{"name": "require_partition_filter", "type": "BOOLEAN", "source": "requirePartitionFilter"},
		{"name": "lastrun_duration", "type": "FLOAT", "coerce": "duration", "source": "lastRunDuration"},
		{"name": "schema_fields", "type": "STRING", "source": "schema.fields", "quote": "\""},
		{"name": "log_time", "type": "TIMESTAMP", "source": "@log_time"}
	]}`)
	table := rawTable(t,
		`{"tableReference":{"tableId":"t1"},"clustering":{"fields":["a","b"]},"creationTime":"1700000000123",
		  "updateTime":"2024-05-01T10:00:00.123456789Z","numRows":"7","requirePartitionFilter":true,
		  "lastRunDuration":"12.5s","schema":{"fields":[{"name":"x"}]}}`,
		`{"tableReference":{"tableId":"t2\nline"}}`,
	)

	first, rejected := Normalize(table, desc)
	require.Empty(t, rejected)
	require.Equal(t, 2, first.Len())
	require.Equal(t, "\"[{\"name\":\"x\"}]\"", first.Rows[0]["schema_fields"])
	require.Equal(t, "t2line", first.Rows[1]["table_id"])

	second, rejected := Normalize(first, desc)
	require.Empty(t, rejected)
	require.Equal(t, first, second)
}

func TestNormalizeValues(t *testing.T) {
	desc := descriptor(t, `[
		{"name": "date_extraction", "type": "DATE", "source": "@date_extraction"},
		{"name": "clustering_fields", "type": "STRING", "coerce": "list_string", "source": "clustering.fields"},
		{"name": "creation_time", "type": "TIMESTAMP", "coerce": "epoch_millis", "source": "creationTime"},
		{"name": "update_time", "type": "TIMESTAMP", "source": "updateTime"},
		{"name": "require_partition_filter", "type": "BOOLEAN", "source": "requirePartitionFilter"},
		{"name": "num_partitions", "type": "INTEGER", "source": "numPartitions"},
		{"name": "enabled", "type": "BOOLEAN", "source": "discoverySpec.enabled", "default": true},
		{"name": "labels", "type": "STRING", "coerce": "json", "source": "labels"},
		{"name": "log_time", "type": "TIMESTAMP", "source": "@log_time"}
	]`)
	table := rawTable(t,
		`{"clustering":{"fields":["a","it's"]},"creationTime":1700000000123,"updateTime":"2024-05-01T10:00:00.123456789-03:00",
		  "requirePartitionFilter":false,"labels":{"env":"prod","team":"data"}}`,
		`{"clustering":{"fields":"nan"}}`,
	)

	out, rejected := Normalize(table, desc)
	require.Empty(t, rejected)
	require.Equal(t, 2, out.Len())

	row := out.Rows[0]
	require.Equal(t, civil.Date{Year: 2024, Month: time.May, Day: 17}, row["date_extraction"])
	require.Equal(t, `['a', 'it\'s']`, row["clustering_fields"])
	require.Equal(t, time.UnixMilli(1700000000123).UTC(), row["creation_time"])
	require.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 123456000, time.UTC), row["update_time"])
	require.Equal(t, false, row["require_partition_filter"])
	require.Equal(t, int64(0), row["num_partitions"])
	require.Equal(t, true, row["enabled"])
	require.Equal(t, `{"env":"prod","team":"data"}`, row["labels"])
	require.Equal(t, time.Date(2024, 5, 17, 8, 30, 15, 123456000, time.UTC), row["log_time"])

	row = out.Rows[1]
	require.Nil(t, row["clustering_fields"])
	require.Nil(t, row["creation_time"])
	require.Equal(t, false, row["require_partition_filter"])
	require.Nil(t, row["labels"])
}

func TestDurationCoercion(t *testing.T) {
	field := model.Field{Name: "lastrun_duration", Type: "FLOAT", Coerce: model.SemanticDuration}
	tests := []struct {
		in   any
		want any
	}{
		{in: "12.5s", want: 12.5},
		{in: "0s", want: 0.0},
		{in: "1m30s", want: 90.0},
		{in: 3.25, want: 3.25},
		{in: nil, want: nil},
	}
	for _, tc := range tests {
		got, err := coerce(field, tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := coerce(field, "soon")
	require.Error(t, err)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		field   model.Field
		in      any
		want    any
		wantErr bool
	}{
		{name: "integer from json number", field: model.Field{Type: "INTEGER"}, in: json.Number("12"), want: int64(12)},
		{name: "integer from string", field: model.Field{Type: "INTEGER"}, in: "42", want: int64(42)},
		{name: "integer from integral float", field: model.Field{Type: "INTEGER"}, in: 5.0, want: int64(5)},
		{name: "integer null", field: model.Field{Type: "INTEGER"}, in: nil, want: int64(0)},
		{name: "integer declared default", field: model.Field{Type: "INTEGER", Default: json.Number("-1")}, in: nil, want: int64(-1)},
		{name: "integer fraction", field: model.Field{Type: "INTEGER"}, in: 1.5, wantErr: true},
		{name: "integer garbage", field: model.Field{Type: "INTEGER"}, in: "abc", wantErr: true},
		{name: "integer from bool", field: model.Field{Type: "INTEGER"}, in: true, wantErr: true},
		{name: "float from string", field: model.Field{Type: "FLOAT"}, in: "2.5", want: 2.5},
		{name: "float null", field: model.Field{Type: "FLOAT"}, in: nil, want: nil},
		{name: "bool", field: model.Field{Type: "BOOLEAN"}, in: true, want: true},
		{name: "bool from string", field: model.Field{Type: "BOOL"}, in: "false", want: false},
		{name: "bool null", field: model.Field{Type: "BOOLEAN"}, in: nil, want: false},
		{name: "bool garbage", field: model.Field{Type: "BOOLEAN"}, in: 3.0, wantErr: true},
		{name: "string number", field: model.Field{Type: "STRING"}, in: json.Number("10"), want: "10"},
		{name: "string null", field: model.Field{Type: "STRING"}, in: nil, want: nil},
		{name: "string scalar list", field: model.Field{Type: "STRING"}, in: []any{"a", json.Number("1"), true}, want: "['a', 1, True]"},
		{name: "string object list", field: model.Field{Type: "STRING"}, in: []any{map[string]any{"name": "x"}}, want: `[{"name":"x"}]`},
		{name: "list_string nan", field: model.Field{Type: "STRING", Coerce: model.SemanticListString}, in: "nan", want: nil},
		{name: "list_string empty list", field: model.Field{Type: "STRING", Coerce: model.SemanticListString}, in: []any{}, want: "[]"},
		{name: "epoch millis", field: model.Field{Type: "TIMESTAMP", Coerce: model.SemanticEpochMillis}, in: "1000", want: time.Unix(1, 0).UTC()},
		{name: "epoch millis garbage", field: model.Field{Type: "TIMESTAMP", Coerce: model.SemanticEpochMillis}, in: "yesterday", wantErr: true},
		{name: "iso8601", field: model.Field{Type: "TIMESTAMP"}, in: "2022-09-12T14:03:22.1234567Z", want: time.Date(2022, 9, 12, 14, 3, 22, 123456000, time.UTC)},
		{name: "iso8601 garbage", field: model.Field{Type: "TIMESTAMP"}, in: "12/09/2022", wantErr: true},
		{name: "date", field: model.Field{Type: "DATE"}, in: "2022-09-12", want: civil.Date{Year: 2022, Month: time.September, Day: 12}},
		{name: "json string passthrough", field: model.Field{Type: "JSON"}, in: `{"a":1}`, want: `{"a":1}`},
		{name: "json object", field: model.Field{Type: "JSON"}, in: map[string]any{"b": json.Number("2"), "a": "x"}, want: `{"a":"x","b":2}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := coerce(tc.field, tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeRejectsRows(t *testing.T) {
	table := rawTable(t,
		`{"tableReference":{"projectId":"p1","datasetId":"d1","tableId":"good"},"numRows":"1"}`,
		`{"tableReference":{"projectId":"p1","datasetId":"d1","tableId":"bad"},"numRows":"lots","numBytes":"1.5"}`,
		`{"tableReference":{"projectId":"p1","datasetId":"d1","tableId":"good2"},"numRows":"3"}`,
	)

	out, rejected := Normalize(table, descriptor(t, fiveColumns))
	require.Equal(t, 2, out.Len())
	require.Equal(t, "good", out.Rows[0]["table_id"])
	require.Equal(t, "good2", out.Rows[1]["table_id"])

	require.Len(t, rejected, 2)
	require.Equal(t, 1, rejected[0].Row)
	require.Equal(t, "num_rows", rejected[0].Column)
	require.Equal(t, "lots", rejected[0].Value)
	require.Equal(t, "num_bytes", rejected[1].Column)
}

func TestNormalizeRequiredColumn(t *testing.T) {
	desc := descriptor(t, `[{"name": "asset_id", "type": "STRING", "mode": "REQUIRED", "source": "name"}]`)
	out, rejected := Normalize(rawTable(t, `{"name":"a"}`, `{}`), desc)
	require.Equal(t, 1, out.Len())
	require.Len(t, rejected, 1)
	require.Equal(t, "asset_id", rejected[0].Column)
}

func TestNormalizeSplitColumns(t *testing.T) {
	desc := descriptor(t, `[
		{"name": "project_asset", "type": "STRING", "source": "name", "split": {"sep": "/", "index": 1}},
		{"name": "location_asset", "type": "STRING", "source": "name", "split": {"sep": "/", "index": 3}},
		{"name": "lake_asset", "type": "STRING", "source": "name", "split": {"sep": "/", "index": 5}},
		{"name": "zone_asset", "type": "STRING", "source": "name", "split": {"sep": "/", "index": 7}},
		{"name": "name_asset", "type": "STRING", "source": "name", "split": {"sep": "/", "index": 9}},
		{"name": "project_resource_spec", "type": "STRING", "source": "resourceSpec.name", "split": {"sep": "/", "index": 1}},
		{"name": "name_resource_spec", "type": "STRING", "source": "resourceSpec.name", "split": {"sep": "/", "index": -1}}
	]`)
	table := rawTable(t,
		`{"name":"projects/p1/locations/us-central1/lakes/l1/zones/z1/assets/a1",
		  "resourceSpec":{"name":"projects/p2/buckets/raw-bucket"}}`,
		`{"name":"projects/p1/locations/us-central1/lakes/l1"}`,
	)

	out, rejected := Normalize(table, desc)
	require.Empty(t, rejected)
	require.Equal(t, []any{"p1", "us-central1", "l1", "z1", "a1", "p2", "raw-bucket"}, out.Values(0))
	require.Equal(t, []any{"p1", "us-central1", "l1", nil, nil, nil, nil}, out.Values(1))
	_, ok := out.Rows[0].Get("name")
	require.False(t, ok)
}
