package connbigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/PeerDB-io/gcp-inventory/invenv"
	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
)

type SinkMethod string

const (
	// NDJSON load jobs, one per chunk
	SinkMethodLoad SinkMethod = "load"
	// streaming inserts
	SinkMethodInsert SinkMethod = "insert"
)

func ParseSinkMethod(s string) (SinkMethod, error) {
	switch SinkMethod(s) {
	case SinkMethodLoad, SinkMethodInsert:
		return SinkMethod(s), nil
	}
	return "", fmt.Errorf("unsupported sink method %q, expected load or insert", s)
}

type Destination struct {
	Project string
	Dataset string
	Table   string
}

func (d Destination) String() string {
	return d.Project + "." + d.Dataset + "." + d.Table
}

func (d Destination) Validate() error {
	if d.Project == "" || d.Dataset == "" || d.Table == "" {
		return fmt.Errorf("incomplete destination %s", d)
	}
	return nil
}

// Sink appends normalized extraction tables to BigQuery. It never truncates
// or updates existing rows.
type Sink struct {
	client        *bigquery.Client
	storageClient *storage.Client
	stagingBucket string
	method        SinkMethod
	chunkSize     int
}

type SinkOption func(*Sink)

func WithMethod(method SinkMethod) SinkOption {
	return func(s *Sink) {
		s.method = method
	}
}

// WithChunkSize sets the rows per load job or per insert request.
// Zero keeps the method's default.
func WithChunkSize(rows int) SinkOption {
	return func(s *Sink) {
		s.chunkSize = rows
	}
}

// WithStagingBucket stages load job files in GCS instead of uploading them
// with the job request.
func WithStagingBucket(client *storage.Client, bucket string) SinkOption {
	return func(s *Sink) {
		s.storageClient = client
		s.stagingBucket = bucket
	}
}

func NewSink(client *bigquery.Client, opts ...SinkOption) (*Sink, error) {
	s := &Sink{client: client, method: SinkMethodLoad}
	for _, opt := range opts {
		opt(s)
	}

	if s.chunkSize < 0 {
		return nil, fmt.Errorf("invalid chunk size %d", s.chunkSize)
	}
	if s.chunkSize == 0 {
		switch s.method {
		case SinkMethodInsert:
			s.chunkSize = invenv.InventoryInsertBatchSize()
		default:
			s.chunkSize = invenv.InventoryLoadChunkSize()
		}
	}
	if s.stagingBucket != "" && s.method != SinkMethodLoad {
		return nil, errors.New("a staging bucket only applies to the load method")
	}
	return s, nil
}

// Append writes every row of table to dest. The destination table is created
// from the descriptor when missing; an existing table must have the same
// columns in the same order. Returns the number of rows written.
func (s *Sink) Append(ctx context.Context, table *model.Table, desc *model.Descriptor, dest Destination) (int, error) {
	log := logger.LoggerFromCtx(ctx).With(slog.String("destination", dest.String()))
	if err := dest.Validate(); err != nil {
		return 0, err
	}
	if !table.Normalized(desc.ColumnNames()) {
		return 0, exceptions.NewSchemaMismatchError(
			errors.New("extraction table is not normalized to the descriptor"), dest.String())
	}

	schema, err := desc.BigQuerySchema()
	if err != nil {
		return 0, err
	}
	tableRef := s.client.DatasetInProject(dest.Project, dest.Dataset).Table(dest.Table)
	if err := s.ensureTable(ctx, tableRef, desc, schema, dest); err != nil {
		return 0, err
	}

	if table.Len() == 0 {
		log.Info("no rows to append")
		return 0, nil
	}

	written := 0
	for chunkIdx, bounds := range chunks(table.Len(), s.chunkSize) {
		rows := table.Rows[bounds[0]:bounds[1]]
		var err error
		switch s.method {
		case SinkMethodInsert:
			err = s.insert(ctx, tableRef, table.Columns, rows)
		default:
			err = s.load(ctx, tableRef, schema, table.Columns, rows, chunkIdx)
		}
		if err != nil {
			return written, exceptions.NewTransportError(err, string(s.method), dest.String())
		}
		written += len(rows)
		log.Info("appended chunk", slog.Int("chunk", chunkIdx), slog.Int("rows", len(rows)))
	}
	return written, nil
}

func (s *Sink) ensureTable(
	ctx context.Context,
	tableRef *bigquery.Table,
	desc *model.Descriptor,
	schema bigquery.Schema,
	dest Destination,
) error {
	metadata, err := tableRef.Metadata(ctx)
	if err != nil {
		if !isNotFound(err) {
			return exceptions.NewTransportError(err, "tables.get", dest.String())
		}

		tableMetadata := &bigquery.TableMetadata{Schema: schema}
		if slices.Contains(desc.ColumnNames(), "date_extraction") {
			tableMetadata.TimePartitioning = &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: "date_extraction",
			}
		}
		if err := tableRef.Create(ctx, tableMetadata); err != nil {
			return exceptions.NewTransportError(err, "tables.insert", dest.String())
		}
		logger.LoggerFromCtx(ctx).Info("created destination table", slog.String("destination", dest.String()))
		return nil
	}

	if !desc.EqualNames(metadata.Schema) {
		return exceptions.NewSchemaMismatchError(fmt.Errorf("destination has columns %v, descriptor declares %v",
			schemaNames(metadata.Schema), desc.ColumnNames()), dest.String())
	}
	return nil
}

func schemaNames(schema bigquery.Schema) []string {
	names := make([]string, 0, len(schema))
	for _, field := range schema {
		names = append(names, field.Name)
	}
	return names
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// chunks splits [0, n) into consecutive [start, end) bounds of at most size.
func chunks(n int, size int) [][2]int {
	var bounds [][2]int
	for start := 0; start < n; start += size {
		bounds = append(bounds, [2]int{start, min(start+size, n)})
	}
	return bounds
}

func (s *Sink) Close() error {
	var errs []error
	if s.storageClient != nil {
		errs = append(errs, s.storageClient.Close())
	}
	return errors.Join(append(errs, s.client.Close())...)
}
