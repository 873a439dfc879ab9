package connbigquery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	jsoniter "github.com/json-iterator/go"

	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/shared"
)

// BigQuery reads TIMESTAMP values in this form from JSON, as UTC
const loadTimestampLayout = "2006-01-02 15:04:05.000000"

var ndjson = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// encodeRows renders rows as newline delimited JSON. Nulls are omitted.
func encodeRows(columns []string, rows []model.FlatRow) ([]byte, error) {
	var buf bytes.Buffer
	stream := ndjson.BorrowStream(&buf)
	defer ndjson.ReturnStream(stream)

	for _, row := range rows {
		obj := make(map[string]any, len(columns))
		for _, col := range columns {
			if v := loadValue(row[col]); v != nil {
				obj[col] = v
			}
		}
		stream.WriteVal(obj)
		stream.WriteRaw("\n")
		if stream.Error != nil {
			return nil, fmt.Errorf("failed to encode row: %w", stream.Error)
		}
	}
	if err := stream.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func loadValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(loadTimestampLayout)
	case civil.Date:
		return t.String()
	default:
		return v
	}
}

func (s *Sink) load(
	ctx context.Context,
	tableRef *bigquery.Table,
	schema bigquery.Schema,
	columns []string,
	rows []model.FlatRow,
	chunkIdx int,
) error {
	data, err := encodeRows(columns, rows)
	if err != nil {
		return err
	}

	var source bigquery.LoadSource
	if s.stagingBucket != "" {
		object := fmt.Sprintf("gcp-inventory/%s/%s-%d.json", tableRef.TableID, shared.RunIDFromCtx(ctx), chunkIdx)
		gcsRef, cleanup, err := s.stage(ctx, object, data)
		if err != nil {
			return err
		}
		defer cleanup()
		gcsRef.SourceFormat = bigquery.JSON
		gcsRef.Schema = schema
		source = gcsRef
	} else {
		localRef := bigquery.NewReaderSource(bytes.NewReader(data))
		localRef.SourceFormat = bigquery.JSON
		localRef.Schema = schema
		source = localRef
	}

	loader := tableRef.LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded
	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to run BigQuery load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for BigQuery load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("failed to load rows into BigQuery table: %w", err)
	}
	return nil
}

func (s *Sink) stage(ctx context.Context, object string, data []byte) (*bigquery.GCSReference, func(), error) {
	obj := s.storageClient.Bucket(s.stagingBucket).Object(object)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, nil, fmt.Errorf("failed to write gs://%s/%s: %w", s.stagingBucket, object, err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to write gs://%s/%s: %w", s.stagingBucket, object, err)
	}

	cleanup := func() {
		// the load job has finished one way or another, ctx may be canceled by now
		if err := obj.Delete(context.WithoutCancel(ctx)); err != nil {
			logger.LoggerFromCtx(ctx).Warn("failed to delete staging object",
				slog.String("object", object), slog.Any("error", err))
		}
	}
	return bigquery.NewGCSReference(fmt.Sprintf("gs://%s/%s", s.stagingBucket, object)), cleanup, nil
}
