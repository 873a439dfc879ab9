package otel_metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/PeerDB-io/gcp-inventory/invenv"
)

const (
	APICallsCounterName      = "api_calls"
	PagesFetchedCounterName  = "pages_fetched"
	RowsExtractedCounterName = "rows_extracted"
	RowsRejectedCounterName  = "rows_rejected"
	RowsWrittenCounterName   = "rows_written"
	RunDurationHistogramName = "run_duration_seconds"
	meterName                = "io.peerdb.gcp-inventory"
)

type Metrics struct {
	APICallsCounter      metric.Int64Counter
	PagesFetchedCounter  metric.Int64Counter
	RowsExtractedCounter metric.Int64Counter
	RowsRejectedCounter  metric.Int64Counter
	RowsWrittenCounter   metric.Int64Counter
	RunDurationHistogram metric.Float64Histogram
}

func BuildMetricName(baseName string) string {
	return invenv.InventoryOtelMetricsNamespace() + baseName
}

type OtelManager struct {
	// nil when metrics are disabled
	MetricsProvider *sdkmetric.MeterProvider
	Meter           metric.Meter
	Metrics         Metrics
	attrs           []attribute.KeyValue
}

// NewOtelManager exports over OTLP when INVENTORY_OTEL_METRICS_ENABLED is set
// and records into a noop meter otherwise.
func NewOtelManager(ctx context.Context, otelServiceName string) (*OtelManager, error) {
	if !invenv.InventoryOtelMetricsEnabled() {
		return NewNoopOtelManager(), nil
	}

	otelResource, err := newOtelResource(otelServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry resource: %w", err)
	}
	metricExporter, err := setupExporter(ctx)
	if err != nil {
		return nil, err
	}
	return newOtelManager(sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(otelResource),
	))
}

func NewNoopOtelManager() *OtelManager {
	om := &OtelManager{Meter: noop.NewMeterProvider().Meter(meterName)}
	// the noop meter never fails
	_ = om.setupMetrics()
	return om
}

func newOtelManager(provider *sdkmetric.MeterProvider) (*OtelManager, error) {
	om := &OtelManager{
		MetricsProvider: provider,
		Meter:           provider.Meter(meterName),
	}
	if env := invenv.InventoryEnvironment(); env != "" {
		om.attrs = append(om.attrs, attribute.String(EnvironmentKey, env))
	}
	if err := om.setupMetrics(); err != nil {
		return nil, err
	}
	return om, nil
}

func (om *OtelManager) Close(ctx context.Context) error {
	if om.MetricsProvider == nil {
		return nil
	}
	return errors.Join(om.MetricsProvider.ForceFlush(ctx), om.MetricsProvider.Shutdown(ctx))
}

func (om *OtelManager) setupMetrics() error {
	var err error
	if om.Metrics.APICallsCounter, err = om.Meter.Int64Counter(BuildMetricName(APICallsCounterName),
		metric.WithDescription("Google API calls issued, including detail fetches"),
	); err != nil {
		return err
	}
	if om.Metrics.PagesFetchedCounter, err = om.Meter.Int64Counter(BuildMetricName(PagesFetchedCounterName),
		metric.WithDescription("Listing pages fetched, by hierarchy level"),
	); err != nil {
		return err
	}
	if om.Metrics.RowsExtractedCounter, err = om.Meter.Int64Counter(BuildMetricName(RowsExtractedCounterName),
		metric.WithDescription("Rows appended to the extraction table"),
	); err != nil {
		return err
	}
	if om.Metrics.RowsRejectedCounter, err = om.Meter.Int64Counter(BuildMetricName(RowsRejectedCounterName),
		metric.WithDescription("Rows dropped because a value could not be coerced"),
	); err != nil {
		return err
	}
	if om.Metrics.RowsWrittenCounter, err = om.Meter.Int64Counter(BuildMetricName(RowsWrittenCounterName),
		metric.WithDescription("Rows appended to the destination table"),
	); err != nil {
		return err
	}
	if om.Metrics.RunDurationHistogram, err = om.Meter.Float64Histogram(BuildMetricName(RunDurationHistogramName),
		metric.WithDescription("Wall time of an extraction run"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	return nil
}

func (om *OtelManager) attributes(kvs ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append(kvs, om.attrs...)...)
}

func (om *OtelManager) RecordAPICall(ctx context.Context, kind string, operation string) {
	om.Metrics.APICallsCounter.Add(ctx, 1, om.attributes(
		attribute.String(KindKey, kind), attribute.String(OperationKey, operation)))
}

// RecordPage counts a listing page, which is also one API call.
func (om *OtelManager) RecordPage(ctx context.Context, kind string, level string) {
	om.Metrics.PagesFetchedCounter.Add(ctx, 1, om.attributes(
		attribute.String(KindKey, kind), attribute.String(LevelKey, level)))
	om.RecordAPICall(ctx, kind, level+".list")
}

func (om *OtelManager) RecordRows(ctx context.Context, counter metric.Int64Counter, kind string, rows int) {
	if rows == 0 {
		return
	}
	counter.Add(ctx, int64(rows), om.attributes(attribute.String(KindKey, kind)))
}

func (om *OtelManager) RecordRowsWritten(ctx context.Context, kind string, destination string, rows int) {
	if rows == 0 {
		return
	}
	om.Metrics.RowsWrittenCounter.Add(ctx, int64(rows), om.attributes(
		attribute.String(KindKey, kind), attribute.String(DestinationKey, destination)))
}

func (om *OtelManager) RecordRunDuration(ctx context.Context, kind string, status string, seconds float64) {
	om.Metrics.RunDurationHistogram.Record(ctx, seconds, om.attributes(
		attribute.String(KindKey, kind), attribute.String(StatusKey, status)))
}

// newOtelResource returns a resource describing this application.
func newOtelResource(otelServiceName string, attrs ...attribute.KeyValue) (*resource.Resource, error) {
	allAttrs := append([]attribute.KeyValue{
		semconv.ServiceNameKey.String(otelServiceName),
	}, attrs...)
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(allAttrs...),
	)
}

func setupExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	otlpMetricProtocol := invenv.InventoryOtelExporterProtocol()
	var metricExporter sdkmetric.Exporter
	var err error
	switch otlpMetricProtocol {
	case "http/protobuf":
		metricExporter, err = otlpmetrichttp.New(ctx)
	case "grpc":
		metricExporter, err = otlpmetricgrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported otel metric protocol: %s", otlpMetricProtocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenTelemetry metrics exporter: %w", err)
	}
	return metricExporter, nil
}
