package activities

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	connbigquery "github.com/PeerDB-io/gcp-inventory/connectors/bigquery"
	"github.com/PeerDB-io/gcp-inventory/connectors/googlecloud"
	connpubsub "github.com/PeerDB-io/gcp-inventory/connectors/pubsub"
	"github.com/PeerDB-io/gcp-inventory/invenv"
	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/model"
	"github.com/PeerDB-io/gcp-inventory/normalize"
	"github.com/PeerDB-io/gcp-inventory/otel_metrics"
	"github.com/PeerDB-io/gcp-inventory/pagination"
	"github.com/PeerDB-io/gcp-inventory/resources"
	"github.com/PeerDB-io/gcp-inventory/shared"
	"github.com/PeerDB-io/gcp-inventory/walker"
)

type ExtractConfig struct {
	Kind            *resources.Kind
	Credentials     googlecloud.CredentialConfig
	Projects        []string
	Destination     connbigquery.Destination
	SchemaFile      string
	SinkMethod      connbigquery.SinkMethod
	ChunkSize       int
	StagingBucket   string
	NotifyTopic     string
	EnablementDelay time.Duration
	ReservedPrefix  string
	Strict          bool
	DryRun          bool
}

type ExtractResult struct {
	RunID          string
	Projects       []string
	DateExtraction civil.Date
	LogTime        time.Time
	Extracted      int
	Rejected       int
	Written        int
}

type ExtractActivity struct {
	OtelManager *otel_metrics.OtelManager
	// appended to the credential options of every client, used to point the
	// clients at a fake server
	ClientOptions []option.ClientOption
	Now           func() time.Time
}

// Extract runs one inventory extraction: select projects, walk the kind's
// hierarchy, normalize, append to the destination and announce the run.
func (a *ExtractActivity) Extract(ctx context.Context, cfg *ExtractConfig) (result *ExtractResult, err error) {
	runID := uuid.NewString()
	ctx = shared.WithKind(shared.WithRunID(ctx, runID), cfg.Kind.Name)
	log := logger.LoggerFromCtx(ctx)

	om := a.OtelManager
	if om == nil {
		om = otel_metrics.NewNoopOtelManager()
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		om.RecordRunDuration(ctx, cfg.Kind.Name, status, time.Since(start).Seconds())
	}()

	desc, err := LoadDescriptor(cfg.Kind, cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	loc, err := invenv.InventoryTimezone()
	if err != nil {
		return nil, err
	}

	opts, err := googlecloud.ClientOptions(ctx, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	opts = append(opts, a.ClientOptions...)

	clients, err := googlecloud.NewClients(ctx, opts...)
	if err != nil {
		return nil, err
	}

	projects, err := a.selectProjects(ctx, om, clients, cfg)
	if err != nil {
		return nil, err
	}

	table := model.NewTable(now().In(loc))
	result = &ExtractResult{
		RunID:          runID,
		Projects:       projects,
		DateExtraction: table.DateExtraction,
		LogTime:        table.LogTime,
	}

	w, err := walker.New(cfg.Kind.Hierarchy(clients),
		walker.WithPageHook(func(ctx context.Context, level string, _ pagination.Page) {
			om.RecordPage(ctx, cfg.Kind.Name, level)
		}),
		walker.WithFetchHook(func(ctx context.Context, leaf *walker.Node) {
			om.RecordAPICall(ctx, cfg.Kind.Name, "get")
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Walk(ctx, projects, table); err != nil {
		return nil, err
	}
	result.Extracted = table.Len()
	om.RecordRows(ctx, om.Metrics.RowsExtractedCounter, cfg.Kind.Name, table.Len())

	normalized, err := NormalizeTable(ctx, table, desc, cfg.Strict)
	result.Rejected = table.Len() - normalized.Len()
	om.RecordRows(ctx, om.Metrics.RowsRejectedCounter, cfg.Kind.Name, result.Rejected)
	if err != nil {
		return result, err
	}

	if cfg.DryRun {
		log.Info("dry run, skipping append",
			slog.Int("projects", len(projects)),
			slog.Int("extracted", result.Extracted),
			slog.Int("rejected", result.Rejected),
			slog.String("destination", cfg.Destination.String()))
	} else {
		if result.Written, err = a.appendTable(ctx, normalized, desc, cfg, opts); err != nil {
			return result, err
		}
		om.RecordRowsWritten(ctx, cfg.Kind.Name, cfg.Destination.String(), result.Written)
		log.Info("appended extraction",
			slog.Int("rows", result.Written),
			slog.String("destination", cfg.Destination.String()))
	}

	if cfg.NotifyTopic != "" {
		if err := a.notify(ctx, cfg, result, opts); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (a *ExtractActivity) selectProjects(
	ctx context.Context,
	om *otel_metrics.OtelManager,
	clients *googlecloud.Clients,
	cfg *ExtractConfig,
) ([]string, error) {
	countPages := func(level string, list pagination.ListFunc[string]) pagination.ListFunc[string] {
		return func(ctx context.Context, cursor string) ([]string, string, error) {
			om.RecordPage(ctx, cfg.Kind.Name, level)
			return list(ctx, cursor)
		}
	}
	listServices := clients.ListEnabledServices(invenv.InventoryServicesPageSize())

	filter := walker.NewProjectFilter(
		countPages("projects", clients.ListProjects(invenv.InventoryProjectFilter())),
		func(project string) pagination.ListFunc[string] {
			return countPages("services", listServices(project))
		},
		cfg.Kind.RequiredService,
		walker.WithReservedPrefix(cfg.ReservedPrefix),
		walker.WithEnablementDelay(cfg.EnablementDelay),
	)
	return filter.Projects(ctx, cfg.Projects)
}

func (a *ExtractActivity) appendTable(
	ctx context.Context,
	table *model.Table,
	desc *model.Descriptor,
	cfg *ExtractConfig,
	opts []option.ClientOption,
) (int, error) {
	bqClient, err := bigquery.NewClient(ctx, cfg.Destination.Project, opts...)
	if err != nil {
		return 0, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	sinkOpts := []connbigquery.SinkOption{
		connbigquery.WithMethod(cfg.SinkMethod),
		connbigquery.WithChunkSize(cfg.ChunkSize),
	}
	if cfg.StagingBucket != "" {
		storageClient, err := storage.NewClient(ctx, opts...)
		if err != nil {
			_ = bqClient.Close()
			return 0, fmt.Errorf("failed to create Storage client: %w", err)
		}
		sinkOpts = append(sinkOpts, connbigquery.WithStagingBucket(storageClient, cfg.StagingBucket))
	}

	sink, err := connbigquery.NewSink(bqClient, sinkOpts...)
	if err != nil {
		_ = bqClient.Close()
		return 0, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.LoggerFromCtx(ctx).Warn("failed to close sink", slog.Any("error", err))
		}
	}()

	return sink.Append(ctx, table, desc, cfg.Destination)
}

func (a *ExtractActivity) notify(ctx context.Context, cfg *ExtractConfig, result *ExtractResult, opts []option.ClientOption) error {
	notifier, err := connpubsub.NewNotifier(ctx, cfg.Destination.Project, cfg.NotifyTopic, opts...)
	if err != nil {
		return err
	}
	defer notifier.Close()

	return notifier.Notify(ctx, connpubsub.RunEvent{
		Kind:           cfg.Kind.Name,
		Destination:    cfg.Destination.String(),
		DateExtraction: result.DateExtraction,
		LogTime:        result.LogTime,
		Rows:           result.Written,
		Rejected:       result.Rejected,
		RunID:          result.RunID,
		Environment:    invenv.InventoryEnvironment(),
		DryRun:         cfg.DryRun,
	})
}

// LoadDescriptor reads schemaFile when set and the kind's embedded descriptor otherwise.
func LoadDescriptor(kind *resources.Kind, schemaFile string) (*model.Descriptor, error) {
	if schemaFile == "" {
		return kind.Descriptor()
	}
	raw, err := os.ReadFile(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	desc, err := model.ParseDescriptor(raw)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", schemaFile, err)
	}
	return desc, nil
}

// NormalizeTable normalizes table and logs every rejected cell. With strict set
// the first rejection is returned as an error.
func NormalizeTable(ctx context.Context, table *model.Table, desc *model.Descriptor, strict bool) (*model.Table, error) {
	normalized, rejected := normalize.Normalize(table, desc)
	if len(rejected) == 0 {
		return normalized, nil
	}

	log := logger.LoggerFromCtx(ctx)
	for _, cerr := range rejected {
		log.Warn("dropping row with invalid value",
			slog.Int("row", cerr.Row),
			slog.String("column", cerr.Column),
			slog.Any("error", cerr.Unwrap()))
	}
	if strict {
		return normalized, fmt.Errorf("%d rows rejected, first: %w", len(rejected), rejected[0])
	}
	return normalized, nil
}
